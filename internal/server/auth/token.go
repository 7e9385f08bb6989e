// Package auth issues and validates the signed action tokens embedded in
// transactional email links (email verification, password reset).
package auth

import (
	"errors"
	"time"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Purpose scopes an action token to a single use case. A token minted for
// one purpose never validates for another.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposePasswordReset Purpose = "password-reset"
	PurposeInvitation    Purpose = "invitation"
)

// Claims includes the standard registered claims plus the user id and the
// token purpose.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string `json:"uid"`
	Purpose string `json:"purpose"`
}

// GenerateActionToken mints a signed HS256 token for userID, valid for
// validityDuration and bound to purpose.
func GenerateActionToken(userID string, purpose Purpose, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID:  userID,
		Purpose: string(purpose),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseActionToken validates tokenString and returns the embedded user id.
// Expired tokens yield common.ErrTokenExpired; any other defect, including a
// purpose mismatch, yields common.ErrInvalidToken.
func ParseActionToken(tokenString string, purpose Purpose, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != string(purpose) || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
