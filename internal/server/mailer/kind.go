// Package mailer renders and delivers transactional email for jobs consumed
// from the work queue. Delivery is idempotent per job id: a sent marker is
// written after each confirmed send, and redeliveries of a marked job are
// acknowledged without calling the transport again.
package mailer

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"time"

	"github.com/avolkovs/authkeeper/internal/common"
)

// Kind enumerates the supported email job types. The set is closed: the
// dispatcher matches it exhaustively and treats anything else as a fatal
// configuration error, never a silent skip.
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password-reset"
	KindWelcome       Kind = "welcome"
	KindAccountLocked Kind = "account-locked"
	KindInvitation    Kind = "invitation"
)

// UnknownKindError reports an email job type outside the closed set.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown email job type %q", e.Kind)
}

// VerificationPayload is the payload of a KindVerification job.
type VerificationPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// PasswordResetPayload is the payload of a KindPasswordReset job.
type PasswordResetPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// WelcomePayload is the payload of a KindWelcome job.
type WelcomePayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AccountLockedPayload is the payload of a KindAccountLocked job.
type AccountLockedPayload struct {
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	LockedAt time.Time `json:"locked_at"`
}

// InvitationPayload is the payload of a KindInvitation job.
type InvitationPayload struct {
	Email     string `json:"email"`
	InvitedBy string `json:"invited_by"`
	Token     string `json:"token"`
}

func checkEmail(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty recipient", common.ErrorValidation)
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", common.ErrorValidation, address, err)
	}
	return nil
}

func decodePayload[T any](raw json.RawMessage) (*T, error) {
	payload := new(T)
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", common.ErrorValidation, err)
	}
	return payload, nil
}
