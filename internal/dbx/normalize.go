package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/avolkovs/authkeeper/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// NormalizeError translates driver-specific failures into the shared sentinel
// errors so that repository callers never see pgx/pgconn details. It is the
// single place where store errors cross into the application taxonomy.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%w: %v", common.ErrorConflict, pgErr.ConstraintName)
		case pgErr.Code == "23503": // foreign_key_violation
			return fmt.Errorf("%w: %v", common.ErrorValidation, pgErr.ConstraintName)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection exceptions
			return fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
		case pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03": // shutdown / cannot connect
			return fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
		}
		return fmt.Errorf("db error: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrorUnavailable, err)
	}

	return fmt.Errorf("db error: %w", err)
}
