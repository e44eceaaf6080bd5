package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"courier-dispatch/internal/apperr"
)

const pgUniqueViolation = "23505"

// IsDuplicate reports a unique key violation.
func IsDuplicate(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == pgUniqueViolation
}

// IsNotFound reports an empty single-row result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDataError reports errors that replaying the same statement cannot fix:
// data exceptions (class 22) and integrity violations (class 23).
func isDataError(err error) bool {
	var pgerr *pgconn.PgError
	if !errors.As(err, &pgerr) {
		return false
	}
	return strings.HasPrefix(pgerr.Code, "22") || strings.HasPrefix(pgerr.Code, "23")
}

// wrapWrite annotates a failed write; rejected data is marked permanent so
// the outward relay stops retrying it.
func wrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	if isDataError(err) {
		return apperr.Permanent(wrapped)
	}
	return wrapped
}
