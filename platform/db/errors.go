package db

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsTransient reports whether err is a retryable storage failure: a timeout,
// a dropped connection, or a postgres connection-class error. Transient
// failures are never data corruption; callers may retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception.
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}

	return pgconn.Timeout(err)
}
