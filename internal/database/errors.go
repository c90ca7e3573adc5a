package database

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTransient is returned once a transaction kept failing on lock contention
// after every retry attempt. The last storage error is wrapped alongside it.
var ErrTransient = errors.New("transient storage error")

// IsTransient reports whether err is a storage-engine contention failure that
// is worth retrying: serialization failure, deadlock or lock wait timeout.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.LockNotAvailable:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// optionally on one of the named constraints or indexes.
func IsUniqueViolation(err error, constraints ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pgErr.ConstraintName == c {
			return true
		}
	}
	return false
}

// errorType labels err for log lines.
func errorType(err error) string {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &pgErr):
		return "pg_" + pgErr.Code
	default:
		return "other"
	}
}
