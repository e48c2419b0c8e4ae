package repository

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// PostgreSQL error codes the repositories care about
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// isNoRows reports whether the error means "no matching row"
func isNoRows(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation reports whether the error is a unique constraint breach
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// mapWriteError converts a driver error into the domain taxonomy
func mapWriteError(err error, resource, conflictMessage string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return errors.NewConflictError(conflictMessage)
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return errors.NewValidationError("UNKNOWN_REFERENCE",
			resource+" references an entity that does not exist")
	}
	return errors.NewDependencyError("database", "write to "+resource+" failed").WithCause(err)
}

// mapReadError converts a driver error into the domain taxonomy. No-rows is
// not an error at this layer; repositories return nil for absent entities.
func mapReadError(err error, resource string) error {
	if err == nil || isNoRows(err) {
		return nil
	}
	return errors.NewDependencyError("database", "read from "+resource+" failed").WithCause(err)
}
