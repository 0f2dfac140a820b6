package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"millstock/internal/core/apperror"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// MapError translates constraint and concurrency failures into AppErrors.
// Anything else is returned unchanged.
func MapError(err error, entity string, key any) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		value := ""
		if key != nil {
			value = toString(key)
		}
		return apperror.NewDuplicate(entity, pgErr.ConstraintName, value).WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewNotFound(entity, key).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgCheckViolation:
		return apperror.NewValidation("constraint violated").
			WithDetail("entity", entity).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgSerializationFailure, pgDeadlockDetected:
		// The posting engine retries these like a stale version.
		return apperror.NewConcurrentModification(entity, key).WithCause(err)
	}
	return err
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
