package errors

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the field name from a unique violation detail:
// "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError maps database errors to AppError instances:
//   - pgx.ErrNoRows → NotFound
//   - unique constraint violations → Conflict
//   - NOT NULL / CHECK violations → Validation
//   - context timeouts/cancellations → Timeout/Canceled
//
// If the error is not a recognized database error, it returns the original error.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.NotNullViolation, pgerrcode.CheckViolation:
		field := pgErr.ColumnName
		if field != "" {
			return &AppError{Code: ErrCodeValidation, Message: "Invalid value for this field.", Field: field, Cause: pgErr}
		}
		return &AppError{Code: ErrCodeValidation, Message: "Invalid data. Please check your input.", Cause: pgErr}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred. Please try again.", Cause: pgErr}
	}
}

func mapUniqueViolation(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}
	return &AppError{
		Code:    ErrCodeConflict,
		Message: "This value already exists. Please choose a different one.",
		Field:   field,
		Cause:   pgErr,
	}
}
