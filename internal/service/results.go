package service

import (
	"errors"

	apperrors "picker-service/pkg/errors"
)

// Per-record result statuses
const (
	ResultSuccess       = "SUCCESS"
	ResultAlreadyExists = "ALREADY_EXISTS"
	ResultFailed        = "FAILED"
	ResultSkipped       = "SKIPPED"
)

// Failure codes that are not validation codes
const (
	CodeNotFound = "NOT_FOUND"
	CodeConflict = "CONFLICT"
	CodeInternal = "INTERNAL"
)

// failure maps an error onto a per-record code and a message that is safe
// to return to the caller. Unexpected errors only surface as "internal error".
func failure(err error) (code, message string) {
	var validationErr *apperrors.ErrValidation
	var notFoundErr *apperrors.ErrNotFound
	var conflictErr *apperrors.ErrConflict

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Code, validationErr.Error()
	case errors.As(err, &notFoundErr):
		return CodeNotFound, notFoundErr.Error()
	case errors.As(err, &conflictErr):
		return CodeConflict, conflictErr.Error()
	}
	return CodeInternal, "internal error"
}
