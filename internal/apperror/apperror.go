// Package apperror defines the error kinds surfaced by the grid ledger and
// the energy pool. Handlers map each kind to one HTTP status.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrConflict              = errors.New("conflict")
	ErrForbidden             = errors.New("forbidden")
)

type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}

func NotFound(resource string) *AppError {
	return &AppError{Err: ErrNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func InvalidArgument(field, message string) *AppError {
	return &AppError{Err: ErrInvalidArgument, Message: message, Field: field}
}

// InsufficientInventory reports that requested units exceed what is on hand.
func InsufficientInventory(requested, available int64) *AppError {
	return &AppError{
		Err:     ErrInsufficientInventory,
		Message: fmt.Sprintf("requested %d units but only %d available", requested, available),
	}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Message: message}
}

// Kind returns the sentinel for err, or nil when err carries no known kind.
func Kind(err error) error {
	for _, kind := range []error{ErrUnauthorized, ErrNotFound, ErrInvalidArgument, ErrInsufficientInventory, ErrConflict, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
