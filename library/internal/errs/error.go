package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrLoanLimitExceeded    = errors.New("loan limit exceeded")
	ErrBookNotAvailable     = errors.New("book not available")
	ErrInvalidLoanOperation = errors.New("invalid loan operation")
	ErrConflict             = errors.New("conflict")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	// ErrTransient is a lock timeout or serialization failure; the caller may retry.
	ErrTransient = errors.New("transient storage conflict")
)

type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with id %v", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(resource string, id any) error {
	return &NotFoundError{Resource: resource, ID: id}
}

type LoanLimitError struct {
	Count int
	Limit int
}

func (e *LoanLimitError) Error() string {
	return fmt.Sprintf("user already has %d active loans, maximum is %d", e.Count, e.Limit)
}

func (e *LoanLimitError) Is(target error) bool {
	return target == ErrLoanLimitExceeded
}

type BookNotAvailableError struct {
	BookID int64
	Title  string
}

func (e *BookNotAvailableError) Error() string {
	if e.Title == "" {
		return fmt.Sprintf("book %d is not available", e.BookID)
	}
	return fmt.Sprintf("book is not available: %s", e.Title)
}

func (e *BookNotAvailableError) Is(target error) bool {
	return target == ErrBookNotAvailable
}
