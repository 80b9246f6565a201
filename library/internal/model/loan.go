package model

import (
	"time"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/pkg/errors"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusOverdue  LoanStatus = "OVERDUE"
	LoanStatusReturned LoanStatus = "RETURNED"
)

// OpenLoanStatuses are the statuses under which the book is out.
var OpenLoanStatuses = []LoanStatus{LoanStatusActive, LoanStatusOverdue}

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanStatusActive, LoanStatusOverdue, LoanStatusReturned:
		return true
	}
	return false
}

func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusActive || s == LoanStatusOverdue
}

// CanTransitionTo is the whole state machine:
// ACTIVE -> OVERDUE, ACTIVE -> RETURNED, OVERDUE -> RETURNED.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	switch s {
	case LoanStatusActive:
		return next == LoanStatusOverdue || next == LoanStatusReturned
	case LoanStatusOverdue:
		return next == LoanStatusReturned
	}
	return false
}

type Loan struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"userId" db:"user_id"`
	BookID     int64      `json:"bookId" db:"book_id"`
	LoanDate   Date       `json:"loanDate" db:"loan_date"`
	DueDate    Date       `json:"dueDate" db:"due_date"`
	ReturnDate *Date      `json:"returnDate" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}

func (l *Loan) transition(next LoanStatus) error {
	if !l.Status.CanTransitionTo(next) {
		return errors.Wrapf(errs.ErrInvalidLoanOperation, "loan %d: %s -> %s is not allowed", l.ID, l.Status, next)
	}
	l.Status = next
	return nil
}

// Return closes the loan on the given day. Returned loans cannot be returned again.
func (l *Loan) Return(on Date) error {
	if err := l.transition(LoanStatusReturned); err != nil {
		return err
	}
	l.ReturnDate = &on
	return nil
}

// MarkOverdue is only valid for an ACTIVE loan whose due date is before asOf.
func (l *Loan) MarkOverdue(asOf Date) error {
	if !l.DueDate.Before(asOf) {
		return errors.Wrapf(errs.ErrInvalidLoanOperation, "loan %d is not past due on %s", l.ID, asOf)
	}
	return l.transition(LoanStatusOverdue)
}

// IsOverdue reports whether the loan is open and past due as of the given day.
func (l Loan) IsOverdue(asOf Date) bool {
	return l.Status.IsOpen() && l.DueDate.Before(asOf)
}

type CreateLoanRequest struct {
	UserID   int64 `json:"userId" validate:"required,gt=0"`
	BookID   int64 `json:"bookId" validate:"required,gt=0"`
	LoanDate *Date `json:"loanDate" validate:"omitempty,notfuture"`
	DueDate  *Date `json:"dueDate" validate:"omitempty,future"`
}

// LoanFilter selects all loans when UserID is nil.
type LoanFilter struct {
	UserID *int64
}

func LoansOfUser(userID int64) LoanFilter {
	return LoanFilter{UserID: &userID}
}

func AllLoans() LoanFilter {
	return LoanFilter{}
}
