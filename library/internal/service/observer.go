package service

import (
	"context"

	"github.com/booktrack/library-service/library/internal/model"
)

// Observer is notified after a transaction has committed.
// Its errors are logged and never fail the operation.
type Observer interface {
	LoanCreated(ctx context.Context, loan model.Loan) error
	LoanReturned(ctx context.Context, loan model.Loan) error
	LoansMarkedOverdue(ctx context.Context, loans []model.Loan) error
	BookAdded(ctx context.Context, book model.Book) error
	UserRegistered(ctx context.Context, user model.User) error
}

type NopObserver struct{}

func (NopObserver) LoanCreated(context.Context, model.Loan) error          { return nil }
func (NopObserver) LoanReturned(context.Context, model.Loan) error         { return nil }
func (NopObserver) LoansMarkedOverdue(context.Context, []model.Loan) error { return nil }
func (NopObserver) BookAdded(context.Context, model.Book) error            { return nil }
func (NopObserver) UserRegistered(context.Context, model.User) error       { return nil }
