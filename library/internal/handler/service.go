package handler

import (
	"context"

	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LoanService interface {
	CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error)
	ReturnLoan(ctx context.Context, loanID int64) (model.Loan, error)
	GetLoan(ctx context.Context, loanID int64) (model.Loan, error)
	ListLoans(ctx context.Context, filter model.LoanFilter, page model.PageRequest) (model.Page[model.Loan], error)
	SweepOverdue(ctx context.Context, asOf model.Date) ([]model.Loan, error)
	Today() model.Date
}

type BookService interface {
	GetAvailableBooks(ctx context.Context, page model.PageRequest) (model.Page[model.Book], error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

type UserService interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	ListUsers(ctx context.Context, page model.PageRequest) (model.Page[model.User], error)
	UpdateUser(ctx context.Context, id int64, req model.UpdateUserRequest) (model.User, error)
	Authenticate(ctx context.Context, email, password string) (model.User, error)
}

var (
	_ LoanService = (*service.LoanService)(nil)
	_ BookService = (*service.BookService)(nil)
	_ UserService = (*service.UserService)(nil)
)
