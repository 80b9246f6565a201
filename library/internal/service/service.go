package service

import (
	"time"

	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultMaxActiveLoans = 3
	DefaultLoanPeriodDays = 14
)

// Policy holds the borrowing rules. Zero values fall back to the defaults.
type Policy struct {
	MaxActiveLoans        int
	DefaultLoanPeriodDays int
}

func (p Policy) withDefaults() Policy {
	if p.MaxActiveLoans <= 0 {
		p.MaxActiveLoans = DefaultMaxActiveLoans
	}
	if p.DefaultLoanPeriodDays <= 0 {
		p.DefaultLoanPeriodDays = DefaultLoanPeriodDays
	}
	return p
}

type Option func(s *Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.LoanService.now = now
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.LoanService.observer = o
			s.BookService.observer = o
			s.UserService.observer = o
		}
	}
}

// Service groups the loan engine with the catalogue and user lookups.
type Service struct {
	*LoanService
	*BookService
	*UserService
}

func NewService(tx repository.Transactor, policy Policy, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		LoanService: NewLoanService(tx, policy, log),
		BookService: NewBookService(tx, log),
		UserService: NewUserService(tx, log),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func today(now func() time.Time) model.Date {
	return model.DateOf(now())
}
