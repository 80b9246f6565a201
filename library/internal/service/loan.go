package service

import (
	"context"
	"time"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type LoanService struct {
	tx       repository.Transactor
	policy   Policy
	observer Observer
	now      func() time.Time
	log      *zap.Logger
}

func NewLoanService(tx repository.Transactor, policy Policy, log *zap.Logger) *LoanService {
	return &LoanService{
		tx:       tx,
		policy:   policy.withDefaults(),
		observer: NopObserver{},
		now:      time.Now,
		log:      log.Named("loan"),
	}
}

// CreateLoan lends a book. The book and user rows stay locked until the loan is stored,
// so concurrent requests see each other's effect on availability and on the user's count.
func (s *LoanService) CreateLoan(ctx context.Context, req model.CreateLoanRequest) (model.Loan, error) {
	loanDate := today(s.now)
	if req.LoanDate != nil {
		loanDate = *req.LoanDate
	}
	dueDate := loanDate.AddDays(s.policy.DefaultLoanPeriodDays)
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}

	var created model.Loan
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		book, err := tx.Books().GetForUpdate(ctx, req.BookID)
		if err != nil {
			return err
		}
		if _, err := tx.Users().GetForUpdate(ctx, req.UserID); err != nil {
			return err
		}

		active, err := tx.Loans().CountActiveForUser(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "count active loans")
		}
		if active >= s.policy.MaxActiveLoans {
			return &errs.LoanLimitError{Count: active, Limit: s.policy.MaxActiveLoans}
		}
		if !book.Available {
			return &errs.BookNotAvailableError{BookID: book.ID, Title: book.Title}
		}
		if dueDate.Before(loanDate) {
			return errors.Wrapf(errs.ErrInvalidLoanOperation,
				"due date %s is before loan date %s", dueDate, loanDate)
		}

		created, err = tx.Loans().Save(ctx, model.Loan{
			UserID:   req.UserID,
			BookID:   req.BookID,
			LoanDate: loanDate,
			DueDate:  dueDate,
			Status:   model.LoanStatusActive,
		})
		if err != nil {
			return err
		}

		book.Available = false
		if _, err := tx.Books().Save(ctx, book); err != nil {
			return errors.Wrap(err, "mark book unavailable")
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, err
	}

	s.log.Info("loan created",
		zap.Int64("loanId", created.ID), zap.Int64("userId", created.UserID), zap.Int64("bookId", created.BookID))
	if err := s.observer.LoanCreated(ctx, created); err != nil {
		s.log.Warn("observer LoanCreated", zap.Int64("loanId", created.ID), zap.Error(err))
	}
	return created, nil
}

// ReturnLoan closes an open loan today and makes its book available again.
// A loan that is already returned is rejected with errs.ErrInvalidLoanOperation.
func (s *LoanService) ReturnLoan(ctx context.Context, loanID int64) (model.Loan, error) {
	var returned model.Loan
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		loan, err := tx.Loans().GetForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if err := loan.Return(today(s.now)); err != nil {
			return err
		}

		book, err := tx.Books().GetForUpdate(ctx, loan.BookID)
		if err != nil {
			return err
		}
		book.Available = true
		if _, err := tx.Books().Save(ctx, book); err != nil {
			return errors.Wrap(err, "mark book available")
		}

		returned, err = tx.Loans().Save(ctx, loan)
		return err
	})
	if err != nil {
		return model.Loan{}, err
	}

	s.log.Info("loan returned", zap.Int64("loanId", returned.ID), zap.Int64("bookId", returned.BookID))
	if err := s.observer.LoanReturned(ctx, returned); err != nil {
		s.log.Warn("observer LoanReturned", zap.Int64("loanId", returned.ID), zap.Error(err))
	}
	return returned, nil
}

func (s *LoanService) GetLoan(ctx context.Context, loanID int64) (model.Loan, error) {
	var loan model.Loan
	err := s.tx.ReadOnly(ctx, func(tx repository.Tx) error {
		var err error
		loan, err = tx.Loans().Get(ctx, loanID)
		return err
	})
	return loan, err
}

// ListLoans pages through the loans of one user, or all loans when the filter has no user.
func (s *LoanService) ListLoans(ctx context.Context, filter model.LoanFilter, page model.PageRequest) (model.Page[model.Loan], error) {
	var out model.Page[model.Loan]
	err := s.tx.ReadOnly(ctx, func(tx repository.Tx) error {
		var err error
		if filter.UserID == nil {
			out, err = tx.Loans().FindAll(ctx, page)
			return err
		}
		exists, err := tx.Users().ExistsByID(ctx, *filter.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return errs.NotFound("User", *filter.UserID)
		}
		out, err = tx.Loans().FindByUser(ctx, *filter.UserID, page)
		return err
	})
	return out, err
}

// SweepOverdue marks ACTIVE loans due before asOf as OVERDUE and returns every loan overdue as of that day.
// Loans already OVERDUE are returned without being written again.
func (s *LoanService) SweepOverdue(ctx context.Context, asOf model.Date) ([]model.Loan, error) {
	var overdue, marked []model.Loan
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		found, err := tx.Loans().FindOverdue(ctx, asOf)
		if err != nil {
			return errors.Wrap(err, "find overdue")
		}
		overdue = make([]model.Loan, 0, len(found))
		marked = marked[:0]
		for _, loan := range found {
			if loan.Status == model.LoanStatusActive {
				if err := loan.MarkOverdue(asOf); err != nil {
					return err
				}
				if loan, err = tx.Loans().Save(ctx, loan); err != nil {
					return err
				}
				marked = append(marked, loan)
			}
			overdue = append(overdue, loan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(marked) > 0 {
		s.log.Info("loans marked overdue", zap.Int("count", len(marked)), zap.Stringer("asOf", asOf))
		if err := s.observer.LoansMarkedOverdue(ctx, marked); err != nil {
			s.log.Warn("observer LoansMarkedOverdue", zap.Int("count", len(marked)), zap.Error(err))
		}
	}
	return overdue, nil
}

// Today is the engine's notion of the current day.
func (s *LoanService) Today() model.Date {
	return today(s.now)
}
