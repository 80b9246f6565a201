package repository

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var loanColumns = []string{"id", "user_id", "book_id", "loan_date", "due_date", "return_date", "status", "created_at"}

var loanSortColumns = map[string]string{
	"loanDate":  "loan_date",
	"dueDate":   "due_date",
	"createdAt": "created_at",
	"id":        "id",
}

type loanStore struct {
	q   Querier
	log *zap.Logger
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func openStatuses() []string {
	out := make([]string, 0, len(model.OpenLoanStatuses))
	for _, s := range model.OpenLoanStatuses {
		out = append(out, string(s))
	}
	return out
}

func (s *loanStore) collectOne(ctx context.Context, query string, args []any) (model.Loan, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return model.Loan{}, err
	}
	defer rows.Close()
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Loan])
}

func (s *loanStore) collect(ctx context.Context, b sq.SelectBuilder) ([]model.Loan, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Loan])
	if err != nil {
		return nil, errors.Wrap(err, "pgx.CollectRows")
	}
	return loans, nil
}

func (s *loanStore) Get(ctx context.Context, id int64) (model.Loan, error) {
	return s.getBy(ctx, id, false)
}

func (s *loanStore) GetForUpdate(ctx context.Context, id int64) (model.Loan, error) {
	return s.getBy(ctx, id, true)
}

func (s *loanStore) getBy(ctx context.Context, id int64, lock bool) (model.Loan, error) {
	b := qb.Select(loanColumns...).From(loansTableName).Where(sq.Eq{"id": id})
	if lock {
		b = b.Suffix("for update")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	loan, err := s.collectOne(ctx, query, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Loan{}, errs.NotFound("Loan", id)
	}
	return loan, err
}

// Save inserts a loan without id, otherwise it persists status and return date.
// Dates and references of an existing loan never change.
func (s *loanStore) Save(ctx context.Context, loan model.Loan) (model.Loan, error) {
	var (
		query string
		args  []any
		err   error
	)
	if loan.ID == 0 {
		query, args, err = qb.Insert(loansTableName).
			Columns("user_id", "book_id", "loan_date", "due_date", "return_date", "status").
			Values(loan.UserID, loan.BookID, loan.LoanDate, loan.DueDate, loan.ReturnDate, loan.Status).
			Suffix("returning " + joinColumns(loanColumns)).
			ToSql()
	} else {
		query, args, err = qb.Update(loansTableName).
			Set("status", loan.Status).
			Set("return_date", loan.ReturnDate).
			Where(sq.Eq{"id": loan.ID}).
			Suffix("returning " + joinColumns(loanColumns)).
			ToSql()
	}
	if err != nil {
		return model.Loan{}, err
	}

	saved, err := s.collectOne(ctx, query, args)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Loan{}, errs.NotFound("Loan", loan.ID)
		}
		s.log.Error("save loan", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return model.Loan{}, translate(err)
	}
	return saved, nil
}

func (s *loanStore) CountActiveForUser(ctx context.Context, userID int64) (int, error) {
	return count(ctx, s.q, qb.Select("count(*)").
		From(loansTableName).
		Where(sq.Eq{"user_id": userID, "status": openStatuses()}))
}

func (s *loanStore) CountByBook(ctx context.Context, bookID int64) (int, error) {
	return count(ctx, s.q, qb.Select("count(*)").
		From(loansTableName).
		Where(sq.Eq{"book_id": bookID}))
}

func (s *loanStore) FindOverdue(ctx context.Context, asOf model.Date) ([]model.Loan, error) {
	return s.collect(ctx, qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"status": openStatuses()}).
		Where(sq.Lt{"due_date": asOf}).
		OrderBy("due_date", "id").
		Suffix("for update"))
}

func (s *loanStore) FindByUser(ctx context.Context, userID int64, page model.PageRequest) (model.Page[model.Loan], error) {
	return s.page(ctx, sq.Eq{"user_id": userID}, page)
}

func (s *loanStore) FindAll(ctx context.Context, page model.PageRequest) (model.Page[model.Loan], error) {
	return s.page(ctx, nil, page)
}

func (s *loanStore) page(ctx context.Context, where sq.Sqlizer, page model.PageRequest) (model.Page[model.Loan], error) {
	page = page.Normalize()

	countQ := qb.Select("count(*)").From(loansTableName)
	itemsQ := qb.Select(loanColumns...).From(loansTableName)
	if where != nil {
		countQ = countQ.Where(where)
		itemsQ = itemsQ.Where(where)
	}

	total, err := count(ctx, s.q, countQ)
	if err != nil {
		return model.Page[model.Loan]{}, err
	}
	loans, err := s.collect(ctx, itemsQ.
		OrderBy(orderBy(page, loanSortColumns, "loan_date")...).
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset())))
	if err != nil {
		return model.Page[model.Loan]{}, err
	}
	return model.Page[model.Loan]{
		Paging: model.Paging{
			Page:          page.Page,
			PageSize:      page.Size,
			TotalElements: total,
		},
		Items: loans,
	}, nil
}
