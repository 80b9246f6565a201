package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// BookStore returns errs.ErrNotFound (as *errs.NotFoundError) for missing rows.
type BookStore interface {
	Get(ctx context.Context, id int64) (model.Book, error)
	// GetForUpdate locks the book row until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (model.Book, error)
	Save(ctx context.Context, book model.Book) (model.Book, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	DeleteByID(ctx context.Context, id int64) error
	FindAvailable(ctx context.Context, page model.PageRequest) (model.Page[model.Book], error)
	FindByIsbn(ctx context.Context, isbn string) (model.Book, error)
}

type UserStore interface {
	Get(ctx context.Context, id int64) (model.User, error)
	// GetForUpdate serializes loan creation per user.
	GetForUpdate(ctx context.Context, id int64) (model.User, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, user model.User) (model.User, error)
	// UpdateName changes first and last name only.
	UpdateName(ctx context.Context, user model.User) (model.User, error)
	FindAll(ctx context.Context, page model.PageRequest) (model.Page[model.User], error)
}

type LoanStore interface {
	Save(ctx context.Context, loan model.Loan) (model.Loan, error)
	Get(ctx context.Context, id int64) (model.Loan, error)
	GetForUpdate(ctx context.Context, id int64) (model.Loan, error)
	// CountActiveForUser counts open loans, ACTIVE and OVERDUE.
	CountActiveForUser(ctx context.Context, userID int64) (int, error)
	CountByBook(ctx context.Context, bookID int64) (int, error)
	// FindOverdue returns open loans with due date before asOf, ordered by due date then id.
	FindOverdue(ctx context.Context, asOf model.Date) ([]model.Loan, error)
	FindByUser(ctx context.Context, userID int64, page model.PageRequest) (model.Page[model.Loan], error)
	FindAll(ctx context.Context, page model.PageRequest) (model.Page[model.Loan], error)
}

// Tx is the unit of work: all stores share one transaction.
type Tx interface {
	Books() BookStore
	Users() UserStore
	Loans() LoanStore
}

type Transactor interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	ReadOnly(ctx context.Context, fn func(tx Tx) error) error
}

type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	if db == nil {
		return nil, errors.New("nil pool")
	}
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName = `books`
	usersTableName = `users`
	loansTableName = `loans`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type pgTx struct {
	books *bookStore
	users *userStore
	loans *loanStore
}

func newPgTx(q Querier, log *zap.Logger) *pgTx {
	return &pgTx{
		books: &bookStore{q: q, log: log},
		users: &userStore{q: q, log: log},
		loans: &loanStore{q: q, log: log},
	}
}

func (t *pgTx) Books() BookStore { return t.books }
func (t *pgTx) Users() UserStore { return t.users }
func (t *pgTx) Loans() LoanStore { return t.loans }

func (r *repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}, fn)
}

func (r *repository) ReadOnly(ctx context.Context, fn func(tx Tx) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (r *repository) run(ctx context.Context, opts pgx.TxOptions, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return translate(errors.Wrap(err, "begin tx"))
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.log.Warn("rollback", zap.Error(err))
		}
	}()

	if err := fn(newPgTx(tx, r.log)); err != nil {
		return translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(errors.Wrap(err, "commit"))
	}
	return nil
}

func orderBy(page model.PageRequest, columns map[string]string, fallback string) []string {
	col, ok := columns[page.Sort]
	if !ok {
		col = fallback
	}
	dir := " asc"
	if page.Desc {
		dir = " desc"
	}
	if col == "id" {
		return []string{"id" + dir}
	}
	return []string{col + dir, "id" + dir}
}

func count(ctx context.Context, q Querier, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
