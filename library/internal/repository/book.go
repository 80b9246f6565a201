package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var bookColumns = []string{"id", "title", "author", "isbn", "publisher", "publish_year", "available", "created_at"}

var bookSortColumns = map[string]string{
	"title":       "title",
	"author":      "author",
	"publishYear": "publish_year",
	"createdAt":   "created_at",
	"id":          "id",
}

type bookStore struct {
	q   Querier
	log *zap.Logger
}

func (s *bookStore) get(ctx context.Context, b sq.SelectBuilder) (model.Book, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return model.Book{}, err
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, err
	}
	defer rows.Close()

	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
}

func (s *bookStore) Get(ctx context.Context, id int64) (model.Book, error) {
	book, err := s.get(ctx, qb.Select(bookColumns...).From(booksTableName).Where(sq.Eq{"id": id}))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Book{}, errs.NotFound("Book", id)
	}
	return book, err
}

func (s *bookStore) GetForUpdate(ctx context.Context, id int64) (model.Book, error) {
	book, err := s.get(ctx, qb.Select(bookColumns...).From(booksTableName).Where(sq.Eq{"id": id}).Suffix("for update"))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Book{}, errs.NotFound("Book", id)
	}
	return book, err
}

func (s *bookStore) FindByIsbn(ctx context.Context, isbn string) (model.Book, error) {
	book, err := s.get(ctx, qb.Select(bookColumns...).From(booksTableName).Where(sq.Eq{"isbn": isbn}))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Book{}, errs.NotFound("Book with isbn", isbn)
	}
	return book, err
}

// Save inserts a book without id and updates it otherwise.
func (s *bookStore) Save(ctx context.Context, book model.Book) (model.Book, error) {
	if book.ID == 0 {
		return s.insert(ctx, book)
	}
	query, args, err := qb.Update(booksTableName).
		SetMap(map[string]any{
			"title":        book.Title,
			"author":       book.Author,
			"isbn":         book.Isbn,
			"publisher":    book.Publisher,
			"publish_year": book.PublishYear,
			"available":    book.Available,
		}).
		Where(sq.Eq{"id": book.ID}).
		Suffix("returning " + joinColumns(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	saved, err := s.collect(ctx, query, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Book{}, errs.NotFound("Book", book.ID)
	}
	return saved, err
}

func (s *bookStore) insert(ctx context.Context, book model.Book) (model.Book, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "isbn", "publisher", "publish_year", "available").
		Values(book.Title, book.Author, book.Isbn, book.Publisher, book.PublishYear, book.Available).
		Suffix("returning " + joinColumns(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	saved, err := s.collect(ctx, query, args)
	if err != nil {
		s.log.Error("insert book", zap.String("q", query), zap.Error(err))
		return model.Book{}, translate(err)
	}
	return saved, nil
}

func (s *bookStore) collect(ctx context.Context, query string, args []any) (model.Book, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, err
	}
	defer rows.Close()
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
}

func (s *bookStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `select exists(select 1 from books where id = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *bookStore) DeleteByID(ctx context.Context, id int64) error {
	query, args, err := qb.Delete(booksTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("Book", id)
	}
	return nil
}

func (s *bookStore) FindAvailable(ctx context.Context, page model.PageRequest) (model.Page[model.Book], error) {
	page = page.Normalize()
	where := sq.Eq{"available": true}

	total, err := count(ctx, s.q, qb.Select("count(*)").From(booksTableName).Where(where))
	if err != nil {
		return model.Page[model.Book]{}, err
	}

	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(where).
		OrderBy(orderBy(page, bookSortColumns, "title")...).
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return model.Page[model.Book]{}, err
	}
	s.log.Debug("FindAvailable", zap.String("query", query), zap.Any("args", args))

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return model.Page[model.Book]{}, err
	}
	defer rows.Close()

	books, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return model.Page[model.Book]{}, errors.Wrap(err, "pgx.CollectRows")
	}
	return model.Page[model.Book]{
		Paging: model.Paging{
			Page:          page.Page,
			PageSize:      page.Size,
			TotalElements: total,
		},
		Items: books,
	}, nil
}
