package service

import (
	"context"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type BookService struct {
	tx       repository.Transactor
	log      *zap.Logger
	observer Observer
}

func NewBookService(tx repository.Transactor, log *zap.Logger) *BookService {
	return &BookService{
		tx:       tx,
		log:      log.Named("book"),
		observer: NopObserver{},
	}
}

func (s *BookService) GetAvailableBooks(ctx context.Context, page model.PageRequest) (model.Page[model.Book], error) {
	var out model.Page[model.Book]
	err := s.tx.ReadOnly(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Books().FindAvailable(ctx, page)
		return err
	})
	return out, err
}

func (s *BookService) GetBook(ctx context.Context, id int64) (model.Book, error) {
	var book model.Book
	err := s.tx.ReadOnly(ctx, func(tx repository.Tx) error {
		var err error
		book, err = tx.Books().Get(ctx, id)
		return err
	})
	return book, err
}

// CreateBook adds an available book. A duplicate ISBN is an errs.ErrConflict.
func (s *BookService) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	var created model.Book
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		if req.Isbn != nil {
			if err := ensureIsbnFree(ctx, tx, *req.Isbn, 0); err != nil {
				return err
			}
		}
		var err error
		created, err = tx.Books().Save(ctx, model.Book{
			Title:       req.Title,
			Author:      req.Author,
			Isbn:        req.Isbn,
			Publisher:   req.Publisher,
			PublishYear: req.PublishYear,
			Available:   true,
		})
		return err
	})
	if err != nil {
		return model.Book{}, err
	}
	s.log.Info("book created", zap.Int64("bookId", created.ID), zap.String("title", created.Title))
	if err := s.observer.BookAdded(ctx, created); err != nil {
		s.log.Warn("observer BookAdded", zap.Int64("bookId", created.ID), zap.Error(err))
	}
	return created, nil
}

// UpdateBook changes the descriptive fields only. Availability belongs to the loan engine.
func (s *BookService) UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest) (model.Book, error) {
	var updated model.Book
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		book, err := tx.Books().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Isbn != nil && (book.Isbn == nil || *book.Isbn != *req.Isbn) {
			if err := ensureIsbnFree(ctx, tx, *req.Isbn, id); err != nil {
				return err
			}
		}
		req.Apply(&book)
		updated, err = tx.Books().Save(ctx, book)
		return err
	})
	return updated, err
}

// DeleteBook removes a book that was never lent. Loans are history and keep their book.
func (s *BookService) DeleteBook(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		exists, err := tx.Books().ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return errs.NotFound("Book", id)
		}
		n, err := tx.Loans().CountByBook(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.Wrapf(errs.ErrConflict, "book %d is referenced by %d loans", id, n)
		}
		return tx.Books().DeleteByID(ctx, id)
	})
}

func ensureIsbnFree(ctx context.Context, tx repository.Tx, isbn string, selfID int64) error {
	other, err := tx.Books().FindByIsbn(ctx, isbn)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != selfID:
		return errors.Wrapf(errs.ErrConflict, "book with isbn %s already exists", isbn)
	}
	return nil
}
