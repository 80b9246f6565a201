package repository

import (
	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const (
	openLoanPerBookIndex = "loans_open_book_uidx"
	usersEmailIndex      = "users_email_key"
	booksIsbnIndex       = "books_isbn_key"
)

// translate maps postgres failures onto the domain error kinds.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return errors.Wrap(errs.ErrTransient, pgErr.Message)
	case pgerrcode.UniqueViolation:
		if pgErr.ConstraintName == openLoanPerBookIndex {
			return errors.Wrap(errs.ErrBookNotAvailable, "book already has an open loan")
		}
		return errors.Wrapf(errs.ErrConflict, "duplicate value violates %s", pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		return errors.Wrapf(errs.ErrConflict, "%s is still referenced", pgErr.TableName)
	}
	return err
}
