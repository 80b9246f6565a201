package memory

import (
	"context"
	"testing"
	"time"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/repository"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store) (model.User, []model.Book) {
	t.Helper()
	var (
		user  model.User
		books []model.Book
	)
	require.NoError(t, s.WithinTx(context.Background(), func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().Create(context.Background(), model.User{Email: "a@b.c", Role: model.RoleUser})
		if err != nil {
			return err
		}
		for _, title := range []string{"Dune", "Anathem", "Cryptonomicon"} {
			b, err := tx.Books().Save(context.Background(), model.Book{Title: title, Author: "x", Available: true})
			if err != nil {
				return err
			}
			books = append(books, b)
		}
		return nil
	}))
	return user, books
}

func TestWithinTx(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, books := seed(t, s)
	require.Equal(t, 4, s.Writes())

	sentinel := errors.New("abort")
	err := s.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.Books().DeleteByID(ctx, books[0].ID); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 4, s.Writes())

	require.NoError(t, s.ReadOnly(ctx, func(tx repository.Tx) error {
		ok, err := tx.Books().ExistsByID(ctx, books[0].ID)
		require.NoError(t, err)
		assert.True(t, ok, "rolled back delete must not be visible")

		_, err = tx.Books().Save(ctx, model.Book{Title: "x"})
		assert.ErrorIs(t, err, errReadOnly)
		return nil
	}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.WithinTx(cancelled, func(repository.Tx) error { return nil }), context.Canceled)
}

func TestConstraints(t *testing.T) {
	ctx := context.Background()
	s := New()
	user, books := seed(t, s)
	isbn := "0306406152"

	err := s.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Books().Save(ctx, model.Book{Title: "a", Author: "b", Isbn: &isbn}); err != nil {
			return err
		}
		_, err := tx.Books().Save(ctx, model.Book{Title: "c", Author: "d", Isbn: &isbn})
		return err
	})
	assert.ErrorIs(t, err, errs.ErrConflict)

	err = s.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.Users().Create(ctx, model.User{Email: "a@b.c"})
		return err
	})
	assert.ErrorIs(t, err, errs.ErrConflict)

	loan := model.Loan{
		UserID:   user.ID,
		BookID:   books[0].ID,
		LoanDate: model.NewDate(2024, time.January, 1),
		DueDate:  model.NewDate(2024, time.January, 15),
		Status:   model.LoanStatusActive,
	}
	require.NoError(t, s.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.Loans().Save(ctx, loan)
		return err
	}))

	err = s.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.Loans().Save(ctx, loan)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrBookNotAvailable)

	err = s.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.Books().DeleteByID(ctx, books[0].ID)
	})
	assert.ErrorIs(t, err, errs.ErrConflict)

	err = s.WithinTx(ctx, func(tx repository.Tx) error {
		l := loan
		l.UserID = 42
		l.BookID = books[1].ID
		_, err := tx.Loans().Save(ctx, l)
		return err
	})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestFindAvailablePaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	seed(t, s)

	require.NoError(t, s.ReadOnly(ctx, func(tx repository.Tx) error {
		page, err := tx.Books().FindAvailable(ctx, model.PageRequest{Page: 1, Size: 2, Sort: "title"})
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalElements)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "Anathem", page.Items[0].Title)
		assert.Equal(t, "Cryptonomicon", page.Items[1].Title)

		page, err = tx.Books().FindAvailable(ctx, model.PageRequest{Page: 2, Size: 2, Sort: "title"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Dune", page.Items[0].Title)

		page, err = tx.Books().FindAvailable(ctx, model.PageRequest{Page: 1, Size: 1, Sort: "title", Desc: true})
		require.NoError(t, err)
		assert.Equal(t, "Dune", page.Items[0].Title)

		page, err = tx.Books().FindAvailable(ctx, model.PageRequest{Page: 9, Size: 2})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		return nil
	}))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithinTx(ctx, func(tx repository.Tx) error {
		for _, email := range []string{"cid@x.io", "ann@x.io", "bob@x.io"} {
			if _, err := tx.Users().Create(ctx, model.User{Email: email, FirstName: "F", LastName: "L"}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.ReadOnly(ctx, func(tx repository.Tx) error {
		page, err := tx.Users().FindAll(ctx, model.PageRequest{Page: 1, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalElements)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "ann@x.io", page.Items[0].Email)
		assert.Equal(t, "bob@x.io", page.Items[1].Email)

		page, err = tx.Users().FindAll(ctx, model.PageRequest{Page: 1, Size: 1, Sort: "id", Desc: true})
		require.NoError(t, err)
		assert.Equal(t, "bob@x.io", page.Items[0].Email)

		_, err = tx.Users().UpdateName(ctx, model.User{ID: 1, FirstName: "X"})
		assert.ErrorIs(t, err, errReadOnly)
		return nil
	}))

	var updated model.User
	require.NoError(t, s.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		updated, err = tx.Users().UpdateName(ctx, model.User{ID: 1, FirstName: "Cid", LastName: "Moreau", Email: "ignored@x.io"})
		return err
	}))
	assert.Equal(t, "cid@x.io", updated.Email)
	assert.Equal(t, "Cid", updated.FirstName)
	assert.Equal(t, "Moreau", updated.LastName)

	err := s.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.Users().UpdateName(ctx, model.User{ID: 42, FirstName: "No"})
		return err
	})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
