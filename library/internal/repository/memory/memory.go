// Package memory is an in-process Transactor. Transactions are serialized by one lock and work on a
// copy of the data that replaces the committed state only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/repository"
	"github.com/pkg/errors"
)

var errReadOnly = errors.New("write in read-only transaction")

type Store struct {
	mu     sync.RWMutex
	data   *state
	writes int
	now    func() time.Time
}

type state struct {
	books   map[int64]model.Book
	users   map[int64]model.User
	loans   map[int64]model.Loan
	bookSeq int64
	userSeq int64
	loanSeq int64
}

func New() *Store {
	return &Store{
		data: &state{
			books: make(map[int64]model.Book),
			users: make(map[int64]model.User),
			loans: make(map[int64]model.Loan),
		},
		now: time.Now,
	}
}

var _ repository.Transactor = (*Store)(nil)

func (s *state) clone() *state {
	c := *s
	c.books = make(map[int64]model.Book, len(s.books))
	for k, v := range s.books {
		c.books[k] = v
	}
	c.users = make(map[int64]model.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.loans = make(map[int64]model.Loan, len(s.loans))
	for k, v := range s.loans {
		c.loans[k] = v
	}
	return &c
}

// Writes is the number of committed row writes, used to observe idempotency.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{data: s.data.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	s.writes += tx.writes
	return nil
}

func (s *Store) ReadOnly(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memTx{data: s.data, readOnly: true, now: s.now})
}

type memTx struct {
	data     *state
	readOnly bool
	writes   int
	now      func() time.Time
}

func (t *memTx) Books() repository.BookStore { return bookStore{t} }
func (t *memTx) Users() repository.UserStore { return userStore{t} }
func (t *memTx) Loans() repository.LoanStore { return loanStore{t} }

func (t *memTx) write() error {
	if t.readOnly {
		return errReadOnly
	}
	t.writes++
	return nil
}

func paginate[T any](items []T, page model.PageRequest) model.Page[T] {
	page = page.Normalize()
	total := len(items)
	from := page.Offset()
	if from > total {
		from = total
	}
	to := from + page.Size
	if to > total {
		to = total
	}
	out := make([]T, to-from)
	copy(out, items[from:to])
	return model.Page[T]{
		Paging: model.Paging{
			Page:          page.Page,
			PageSize:      page.Size,
			TotalElements: total,
		},
		Items: out,
	}
}

// sortBy orders by key, ties broken by id, both in the requested direction.
func sortBy[T any](items []T, desc bool, less func(a, b T) int, id func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		c := less(items[i], items[j])
		if c == 0 {
			c = compareInt(id(items[i]), id(items[j]))
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

type bookStore struct{ tx *memTx }

func (s bookStore) Get(_ context.Context, id int64) (model.Book, error) {
	b, ok := s.tx.data.books[id]
	if !ok {
		return model.Book{}, errs.NotFound("Book", id)
	}
	return b, nil
}

func (s bookStore) GetForUpdate(ctx context.Context, id int64) (model.Book, error) {
	return s.Get(ctx, id)
}

func (s bookStore) Save(_ context.Context, book model.Book) (model.Book, error) {
	if err := s.tx.write(); err != nil {
		return model.Book{}, err
	}
	if book.Isbn != nil {
		for _, other := range s.tx.data.books {
			if other.ID != book.ID && other.Isbn != nil && *other.Isbn == *book.Isbn {
				return model.Book{}, errors.Wrap(errs.ErrConflict, "duplicate value violates books_isbn_key")
			}
		}
	}
	if book.ID == 0 {
		s.tx.data.bookSeq++
		book.ID = s.tx.data.bookSeq
		book.CreatedAt = s.tx.now().UTC()
	} else {
		existing, ok := s.tx.data.books[book.ID]
		if !ok {
			return model.Book{}, errs.NotFound("Book", book.ID)
		}
		book.CreatedAt = existing.CreatedAt
	}
	s.tx.data.books[book.ID] = book
	return book, nil
}

func (s bookStore) ExistsByID(_ context.Context, id int64) (bool, error) {
	_, ok := s.tx.data.books[id]
	return ok, nil
}

func (s bookStore) DeleteByID(_ context.Context, id int64) error {
	if err := s.tx.write(); err != nil {
		return err
	}
	if _, ok := s.tx.data.books[id]; !ok {
		return errs.NotFound("Book", id)
	}
	for _, l := range s.tx.data.loans {
		if l.BookID == id {
			return errors.Wrap(errs.ErrConflict, "loans is still referenced")
		}
	}
	delete(s.tx.data.books, id)
	return nil
}

func (s bookStore) FindAvailable(_ context.Context, page model.PageRequest) (model.Page[model.Book], error) {
	items := make([]model.Book, 0)
	for _, b := range s.tx.data.books {
		if b.Available {
			items = append(items, b)
		}
	}
	sortBy(items, page.Desc, bookComparator(page.Sort), func(b model.Book) int64 { return b.ID })
	return paginate(items, page), nil
}

func bookComparator(field string) func(a, b model.Book) int {
	switch field {
	case "author":
		return func(a, b model.Book) int { return compareString(a.Author, b.Author) }
	case "publishYear":
		return func(a, b model.Book) int { return compareInt(int64(deref(a.PublishYear)), int64(deref(b.PublishYear))) }
	case "createdAt":
		return func(a, b model.Book) int { return compareTime(a.CreatedAt, b.CreatedAt) }
	case "id":
		return func(a, b model.Book) int { return 0 }
	default:
		return func(a, b model.Book) int { return compareString(a.Title, b.Title) }
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (s bookStore) FindByIsbn(_ context.Context, isbn string) (model.Book, error) {
	for _, b := range s.tx.data.books {
		if b.Isbn != nil && *b.Isbn == isbn {
			return b, nil
		}
	}
	return model.Book{}, errs.NotFound("Book with isbn", isbn)
}

type userStore struct{ tx *memTx }

func (s userStore) Get(_ context.Context, id int64) (model.User, error) {
	u, ok := s.tx.data.users[id]
	if !ok {
		return model.User{}, errs.NotFound("User", id)
	}
	return u, nil
}

func (s userStore) GetForUpdate(ctx context.Context, id int64) (model.User, error) {
	return s.Get(ctx, id)
}

func (s userStore) ExistsByID(_ context.Context, id int64) (bool, error) {
	_, ok := s.tx.data.users[id]
	return ok, nil
}

func (s userStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range s.tx.data.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, errs.NotFound("User with email", email)
}

func (s userStore) Create(_ context.Context, user model.User) (model.User, error) {
	if err := s.tx.write(); err != nil {
		return model.User{}, err
	}
	for _, u := range s.tx.data.users {
		if u.Email == user.Email {
			return model.User{}, errors.Wrap(errs.ErrConflict, "duplicate value violates users_email_key")
		}
	}
	s.tx.data.userSeq++
	user.ID = s.tx.data.userSeq
	user.CreatedAt = s.tx.now().UTC()
	s.tx.data.users[user.ID] = user
	return user, nil
}

func (s userStore) UpdateName(_ context.Context, user model.User) (model.User, error) {
	if err := s.tx.write(); err != nil {
		return model.User{}, err
	}
	stored, ok := s.tx.data.users[user.ID]
	if !ok {
		return model.User{}, errs.NotFound("User", user.ID)
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	s.tx.data.users[user.ID] = stored
	return stored, nil
}

func (s userStore) FindAll(_ context.Context, page model.PageRequest) (model.Page[model.User], error) {
	items := make([]model.User, 0, len(s.tx.data.users))
	for _, u := range s.tx.data.users {
		items = append(items, u)
	}
	sortBy(items, page.Desc, userComparator(page.Sort), func(u model.User) int64 { return u.ID })
	return paginate(items, page), nil
}

func userComparator(field string) func(a, b model.User) int {
	switch field {
	case "firstName":
		return func(a, b model.User) int { return compareString(a.FirstName, b.FirstName) }
	case "lastName":
		return func(a, b model.User) int { return compareString(a.LastName, b.LastName) }
	case "createdAt":
		return func(a, b model.User) int { return compareTime(a.CreatedAt, b.CreatedAt) }
	case "id":
		return func(a, b model.User) int { return 0 }
	default:
		return func(a, b model.User) int { return compareString(a.Email, b.Email) }
	}
}

type loanStore struct{ tx *memTx }

func (s loanStore) Save(_ context.Context, loan model.Loan) (model.Loan, error) {
	if err := s.tx.write(); err != nil {
		return model.Loan{}, err
	}
	if loan.Status.IsOpen() {
		for _, other := range s.tx.data.loans {
			if other.ID != loan.ID && other.BookID == loan.BookID && other.Status.IsOpen() {
				return model.Loan{}, errors.Wrap(errs.ErrBookNotAvailable, "book already has an open loan")
			}
		}
	}
	if loan.ID == 0 {
		if _, ok := s.tx.data.users[loan.UserID]; !ok {
			return model.Loan{}, errors.Wrap(errs.ErrConflict, "users is still referenced")
		}
		if _, ok := s.tx.data.books[loan.BookID]; !ok {
			return model.Loan{}, errors.Wrap(errs.ErrConflict, "books is still referenced")
		}
		s.tx.data.loanSeq++
		loan.ID = s.tx.data.loanSeq
		loan.CreatedAt = s.tx.now().UTC()
		s.tx.data.loans[loan.ID] = loan
		return loan, nil
	}
	existing, ok := s.tx.data.loans[loan.ID]
	if !ok {
		return model.Loan{}, errs.NotFound("Loan", loan.ID)
	}
	existing.Status = loan.Status
	existing.ReturnDate = loan.ReturnDate
	s.tx.data.loans[loan.ID] = existing
	return existing, nil
}

func (s loanStore) Get(_ context.Context, id int64) (model.Loan, error) {
	l, ok := s.tx.data.loans[id]
	if !ok {
		return model.Loan{}, errs.NotFound("Loan", id)
	}
	return l, nil
}

func (s loanStore) GetForUpdate(ctx context.Context, id int64) (model.Loan, error) {
	return s.Get(ctx, id)
}

func (s loanStore) CountActiveForUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, l := range s.tx.data.loans {
		if l.UserID == userID && l.Status.IsOpen() {
			n++
		}
	}
	return n, nil
}

func (s loanStore) CountByBook(_ context.Context, bookID int64) (int, error) {
	n := 0
	for _, l := range s.tx.data.loans {
		if l.BookID == bookID {
			n++
		}
	}
	return n, nil
}

func (s loanStore) FindOverdue(_ context.Context, asOf model.Date) ([]model.Loan, error) {
	items := make([]model.Loan, 0)
	for _, l := range s.tx.data.loans {
		if l.IsOverdue(asOf) {
			items = append(items, l)
		}
	}
	sortBy(items, false, func(a, b model.Loan) int { return compareTime(a.DueDate.Time, b.DueDate.Time) },
		func(l model.Loan) int64 { return l.ID })
	return items, nil
}

func (s loanStore) FindByUser(_ context.Context, userID int64, page model.PageRequest) (model.Page[model.Loan], error) {
	items := make([]model.Loan, 0)
	for _, l := range s.tx.data.loans {
		if l.UserID == userID {
			items = append(items, l)
		}
	}
	sortBy(items, page.Desc, loanComparator(page.Sort), func(l model.Loan) int64 { return l.ID })
	return paginate(items, page), nil
}

func (s loanStore) FindAll(_ context.Context, page model.PageRequest) (model.Page[model.Loan], error) {
	items := make([]model.Loan, 0, len(s.tx.data.loans))
	for _, l := range s.tx.data.loans {
		items = append(items, l)
	}
	sortBy(items, page.Desc, loanComparator(page.Sort), func(l model.Loan) int64 { return l.ID })
	return paginate(items, page), nil
}

func loanComparator(field string) func(a, b model.Loan) int {
	switch field {
	case "dueDate":
		return func(a, b model.Loan) int { return compareTime(a.DueDate.Time, b.DueDate.Time) }
	case "createdAt":
		return func(a, b model.Loan) int { return compareTime(a.CreatedAt, b.CreatedAt) }
	case "id":
		return func(a, b model.Loan) int { return 0 }
	default:
		return func(a, b model.Loan) int { return compareTime(a.LoanDate.Time, b.LoanDate.Time) }
	}
}
