package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/handler"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/pkg/auth"
	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	service_mocks "github.com/booktrack/library-service/library/internal/handler/mocks"
)

type mocks struct {
	loans *service_mocks.MockLoanService
	books *service_mocks.MockBookService
	users *service_mocks.MockUserService
}

type caller struct {
	id   string
	role string
}

var (
	admin  = caller{id: "1", role: "ADMIN"}
	reader = caller{id: "2", role: "USER"}
	other  = caller{id: "3", role: "USER"}
	nobody = caller{}
)

var now = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

func newRouter(t *testing.T, opts ...handler.Option) (*echo.Echo, mocks) {
	t.Helper()
	c := gomock.NewController(t)
	m := mocks{
		loans: service_mocks.NewMockLoanService(c),
		books: service_mocks.NewMockBookService(c),
		users: service_mocks.NewMockUserService(c),
	}
	opts = append([]handler.Option{handler.WithClock(func() time.Time { return now })}, opts...)
	h := handler.New(m.loans, m.books, m.users, zap.NewNop(), opts...)
	return h.NewRouter(), m
}

func do(e *echo.Echo, method, target, body string, who caller) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, http.NoBody)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if who.id != "" {
		r.Header.Set(auth.XUserIDHeader, who.id)
		r.Header.Set(auth.XUserRoleHeader, who.role)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func date(s string) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *model.Date {
	d := date(s)
	return &d
}

func sampleLoan() model.Loan {
	return model.Loan{
		ID:       1,
		UserID:   2,
		BookID:   3,
		LoanDate: date("2024-01-01"),
		DueDate:  date("2024-01-15"),
		Status:   model.LoanStatusActive,
	}
}

const sampleLoanJSON = `{"id":1,"userId":2,"bookId":3,"loanDate":"2024-01-01","dueDate":"2024-01-15","returnDate":null,"status":"ACTIVE","createdAt":"0001-01-01T00:00:00Z"}`

func TestHandler_CreateLoan(t *testing.T) {
	t.Parallel()
	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(m mocks)

	var tests = []struct {
		name         string
		body         string
		who          caller
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"userId":2,"bookId":3,"loanDate":"2024-01-01"}`,
			who:  reader,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().
					CreateLoan(gomock.Any(), model.CreateLoanRequest{UserID: 2, BookID: 3, LoanDate: datePtr("2024-01-01")}).
					Return(sampleLoan(), nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: sampleLoanJSON,
			},
		},
		{
			name:         "err. book required",
			body:         `{"userId":2}`,
			who:          reader,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"Key: 'CreateLoanRequest.BookID' Error:Field validation for 'BookID' failed on the 'required' tag"}`,
			},
		},
		{
			name:         "err. loan date in the future",
			body:         `{"userId":2,"bookId":3,"loanDate":"2024-01-11"}`,
			who:          reader,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"Key: 'CreateLoanRequest.LoanDate' Error:Field validation for 'LoanDate' failed on the 'notfuture' tag"}`,
			},
		},
		{
			name:         "err. due date not in the future",
			body:         `{"userId":2,"bookId":3,"dueDate":"2024-01-10"}`,
			who:          reader,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"Key: 'CreateLoanRequest.DueDate' Error:Field validation for 'DueDate' failed on the 'future' tag"}`,
			},
		},
		{
			name:         "err. other user",
			body:         `{"userId":2,"bookId":3}`,
			who:          other,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusForbidden,
				expectedBody: `{"message":"loans can only be created for yourself"}`,
			},
		},
		{
			name:         "err. no identity",
			body:         `{"userId":2,"bookId":3}`,
			who:          nobody,
			mockBehavior: func(m mocks) {},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"user-id is empty or invalid"}`,
			},
		},
		{
			name: "err. limit",
			body: `{"userId":2,"bookId":3}`,
			who:  admin,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().
					CreateLoan(gomock.Any(), model.CreateLoanRequest{UserID: 2, BookID: 3}).
					Return(model.Loan{}, &errs.LoanLimitError{Count: 3, Limit: 3})
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"user already has 3 active loans, maximum is 3"}`,
			},
		},
		{
			name: "err. book not found",
			body: `{"userId":2,"bookId":3}`,
			who:  reader,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().
					CreateLoan(gomock.Any(), gomock.Any()).
					Return(model.Loan{}, errs.NotFound("Book", int64(3)))
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"Book not found with id 3"}`,
			},
		},
		{
			name: "err. transient",
			body: `{"userId":2,"bookId":3}`,
			who:  reader,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().
					CreateLoan(gomock.Any(), gomock.Any()).
					Return(model.Loan{}, errors.Wrap(errs.ErrTransient, "deadlock detected"))
			},
			response: response{
				expectedCode: http.StatusServiceUnavailable,
				expectedBody: `{"message":"deadlock detected: transient storage conflict"}`,
			},
		},
		{
			name: "err. internal",
			body: `{"userId":2,"bookId":3}`,
			who:  reader,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().
					CreateLoan(gomock.Any(), gomock.Any()).
					Return(model.Loan{}, errors.New("db internal"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"db internal"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, http.MethodPost, "/api/v1/loans", tt.body, tt.who)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ReturnLoan(t *testing.T) {
	t.Parallel()
	returned := sampleLoan()
	returned.Status = model.LoanStatusReturned
	returned.ReturnDate = datePtr("2024-01-10")

	var tests = []struct {
		name         string
		target       string
		who          caller
		mockBehavior func(m mocks)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "ok. admin",
			target: "/api/v1/loans/1/return",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().ReturnLoan(gomock.Any(), int64(1)).Return(returned, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"id":1,"userId":2,"bookId":3,"loanDate":"2024-01-01","dueDate":"2024-01-15","returnDate":"2024-01-10","status":"RETURNED","createdAt":"0001-01-01T00:00:00Z"}`,
		},
		{
			name:   "ok. owner",
			target: "/api/v1/loans/1/return",
			who:    reader,
			mockBehavior: func(m mocks) {
				gomock.InOrder(
					m.loans.EXPECT().GetLoan(gomock.Any(), int64(1)).Return(sampleLoan(), nil),
					m.loans.EXPECT().ReturnLoan(gomock.Any(), int64(1)).Return(returned, nil),
				)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"id":1,"userId":2,"bookId":3,"loanDate":"2024-01-01","dueDate":"2024-01-15","returnDate":"2024-01-10","status":"RETURNED","createdAt":"0001-01-01T00:00:00Z"}`,
		},
		{
			name:   "err. not the owner",
			target: "/api/v1/loans/1/return",
			who:    other,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().GetLoan(gomock.Any(), int64(1)).Return(sampleLoan(), nil)
			},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"loan belongs to another user"}`,
		},
		{
			name:   "err. not found",
			target: "/api/v1/loans/9/return",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().ReturnLoan(gomock.Any(), int64(9)).Return(model.Loan{}, errs.NotFound("Loan", int64(9)))
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"Loan not found with id 9"}`,
		},
		{
			name:   "err. already returned",
			target: "/api/v1/loans/1/return",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().ReturnLoan(gomock.Any(), int64(1)).
					Return(model.Loan{}, errors.Wrap(errs.ErrInvalidLoanOperation, "loan 1: RETURNED -> RETURNED is not allowed"))
			},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"loan 1: RETURNED -> RETURNED is not allowed: invalid loan operation"}`,
		},
		{
			name:         "err. bad id",
			target:       "/api/v1/loans/abc/return",
			who:          admin,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"id is invalid"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, http.MethodPut, tt.target, "", tt.who)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_ListLoans(t *testing.T) {
	t.Parallel()
	page := model.Page[model.Loan]{
		Paging: model.Paging{Page: 1, PageSize: 20, TotalElements: 1},
		Items:  []model.Loan{sampleLoan()},
	}
	pageJSON := `{"page":1,"pageSize":20,"totalElements":1,"items":[` + sampleLoanJSON + `]}`

	var tests = []struct {
		name         string
		target       string
		who          caller
		mockBehavior func(m mocks)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "ok. own loans",
			target: "/api/v1/loans/user/2",
			who:    reader,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().
					ListLoans(gomock.Any(), model.LoansOfUser(2), model.PageRequest{Page: 1, Size: 20}).
					Return(page, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: pageJSON,
		},
		{
			name:   "ok. sorted and paged",
			target: "/api/v1/loans/user/2?page=2&size=5&sort=dueDate,desc",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().
					ListLoans(gomock.Any(), model.LoansOfUser(2), model.PageRequest{Page: 2, Size: 5, Sort: "dueDate", Desc: true}).
					Return(page, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: pageJSON,
		},
		{
			name:         "err. other user's loans",
			target:       "/api/v1/loans/user/2",
			who:          other,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"loans of another user"}`,
		},
		{
			name:         "err. unknown sort",
			target:       "/api/v1/loans/user/2?sort=password",
			who:          reader,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"sort is invalid"}`,
		},
		{
			name:         "err. size too large",
			target:       "/api/v1/loans/user/2?size=1000",
			who:          reader,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"size is invalid"}`,
		},
		{
			name:   "err. user not found",
			target: "/api/v1/loans/user/404",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().ListLoans(gomock.Any(), model.LoansOfUser(404), gomock.Any()).
					Return(model.Page[model.Loan]{}, errs.NotFound("User", int64(404)))
			},
			expectedCode: http.StatusNotFound,
			expectedBody: `{"message":"User not found with id 404"}`,
		},
		{
			name:   "ok. all loans as admin",
			target: "/api/v1/loans",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().ListLoans(gomock.Any(), model.AllLoans(), model.PageRequest{Page: 1, Size: 20}).Return(page, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: pageJSON,
		},
		{
			name:         "err. all loans as user",
			target:       "/api/v1/loans",
			who:          reader,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"admin role required"}`,
		},
		{
			name:   "ok. get own loan",
			target: "/api/v1/loans/1",
			who:    reader,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().GetLoan(gomock.Any(), int64(1)).Return(sampleLoan(), nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: sampleLoanJSON,
		},
		{
			name:   "err. get loan of other user",
			target: "/api/v1/loans/1",
			who:    other,
			mockBehavior: func(m mocks) {
				m.loans.EXPECT().GetLoan(gomock.Any(), int64(1)).Return(sampleLoan(), nil)
			},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"loan belongs to another user"}`,
		},
		{
			name:   "ok. overdue sweep",
			target: "/api/v1/loans/overdue",
			who:    admin,
			mockBehavior: func(m mocks) {
				today := date("2024-01-20")
				overdue := sampleLoan()
				overdue.Status = model.LoanStatusOverdue
				m.loans.EXPECT().Today().Return(today)
				m.loans.EXPECT().SweepOverdue(gomock.Any(), today).Return([]model.Loan{overdue}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `[{"id":1,"userId":2,"bookId":3,"loanDate":"2024-01-01","dueDate":"2024-01-15","returnDate":null,"status":"OVERDUE","createdAt":"0001-01-01T00:00:00Z"}]`,
		},
		{
			name:         "err. overdue as user",
			target:       "/api/v1/loans/overdue",
			who:          reader,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"admin role required"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, http.MethodGet, tt.target, "", tt.who)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_Books(t *testing.T) {
	t.Parallel()
	isbn := "9780441013593"
	book := model.Book{ID: 3, Title: "Dune", Author: "Frank Herbert", Isbn: &isbn, Available: true}
	bookJSON := `{"id":3,"title":"Dune","author":"Frank Herbert","isbn":"9780441013593","publisher":null,"publishYear":null,"available":true,"createdAt":"0001-01-01T00:00:00Z"}`

	var tests = []struct {
		name         string
		method       string
		target       string
		body         string
		who          caller
		mockBehavior func(m mocks)
		expectedCode int
		expectedBody string
	}{
		{
			name:   "ok. available books",
			method: http.MethodGet,
			target: "/api/v1/books?sort=author",
			who:    reader,
			mockBehavior: func(m mocks) {
				m.books.EXPECT().GetAvailableBooks(gomock.Any(), model.PageRequest{Page: 1, Size: 20, Sort: "author"}).
					Return(model.Page[model.Book]{Paging: model.Paging{Page: 1, PageSize: 20, TotalElements: 1}, Items: []model.Book{book}}, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: `{"page":1,"pageSize":20,"totalElements":1,"items":[` + bookJSON + `]}`,
		},
		{
			name:   "ok. get",
			method: http.MethodGet,
			target: "/api/v1/books/3",
			who:    reader,
			mockBehavior: func(m mocks) {
				m.books.EXPECT().GetBook(gomock.Any(), int64(3)).Return(book, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: bookJSON,
		},
		{
			name:   "ok. create",
			method: http.MethodPost,
			target: "/api/v1/books",
			body:   `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593"}`,
			who:    admin,
			mockBehavior: func(m mocks) {
				m.books.EXPECT().CreateBook(gomock.Any(), model.CreateBookRequest{Title: "Dune", Author: "Frank Herbert", Isbn: &isbn}).
					Return(book, nil)
			},
			expectedCode: http.StatusCreated,
			expectedBody: bookJSON,
		},
		{
			name:         "err. create with bad isbn",
			method:       http.MethodPost,
			target:       "/api/v1/books",
			body:         `{"title":"Dune","author":"Frank Herbert","isbn":"12-34"}`,
			who:          admin,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"message":"Key: 'CreateBookRequest.Isbn' Error:Field validation for 'Isbn' failed on the 'isbn_format' tag"}`,
		},
		{
			name:         "err. create as user",
			method:       http.MethodPost,
			target:       "/api/v1/books",
			body:         `{"title":"Dune","author":"Frank Herbert"}`,
			who:          reader,
			mockBehavior: func(m mocks) {},
			expectedCode: http.StatusForbidden,
			expectedBody: `{"message":"admin role required"}`,
		},
		{
			name:   "err. duplicate isbn",
			method: http.MethodPost,
			target: "/api/v1/books",
			body:   `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593"}`,
			who:    admin,
			mockBehavior: func(m mocks) {
				m.books.EXPECT().CreateBook(gomock.Any(), gomock.Any()).
					Return(model.Book{}, errors.Wrap(errs.ErrConflict, "book with isbn 9780441013593 already exists"))
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"book with isbn 9780441013593 already exists: conflict"}`,
		},
		{
			name:   "ok. update",
			method: http.MethodPut,
			target: "/api/v1/books/3",
			body:   `{"title":"Dune Messiah"}`,
			who:    admin,
			mockBehavior: func(m mocks) {
				title := "Dune Messiah"
				m.books.EXPECT().UpdateBook(gomock.Any(), int64(3), model.UpdateBookRequest{Title: &title}).Return(book, nil)
			},
			expectedCode: http.StatusOK,
			expectedBody: bookJSON,
		},
		{
			name:   "ok. delete",
			method: http.MethodDelete,
			target: "/api/v1/books/3",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.books.EXPECT().DeleteBook(gomock.Any(), int64(3)).Return(nil)
			},
			expectedCode: http.StatusNoContent,
			expectedBody: ``,
		},
		{
			name:   "err. delete lent book",
			method: http.MethodDelete,
			target: "/api/v1/books/3",
			who:    admin,
			mockBehavior: func(m mocks) {
				m.books.EXPECT().DeleteBook(gomock.Any(), int64(3)).
					Return(errors.Wrap(errs.ErrConflict, "book 3 is referenced by 2 loans"))
			},
			expectedCode: http.StatusConflict,
			expectedBody: `{"message":"book 3 is referenced by 2 loans: conflict"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t)
			tt.mockBehavior(m)

			w := do(e, tt.method, tt.target, tt.body, tt.who)

			require.Equal(t, tt.expectedCode, w.Code)
			require.Equal(t, tt.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_GetUser(t *testing.T) {
	t.Parallel()
	user := model.User{ID: 2, Email: "reader@example.com", PasswordHash: "secret", FirstName: "Ada", LastName: "Lovelace", Role: model.RoleUser}

	t.Run("ok. self, no password hash", func(t *testing.T) {
		t.Parallel()
		e, m := newRouter(t)
		m.users.EXPECT().GetUser(gomock.Any(), int64(2)).Return(user, nil)

		w := do(e, http.MethodGet, "/api/v1/users/2", "", reader)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t,
			`{"id":2,"email":"reader@example.com","firstName":"Ada","lastName":"Lovelace","role":"USER","createdAt":"0001-01-01T00:00:00Z"}`,
			strings.Trim(w.Body.String(), "\n"))
	})

	t.Run("err. other user", func(t *testing.T) {
		t.Parallel()
		e, _ := newRouter(t)
		w := do(e, http.MethodGet, "/api/v1/users/2", "", other)
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandler_Users(t *testing.T) {
	t.Parallel()
	user := model.User{ID: 2, Email: "reader@example.com", FirstName: "Ada", LastName: "Byron", Role: model.RoleUser}

	t.Run("ok. admin lists users by email", func(t *testing.T) {
		t.Parallel()
		e, m := newRouter(t)
		m.users.EXPECT().
			ListUsers(gomock.Any(), model.PageRequest{Page: 1, Size: 20}).
			Return(model.Page[model.User]{
				Paging: model.Paging{Page: 1, PageSize: 20, TotalElements: 1},
				Items:  []model.User{user},
			}, nil)

		w := do(e, http.MethodGet, "/api/v1/users", "", admin)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t,
			`{"page":1,"pageSize":20,"totalElements":1,"items":[{"id":2,"email":"reader@example.com","firstName":"Ada","lastName":"Byron","role":"USER","createdAt":"0001-01-01T00:00:00Z"}]}`,
			strings.Trim(w.Body.String(), "\n"))
	})

	t.Run("ok. sort by last name desc", func(t *testing.T) {
		t.Parallel()
		e, m := newRouter(t)
		m.users.EXPECT().
			ListUsers(gomock.Any(), model.PageRequest{Page: 2, Size: 5, Sort: "lastName", Desc: true}).
			Return(model.Page[model.User]{}, nil)

		w := do(e, http.MethodGet, "/api/v1/users?page=2&size=5&sort=lastName,desc", "", admin)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("err. list needs admin", func(t *testing.T) {
		t.Parallel()
		e, _ := newRouter(t)
		w := do(e, http.MethodGet, "/api/v1/users", "", reader)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("err. unknown sort", func(t *testing.T) {
		t.Parallel()
		e, _ := newRouter(t)
		w := do(e, http.MethodGet, "/api/v1/users?sort=password", "", admin)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ok. update own name", func(t *testing.T) {
		t.Parallel()
		e, m := newRouter(t)
		renamed := user
		renamed.LastName = "King"
		m.users.EXPECT().
			UpdateUser(gomock.Any(), int64(2), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, req model.UpdateUserRequest) (model.User, error) {
				require.Nil(t, req.FirstName)
				require.NotNil(t, req.LastName)
				require.Equal(t, "King", *req.LastName)
				return renamed, nil
			})

		w := do(e, http.MethodPut, "/api/v1/users/2", `{"lastName":"King"}`, reader)
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), `"lastName":"King"`)
	})

	t.Run("err. name too short", func(t *testing.T) {
		t.Parallel()
		e, _ := newRouter(t)
		w := do(e, http.MethodPut, "/api/v1/users/2", `{"firstName":"A"}`, reader)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("err. update another user", func(t *testing.T) {
		t.Parallel()
		e, _ := newRouter(t)
		w := do(e, http.MethodPut, "/api/v1/users/2", `{"firstName":"Eve"}`, other)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("err. update missing user", func(t *testing.T) {
		t.Parallel()
		e, m := newRouter(t)
		m.users.EXPECT().
			UpdateUser(gomock.Any(), int64(9), gomock.Any()).
			Return(model.User{}, errs.NotFound("User", 9))
		w := do(e, http.MethodPut, "/api/v1/users/9", `{"firstName":"Eve"}`, admin)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()
	secret := "s3cr3t"
	user := model.User{ID: 2, Email: "reader@example.com", FirstName: "Ada", LastName: "Byron", Role: model.RoleUser}

	t.Run("ok. token opens the api", func(t *testing.T) {
		t.Parallel()
		e, m := newRouter(t, handler.WithJWTSecret(secret), handler.WithTokenTTL(time.Hour))
		m.users.EXPECT().Authenticate(gomock.Any(), "reader@example.com", "hunter22").Return(user, nil)
		m.users.EXPECT().GetUser(gomock.Any(), int64(2)).Return(user, nil)

		w := do(e, http.MethodPost, "/api/v1/auth/login", `{"email":"reader@example.com","password":"hunter22"}`, nobody)
		require.Equal(t, http.StatusOK, w.Code)
		var resp model.TokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.AccessToken)
		require.Equal(t, "Bearer", resp.TokenType)
		require.Equal(t, int64(2), resp.User.ID)
		require.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)

		r := httptest.NewRequest(http.MethodGet, "/api/v1/users/2", http.NoBody)
		r.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		w = httptest.NewRecorder()
		e.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("err. bad credentials", func(t *testing.T) {
		t.Parallel()
		e, m := newRouter(t, handler.WithJWTSecret(secret))
		m.users.EXPECT().Authenticate(gomock.Any(), "reader@example.com", "nope").Return(model.User{}, errs.ErrInvalidCredentials)

		w := do(e, http.MethodPost, "/api/v1/auth/login", `{"email":"reader@example.com","password":"nope"}`, nobody)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("err. malformed email", func(t *testing.T) {
		t.Parallel()
		e, _ := newRouter(t, handler.WithJWTSecret(secret))
		w := do(e, http.MethodPost, "/api/v1/auth/login", `{"email":"reader","password":"x"}`, nobody)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("err. no signing key", func(t *testing.T) {
		t.Parallel()
		e, _ := newRouter(t)
		w := do(e, http.MethodPost, "/api/v1/auth/login", `{"email":"reader@example.com","password":"hunter22"}`, nobody)
		require.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

func TestHandler_JWT(t *testing.T) {
	t.Parallel()
	secret := "s3cr3t"
	sign := func(claims auth.Claims, key string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
		require.NoError(t, err)
		return token
	}
	valid := sign(auth.Claims{UserID: 2, Role: "USER", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}, secret)

	var tests = []struct {
		name         string
		token        string
		expectedCode int
	}{
		{name: "ok", token: valid, expectedCode: http.StatusOK},
		{name: "err. wrong key", token: sign(auth.Claims{UserID: 2, Role: "USER"}, "other"), expectedCode: http.StatusUnauthorized},
		{name: "err. bad role", token: sign(auth.Claims{UserID: 2, Role: "ROOT"}, secret), expectedCode: http.StatusUnauthorized},
		{name: "err. missing", token: "", expectedCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, m := newRouter(t, handler.WithJWTSecret(secret))
			if tt.expectedCode == http.StatusOK {
				m.books.EXPECT().GetBook(gomock.Any(), int64(3)).Return(model.Book{ID: 3}, nil)
			}
			r := httptest.NewRequest(http.MethodGet, "/api/v1/books/3", http.NoBody)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)
			require.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestHandler_Manage(t *testing.T) {
	t.Parallel()
	e, _ := newRouter(t, handler.WithMetrics(func(context.Context) (any, error) {
		return map[string]int64{"library.loans.created": 4}, nil
	}))

	w := do(e, http.MethodGet, "/manage/health", "", nobody)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())

	w = do(e, http.MethodGet, "/manage/metrics", "", nobody)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"library.loans.created":4}`, strings.Trim(w.Body.String(), "\n"))

	e, _ = newRouter(t, handler.WithMetrics(func(context.Context) (any, error) {
		return nil, errors.New("reader is shut down")
	}))
	w = do(e, http.MethodGet, "/manage/metrics", "", nobody)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
