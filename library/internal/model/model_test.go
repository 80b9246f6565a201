package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	var req CreateLoanRequest
	require.NoError(t, json.Unmarshal([]byte(`{"userId":1,"bookId":2,"dueDate":"2024-02-29"}`), &req))
	require.NotNil(t, req.DueDate)
	assert.Nil(t, req.LoanDate)
	assert.Equal(t, NewDate(2024, time.February, 29), *req.DueDate)

	out, err := json.Marshal(struct {
		D Date `json:"d"`
	}{D: NewDate(2024, time.March, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-03-01"}`, string(out))

	err = json.Unmarshal([]byte(`{"dueDate":"01/02/2024"}`), &req)
	assert.Error(t, err)
}

func TestDateOf(t *testing.T) {
	late := time.Date(2024, time.January, 1, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	assert.Equal(t, "2024-01-02", DateOf(late).String())
	assert.Equal(t, "2024-01-15", NewDate(2024, time.January, 1).AddDays(14).String())
	assert.True(t, NewDate(2024, time.January, 1).Before(NewDate(2024, time.January, 2)))
}

func TestLoanTransitions(t *testing.T) {
	newLoan := func(s LoanStatus) Loan {
		return Loan{
			ID:       7,
			LoanDate: NewDate(2024, time.January, 1),
			DueDate:  NewDate(2024, time.January, 15),
			Status:   s,
		}
	}

	l := newLoan(LoanStatusActive)
	assert.ErrorIs(t, l.MarkOverdue(NewDate(2024, time.January, 15)), errs.ErrInvalidLoanOperation)
	require.NoError(t, l.MarkOverdue(NewDate(2024, time.January, 16)))
	assert.Equal(t, LoanStatusOverdue, l.Status)
	assert.ErrorIs(t, l.MarkOverdue(NewDate(2024, time.January, 17)), errs.ErrInvalidLoanOperation)

	require.NoError(t, l.Return(NewDate(2024, time.January, 20)))
	assert.Equal(t, LoanStatusReturned, l.Status)
	require.NotNil(t, l.ReturnDate)
	assert.Equal(t, "2024-01-20", l.ReturnDate.String())

	err := l.Return(NewDate(2024, time.January, 21))
	assert.ErrorIs(t, err, errs.ErrInvalidLoanOperation)
	assert.Equal(t, "2024-01-20", l.ReturnDate.String())

	assert.False(t, LoanStatusReturned.CanTransitionTo(LoanStatusActive))
	assert.False(t, LoanStatusOverdue.CanTransitionTo(LoanStatusActive))
	assert.False(t, LoanStatus("LOST").Valid())
	assert.False(t, newLoan(LoanStatusReturned).IsOverdue(NewDate(2030, time.January, 1)))
}

func TestPageRequest(t *testing.T) {
	p := PageRequest{Page: 0, Size: 500}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.Size)
	assert.Zero(t, p.Offset())
	assert.Equal(t, 40, PageRequest{Page: 3, Size: 20}.Offset())

	field, desc := ParseSort("dueDate, DESC")
	assert.Equal(t, "dueDate", field)
	assert.True(t, desc)
	field, desc = ParseSort("title")
	assert.Equal(t, "title", field)
	assert.False(t, desc)
}

func TestPageJSON(t *testing.T) {
	out, err := json.Marshal(Page[int]{
		Paging: Paging{Page: 2, PageSize: 2, TotalElements: 3},
		Items:  []int{3},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":2,"pageSize":2,"totalElements":3,"items":[3]}`, string(out))
}

func TestUpdateBookApply(t *testing.T) {
	title := "New"
	b := Book{Title: "Old", Author: "A", Available: false}
	UpdateBookRequest{Title: &title}.Apply(&b)
	assert.Equal(t, "New", b.Title)
	assert.Equal(t, "A", b.Author)
	assert.False(t, b.Available)
}
