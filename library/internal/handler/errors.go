package handler

import (
	"net/http"
	"strconv"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// httpError maps a service error onto its status code. The message is the error text.
func httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errs.ErrLoanLimitExceeded),
		errors.Is(err, errs.ErrBookNotAvailable),
		errors.Is(err, errs.ErrInvalidLoanOperation):
		code = http.StatusBadRequest
	case errors.Is(err, errs.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, errs.ErrInvalidCredentials):
		code = http.StatusUnauthorized
	case errors.Is(err, errs.ErrTransient):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error())
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" is invalid")
	}
	return id, nil
}

// pageRequest reads page, size and sort ("field" or "field,desc"). Only fields in sortable are accepted.
func pageRequest(c echo.Context, sortable ...string) (model.PageRequest, error) {
	var (
		req model.PageRequest
		err error
	)
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if req.Page, err = strconv.Atoi(pageParam); err != nil || req.Page < 1 {
			return req, echo.NewHTTPError(http.StatusBadRequest, "page is invalid")
		}
	}
	if sizeParam := c.QueryParam("size"); sizeParam != "" {
		if req.Size, err = strconv.Atoi(sizeParam); err != nil || req.Size < 1 || req.Size > model.MaxPageSize {
			return req, echo.NewHTTPError(http.StatusBadRequest, "size is invalid")
		}
	}
	if sortParam := c.QueryParam("sort"); sortParam != "" {
		req.Sort, req.Desc = model.ParseSort(sortParam)
		if !contains(sortable, req.Sort) {
			return req, echo.NewHTTPError(http.StatusBadRequest, "sort is invalid")
		}
	}
	return req.Normalize(), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
