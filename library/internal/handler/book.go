package handler

import (
	"net/http"

	"github.com/booktrack/library-service/library/internal/model"
	"github.com/labstack/echo/v4"
)

var bookSortFields = []string{"title", "author", "publishYear", "createdAt"}

// GetAvailableBooks
// @Summary      Available books
// @Tags         books
// @Produce      json
// @Param        page query int false "page, from 1"
// @Param        size query int false "page size"
// @Param        sort query string false "title|author|publishYear|createdAt[,desc]"
// @Success      200 {object} model.Page[model.Book]
// @Router       /api/v1/books [get]
func (h *Handler) GetAvailableBooks(c echo.Context) error {
	page, err := pageRequest(c, bookSortFields...)
	if err != nil {
		return err
	}
	books, err := h.bookSvc.GetAvailableBooks(c.Request().Context(), page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

// GetBook
// @Summary      Get book
// @Tags         books
// @Produce      json
// @Param        id path int true "book id"
// @Success      200 {object} model.Book
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/books/{id} [get]
func (h *Handler) GetBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.bookSvc.GetBook(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

// CreateBook
// @Summary      Create book (admin)
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        request body model.CreateBookRequest true "book"
// @Success      201 {object} model.Book
// @Failure      400 {object} echo.HTTPError
// @Failure      409 {object} echo.HTTPError
// @Router       /api/v1/books [post]
func (h *Handler) CreateBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return httpError(err)
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.bookSvc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

// UpdateBook
// @Summary      Update book (admin)
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        id path int true "book id"
// @Param        request body model.UpdateBookRequest true "fields to change"
// @Success      200 {object} model.Book
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/books/{id} [put]
func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return httpError(err)
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.bookSvc.UpdateBook(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

// DeleteBook
// @Summary      Delete book (admin)
// @Tags         books
// @Param        id path int true "book id"
// @Success      204
// @Failure      404 {object} echo.HTTPError
// @Failure      409 {object} echo.HTTPError
// @Router       /api/v1/books/{id} [delete]
func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.bookSvc.DeleteBook(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
