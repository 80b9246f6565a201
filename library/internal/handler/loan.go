package handler

import (
	"net/http"

	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/pkg/auth"
	"github.com/labstack/echo/v4"
)

var loanSortFields = []string{"loanDate", "dueDate", "createdAt"}

// CreateLoan
// @Summary      Create loan
// @Tags         loans
// @Accept       json
// @Produce      json
// @Param        request body model.CreateLoanRequest true "loan"
// @Success      201 {object} model.Loan
// @Failure      400 {object} echo.HTTPError
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/loans [post]
func (h *Handler) CreateLoan(c echo.Context) error {
	var req model.CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return httpError(err)
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if !auth.CanAccessUser(ctx, req.UserID) {
		return echo.NewHTTPError(http.StatusForbidden, "loans can only be created for yourself")
	}

	loan, err := h.loanSvc.CreateLoan(ctx, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

// ReturnLoan
// @Summary      Return loan
// @Tags         loans
// @Produce      json
// @Param        id path int true "loan id"
// @Success      200 {object} model.Loan
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/loans/{id}/return [put]
func (h *Handler) ReturnLoan(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !auth.IsAdmin(ctx) {
		loan, err := h.loanSvc.GetLoan(ctx, id)
		if err != nil {
			return httpError(err)
		}
		if !auth.CanAccessUser(ctx, loan.UserID) {
			return echo.NewHTTPError(http.StatusForbidden, "loan belongs to another user")
		}
	}

	loan, err := h.loanSvc.ReturnLoan(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loan)
}

// GetLoan
// @Summary      Get loan
// @Tags         loans
// @Produce      json
// @Param        id path int true "loan id"
// @Success      200 {object} model.Loan
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/loans/{id} [get]
func (h *Handler) GetLoan(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	loan, err := h.loanSvc.GetLoan(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if !auth.CanAccessUser(ctx, loan.UserID) {
		return echo.NewHTTPError(http.StatusForbidden, "loan belongs to another user")
	}
	return c.JSON(http.StatusOK, loan)
}

// ListUserLoans
// @Summary      List loans of a user
// @Tags         loans
// @Produce      json
// @Param        userId path int true "user id"
// @Param        page query int false "page, from 1"
// @Param        size query int false "page size"
// @Param        sort query string false "loanDate|dueDate|createdAt[,desc]"
// @Success      200 {object} model.Page[model.Loan]
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/loans/user/{userId} [get]
func (h *Handler) ListUserLoans(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !auth.CanAccessUser(ctx, userID) {
		return echo.NewHTTPError(http.StatusForbidden, "loans of another user")
	}
	page, err := pageRequest(c, loanSortFields...)
	if err != nil {
		return err
	}

	loans, err := h.loanSvc.ListLoans(ctx, model.LoansOfUser(userID), page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// ListLoans
// @Summary      List all loans (admin)
// @Tags         loans
// @Produce      json
// @Param        page query int false "page, from 1"
// @Param        size query int false "page size"
// @Param        sort query string false "loanDate|dueDate|createdAt[,desc]"
// @Success      200 {object} model.Page[model.Loan]
// @Failure      403 {object} echo.HTTPError
// @Router       /api/v1/loans [get]
func (h *Handler) ListLoans(c echo.Context) error {
	page, err := pageRequest(c, loanSortFields...)
	if err != nil {
		return err
	}
	loans, err := h.loanSvc.ListLoans(c.Request().Context(), model.AllLoans(), page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// GetOverdueLoans sweeps as of today and lists every overdue loan.
// @Summary      Overdue loans (admin)
// @Tags         loans
// @Produce      json
// @Success      200 {array} model.Loan
// @Failure      403 {object} echo.HTTPError
// @Router       /api/v1/loans/overdue [get]
func (h *Handler) GetOverdueLoans(c echo.Context) error {
	loans, err := h.loanSvc.SweepOverdue(c.Request().Context(), h.loanSvc.Today())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}
