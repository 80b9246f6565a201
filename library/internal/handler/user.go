package handler

import (
	"net/http"

	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/pkg/auth"
	"github.com/labstack/echo/v4"
)

var userSortFields = []string{"email", "firstName", "lastName", "createdAt"}

// GetUser
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Param        id path int true "user id"
// @Success      200 {object} model.User
// @Failure      403 {object} echo.HTTPError
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/users/{id} [get]
func (h *Handler) GetUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !auth.CanAccessUser(ctx, id) {
		return echo.NewHTTPError(http.StatusForbidden, "user data of another user")
	}
	user, err := h.userSvc.GetUser(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsers
// @Summary      All users (admin)
// @Tags         users
// @Produce      json
// @Param        page query int false "page, from 1"
// @Param        size query int false "page size"
// @Param        sort query string false "email|firstName|lastName|createdAt[,desc]"
// @Success      200 {object} model.Page[model.User]
// @Failure      403 {object} echo.HTTPError
// @Router       /api/v1/users [get]
func (h *Handler) ListUsers(c echo.Context) error {
	page, err := pageRequest(c, userSortFields...)
	if err != nil {
		return err
	}
	users, err := h.userSvc.ListUsers(c.Request().Context(), page)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateUser
// @Summary      Update user name
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id path int true "user id"
// @Param        request body model.UpdateUserRequest true "names"
// @Success      200 {object} model.User
// @Failure      400 {object} echo.HTTPError
// @Failure      403 {object} echo.HTTPError
// @Failure      404 {object} echo.HTTPError
// @Router       /api/v1/users/{id} [put]
func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if !auth.CanAccessUser(ctx, id) {
		return echo.NewHTTPError(http.StatusForbidden, "user data of another user")
	}
	var req model.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return httpError(err)
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	user, err := h.userSvc.UpdateUser(ctx, id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// Login
// @Summary      Exchange email and password for a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body model.LoginRequest true "credentials"
// @Success      200 {object} model.TokenResponse
// @Failure      400 {object} echo.HTTPError
// @Failure      401 {object} echo.HTTPError
// @Failure      501 {object} echo.HTTPError
// @Router       /api/v1/auth/login [post]
func (h *Handler) Login(c echo.Context) error {
	if len(h.jwtSecret) == 0 {
		return echo.NewHTTPError(http.StatusNotImplemented, "token login is disabled")
	}
	var req model.LoginRequest
	if err := c.Bind(&req); err != nil {
		return httpError(err)
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	user, err := h.userSvc.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	token, expiresAt, err := auth.IssueToken(h.jwtSecret, auth.Identity{
		UserID: user.ID,
		Role:   auth.Role(user.Role),
	}, h.tokenTTL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        user,
	})
}
