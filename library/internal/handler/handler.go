package handler

import (
	"context"
	"net/http"
	"reflect"
	"time"

	"github.com/booktrack/library-service/library/internal/model"
	md "github.com/booktrack/library-service/pkg/middleware"
	"github.com/booktrack/library-service/pkg/validate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	_ "github.com/booktrack/library-service/swagger"
)

type Handler struct {
	loanSvc LoanService
	bookSvc BookService
	userSvc UserService
	log     *zap.Logger

	jwtSecret []byte
	tokenTTL  time.Duration
	rps       rate.Limit
	metrics   func(ctx context.Context) (any, error)
	now       func() time.Time
}

type Option func(h *Handler)

// WithJWTSecret enables bearer token authentication. Without it the gateway identity headers are trusted.
func WithJWTSecret(secret string) Option {
	return func(h *Handler) {
		if secret != "" {
			h.jwtSecret = []byte(secret)
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		if ttl > 0 {
			h.tokenTTL = ttl
		}
	}
}

func WithRateLimit(rps float64) Option {
	return func(h *Handler) {
		if rps > 0 {
			h.rps = rate.Limit(rps)
		}
	}
}

// WithMetrics exposes the snapshot on /manage/metrics.
func WithMetrics(snapshot func(ctx context.Context) (any, error)) Option {
	return func(h *Handler) {
		h.metrics = snapshot
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func New(loans LoanService, books BookService, users UserService, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		loanSvc:  loans,
		bookSvc:  books,
		userSvc:  users,
		log:      log.Named("handler"),
		tokenTTL: 24 * time.Hour,
		rps:      100,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
	)
	e.HideBanner = true
	e.JSONSerializer = jsonSerializer{}
	e.Validator = h.validator()
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/manage/metrics", h.Metrics)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	login := e.Group("/api/v1/auth",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(baseRPS),
	)
	login.POST("/login", h.Login)

	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(h.rps),
		h.authentication(),
	)
	h.routes(api)
	return e
}

func (h *Handler) routes(api *echo.Group) {
	loans := api.Group("/loans")
	loans.POST("", h.CreateLoan)
	loans.GET("", h.ListLoans, md.AdminOnly)
	loans.GET("/overdue", h.GetOverdueLoans, md.AdminOnly)
	loans.GET("/user/:userId", h.ListUserLoans)
	loans.GET("/:id", h.GetLoan)
	loans.PUT("/:id/return", h.ReturnLoan)

	books := api.Group("/books")
	books.GET("", h.GetAvailableBooks)
	books.GET("/:id", h.GetBook)
	books.POST("", h.CreateBook, md.AdminOnly)
	books.PUT("/:id", h.UpdateBook, md.AdminOnly)
	books.DELETE("/:id", h.DeleteBook, md.AdminOnly)

	users := api.Group("/users")
	users.GET("", h.ListUsers, md.AdminOnly)
	users.GET("/:id", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
}

func (h *Handler) authentication() echo.MiddlewareFunc {
	if len(h.jwtSecret) > 0 {
		return md.JwtAuthentication(h.jwtSecret)
	}
	return md.AuthContext
}

func (h *Handler) validator() *validate.CustomValidator {
	return validate.NewCustomValidator(
		validate.WithTypeFunc(func(v reflect.Value) interface{} {
			if d, ok := v.Interface().(model.Date); ok {
				return d.Time
			}
			return nil
		}, model.Date{}),
		validate.WithClock(h.now),
	)
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Metrics(c echo.Context) error {
	if h.metrics == nil {
		return c.NoContent(http.StatusNoContent)
	}
	snapshot, err := h.metrics(c.Request().Context())
	if err != nil {
		h.log.Error("metrics snapshot", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "metrics unavailable")
	}
	return c.JSON(http.StatusOK, snapshot)
}
