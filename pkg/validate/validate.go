package validate

import (
	"reflect"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

var isbnRegexp = regexp.MustCompile(`^(97(8|9))?\d{9}(\d|X)$`)

type CustomValidator struct {
	validator *validator.Validate
	now       func() time.Time
}

type Option func(cv *CustomValidator)

// WithTypeFunc lets wrapper types (e.g. a date type) be validated as their underlying value.
func WithTypeFunc(fn validator.CustomTypeFunc, types ...interface{}) Option {
	return func(cv *CustomValidator) {
		cv.validator.RegisterCustomTypeFunc(fn, types...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(cv *CustomValidator) {
		cv.now = now
	}
}

func NewCustomValidator(opts ...Option) *CustomValidator {
	cv := &CustomValidator{
		validator: validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(cv)
	}
	_ = cv.validator.RegisterValidation("notfuture", cv.notFuture) //nolint:errcheck
	_ = cv.validator.RegisterValidation("future", cv.future)       //nolint:errcheck
	_ = cv.validator.RegisterValidation("isbn_format", isbnFormat)  //nolint:errcheck
	return cv
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// notFuture: the date is today or earlier.
func (cv *CustomValidator) notFuture(fl validator.FieldLevel) bool {
	t, ok := asTime(fl.Field())
	if !ok {
		return false
	}
	return !dateOf(t).After(dateOf(cv.now()))
}

// future: the date is strictly after today.
func (cv *CustomValidator) future(fl validator.FieldLevel) bool {
	t, ok := asTime(fl.Field())
	if !ok {
		return false
	}
	return dateOf(t).After(dateOf(cv.now()))
}

func isbnFormat(fl validator.FieldLevel) bool {
	return isbnRegexp.MatchString(fl.Field().String())
}

func asTime(v reflect.Value) (time.Time, bool) {
	t, ok := v.Interface().(time.Time)
	return t, ok
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
