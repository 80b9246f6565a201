package events

import (
	"context"

	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/service"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/multierr"
)

const meterName = "github.com/booktrack/library-service/library"

const (
	MetricLoansCreated    = "library.loans.created"
	MetricLoansReturned   = "library.loans.returned"
	MetricLoansOverdue    = "library.loans.overdue"
	MetricBooksAdded      = "library.books.added"
	MetricUsersRegistered = "library.users.registered"
)

// Metrics counts committed changes on otel counters. It is a service.Observer.
type Metrics struct {
	loansCreated    metric.Int64Counter
	loansReturned   metric.Int64Counter
	loansOverdue    metric.Int64Counter
	booksAdded      metric.Int64Counter
	usersRegistered metric.Int64Counter
}

var _ service.Observer = (*Metrics)(nil)

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.loansCreated, MetricLoansCreated, "Loans opened", "{loan}"},
		{&m.loansReturned, MetricLoansReturned, "Loans returned", "{loan}"},
		{&m.loansOverdue, MetricLoansOverdue, "Loans marked overdue by the sweep", "{loan}"},
		{&m.booksAdded, MetricBooksAdded, "Books added to the catalogue", "{book}"},
		{&m.usersRegistered, MetricUsersRegistered, "Users registered", "{user}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, errors.Wrapf(err, "counter %s", c.name)
		}
		*c.dst = counter
	}
	return &m, nil
}

func (m *Metrics) LoanCreated(ctx context.Context, _ model.Loan) error {
	m.loansCreated.Add(ctx, 1)
	return nil
}

func (m *Metrics) LoanReturned(ctx context.Context, loan model.Loan) error {
	late := loan.ReturnDate != nil && loan.ReturnDate.After(loan.DueDate)
	m.loansReturned.Add(ctx, 1, metric.WithAttributes(attribute.Bool("late", late)))
	return nil
}

func (m *Metrics) LoansMarkedOverdue(ctx context.Context, loans []model.Loan) error {
	m.loansOverdue.Add(ctx, int64(len(loans)))
	return nil
}

func (m *Metrics) BookAdded(ctx context.Context, _ model.Book) error {
	m.booksAdded.Add(ctx, 1)
	return nil
}

func (m *Metrics) UserRegistered(ctx context.Context, user model.User) error {
	m.usersRegistered.Add(ctx, 1, metric.WithAttributes(attribute.String("role", string(user.Role))))
	return nil
}

// Registry is an in-process meter provider whose values are pulled on demand.
type Registry struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

func NewRegistry() *Registry {
	reader := sdkmetric.NewManualReader()
	return &Registry{
		reader:   reader,
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
}

func (r *Registry) Meter() metric.Meter {
	return r.provider.Meter(meterName)
}

// Snapshot collects the int64 sums by instrument name, attributes summed together.
func (r *Registry) Snapshot(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return nil, errors.Wrap(err, "collect metrics")
	}
	return sums(rm), nil
}

func sums(rm metricdata.ResourceMetrics) map[string]int64 {
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			out[m.Name] = total
		}
	}
	return out
}

func (r *Registry) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

// Multi fans out to every observer and joins their errors.
type Multi []service.Observer

func (m Multi) LoanCreated(ctx context.Context, loan model.Loan) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.LoanCreated(ctx, loan))
	}
	return err
}

func (m Multi) LoanReturned(ctx context.Context, loan model.Loan) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.LoanReturned(ctx, loan))
	}
	return err
}

func (m Multi) LoansMarkedOverdue(ctx context.Context, loans []model.Loan) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.LoansMarkedOverdue(ctx, loans))
	}
	return err
}

func (m Multi) BookAdded(ctx context.Context, book model.Book) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.BookAdded(ctx, book))
	}
	return err
}

func (m Multi) UserRegistered(ctx context.Context, user model.User) error {
	var err error
	for _, o := range m {
		err = multierr.Append(err, o.UserRegistered(ctx, user))
	}
	return err
}
