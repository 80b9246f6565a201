package worker

import (
	"context"
	"time"

	"github.com/booktrack/library-service/library/internal/model"
	"go.uber.org/zap"
)

type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf model.Date) ([]model.Loan, error)
	Today() model.Date
}

// Sweeper reclassifies past-due loans on a fixed interval.
type Sweeper struct {
	svc      OverdueSweeper
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(svc OverdueSweeper, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		log:      log.Named("sweeper"),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("sweeper disabled")
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	asOf := s.svc.Today()
	start := time.Now()
	overdue, err := s.svc.SweepOverdue(ctx, asOf)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("sweep overdue", zap.Stringer("asOf", asOf), zap.Error(err))
		}
		return
	}
	s.log.Debug("sweep done",
		zap.Stringer("asOf", asOf),
		zap.Int("overdue", len(overdue)),
		zap.Duration("took", time.Since(start)))
}
