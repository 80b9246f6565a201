package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/booktrack/library-service/library/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSweeper struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSweeper) SweepOverdue(context.Context, model.Date) ([]model.Loan, error) {
	f.calls.Add(1)
	return nil, f.err
}

func (f *fakeSweeper) Today() model.Date {
	return model.NewDate(2024, time.January, 10)
}

func TestSweeper_Run(t *testing.T) {
	t.Parallel()

	t.Run("ticks until cancelled", func(t *testing.T) {
		f := &fakeSweeper{err: errors.New("db down")}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- NewSweeper(f, 5*time.Millisecond, zap.NewNop()).Run(ctx) }()

		require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, time.Millisecond)
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("sweeper did not stop")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := &fakeSweeper{}
		require.NoError(t, NewSweeper(f, 0, zap.NewNop()).Run(context.Background()))
		require.Zero(t, f.calls.Load())
	})
}
