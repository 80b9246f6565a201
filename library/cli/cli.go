// Package cli holds the libraryctl operator commands.
package cli

import (
	"context"
	"os"

	"github.com/booktrack/library-service/library/app"
	"github.com/booktrack/library-service/library/config"
	"github.com/booktrack/library-service/library/internal/repository"
	"github.com/booktrack/library-service/library/internal/service"
	"github.com/booktrack/library-service/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type env struct {
	cfg *config.Config
	log *zap.Logger
	// store overrides the configured storage driver.
	store repository.Transactor
}

// service opens the configured store. Callers must run the returned close func.
func (e *env) service(ctx context.Context) (*service.Service, func(), error) {
	store, closeStore := e.store, func() {}
	if store == nil {
		var err error
		if store, closeStore, err = app.Storage(ctx, e.cfg, e.log); err != nil {
			return nil, nil, err
		}
	}
	observer, closeObserver := app.Observer(e.cfg, e.log)
	svc := service.NewService(store, service.Policy{
		MaxActiveLoans:        e.cfg.Loan.MaxActive,
		DefaultLoanPeriodDays: e.cfg.Loan.PeriodDays,
	}, e.log, service.WithObserver(observer))
	return svc, func() {
		closeObserver()
		closeStore()
	}, nil
}

// NewRootCmd reads .env and the environment before any subcommand runs.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&env{})
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Operator commands for the library service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg != nil {
				return nil
			}
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return err
			}
			e.cfg = config.NewConfig()
			e.log = logger.NewLogger(e.cfg.Log, "libraryctl")
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(e),
		newSweepCmd(e),
		newUserCmd(e),
		newBookCmd(e),
		newEventsCmd(e),
		newTokenCmd(e),
	)
	return root
}
