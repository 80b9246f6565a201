package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/booktrack/library-service/library/config"
	"github.com/booktrack/library-service/library/internal/events"
	"github.com/booktrack/library-service/library/internal/handler"
	"github.com/booktrack/library-service/library/internal/repository"
	"github.com/booktrack/library-service/library/internal/repository/memory"
	"github.com/booktrack/library-service/library/internal/server"
	"github.com/booktrack/library-service/library/internal/service"
	"github.com/booktrack/library-service/library/internal/worker"
	"github.com/booktrack/library-service/library/migrations"
	cb "github.com/booktrack/library-service/pkg/circuit_breaker"
	"github.com/booktrack/library-service/pkg/kafka"
	"github.com/booktrack/library-service/pkg/logger"
	"github.com/booktrack/library-service/pkg/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Storage opens the configured Transactor. The returned func releases it.
func Storage(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Transactor, func(), error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("in-memory storage, data is lost on exit")
		return memory.New(), func() {}, nil
	}
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db.Close, nil
}

// Observer joins the given observers with kafka loan events when kafka is configured.
// The returned func flushes and closes the producer.
func Observer(cfg *config.Config, log *zap.Logger, observers ...service.Observer) (service.Observer, func()) {
	if !cfg.Kafka.Enabled() {
		return events.Multi(observers), func() {}
	}
	if err := kafka.CreateTopics(cfg.Kafka, kafka.LoanEventsTopic); err != nil {
		log.Warn("kafka.CreateTopics", zap.Error(err))
	}
	producer, err := kafka.NewAsyncProducer(cfg.Kafka)
	if err != nil {
		log.Error("kafka.NewAsyncProducer, loan events disabled", zap.Error(err))
		return events.Multi(observers), func() {}
	}
	publisher := events.NewPublisher(producer, cb.New(events.DefaultBreakerSettings()), log)
	return append(events.Multi(observers), publisher), func() {
		if err := publisher.Close(); err != nil {
			log.Warn("producer close", zap.Error(err))
		}
	}
}

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := Storage(ctx, cfg, log)
	if err != nil {
		log.Fatal("storage init", zap.Error(err))
	}
	defer closeStore()

	registry := events.NewRegistry()
	defer func() {
		if err := registry.Shutdown(context.Background()); err != nil {
			log.Warn("meter provider shutdown", zap.Error(err))
		}
	}()
	metrics, err := events.NewMetrics(registry.Meter())
	if err != nil {
		log.Fatal("metrics init", zap.Error(err))
	}
	observer, closeObserver := Observer(cfg, log, metrics)
	defer closeObserver()

	svc := service.NewService(store, service.Policy{
		MaxActiveLoans:        cfg.Loan.MaxActive,
		DefaultLoanPeriodDays: cfg.Loan.PeriodDays,
	}, log, service.WithObserver(observer))

	h := handler.New(svc.LoanService, svc.BookService, svc.UserService, log,
		handler.WithJWTSecret(cfg.Auth.JWTSecret),
		handler.WithTokenTTL(cfg.Auth.TokenTTL),
		handler.WithRateLimit(cfg.Server.RateLimit),
		handler.WithMetrics(func(ctx context.Context) (any, error) {
			return registry.Snapshot(ctx)
		}),
	)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	sweeper := worker.NewSweeper(svc.LoanService, cfg.Sweep.Interval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr",
				net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown", zap.NamedError("cause", context.Cause(gctx)))

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("library stopped with error", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}
