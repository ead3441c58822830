package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/customs-duty-engine/internal/config"
	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/core/ports"
	"github.com/kirillkom/customs-duty-engine/internal/core/usecase"
	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/repository/ratefile"
	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/resilience"
)

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Settings domain.CalculationSettings
	Executor *resilience.Executor

	Repo       ports.RateRepository
	Calculator ports.DutyCalculator

	closeFns []func()
}

type Options struct {
	Logger          *slog.Logger
	Observer        ports.CalculationObserver
	BreakerListener resilience.StateListener
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Settings: Settings(cfg),
		Executor: NewExecutor(cfg, logger, opts.BreakerListener),
	}

	switch cfg.RateSource {
	case config.RateSourceFile:
		repo, err := ratefile.Open(cfg.RateFile)
		if err != nil {
			return nil, fmt.Errorf("open rate file: %w", err)
		}
		logger.Info("rate_source_ready", "source", config.RateSourceFile, "path", cfg.RateFile, "records", repo.Len())
		app.Repo = repo
	case config.RateSourcePostgres, "":
		repo, db, err := OpenPostgres(ctx, cfg, app.Executor)
		if err != nil {
			return nil, err
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })
		logger.Info("rate_source_ready", "source", config.RateSourcePostgres)
		app.Repo = repo
	default:
		return nil, fmt.Errorf("unknown rate source %q", cfg.RateSource)
	}

	app.Calculator = usecase.NewCalculateDutyUseCase(app.Repo, usecase.CalculateOptions{
		Settings:         app.Settings,
		BatchConcurrency: cfg.BatchConcurrency,
		Observer:         opts.Observer,
		Logger:           logger,
	})
	return app, nil
}

// OpenPostgres connects to the rate database and makes sure the schema exists.
func OpenPostgres(ctx context.Context, cfg config.Config, executor *resilience.Executor) (*postgres.RateRepository, *sql.DB, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewRateRepository(db, executor)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, db, nil
}

// ConnectBatchTransport uses its own executor with the batch transport policy.
func ConnectBatchTransport(cfg config.Config, logger *slog.Logger, listener resilience.StateListener) (*nats.BatchTransport, error) {
	transport, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSBatchSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: newExecutor(ResilienceConfig(cfg).ForBatchTransport(), logger, listener),
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init batch transport: %w", err)
	}
	return transport, nil
}

func NewExecutor(cfg config.Config, logger *slog.Logger, listener resilience.StateListener) *resilience.Executor {
	return newExecutor(ResilienceConfig(cfg), logger, listener)
}

func newExecutor(cfg resilience.Config, logger *slog.Logger, listener resilience.StateListener) *resilience.Executor {
	opts := []resilience.Option{resilience.WithLogger(logger)}
	if listener != nil {
		opts = append(opts, resilience.WithStateListener(listener))
	}
	return resilience.NewExecutor(cfg, opts...)
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultLookupPolicy()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = time.Duration(cfg.ResilienceRetryInitialMS) * time.Millisecond
	out.RetryMaxBackoff = time.Duration(cfg.ResilienceRetryMaxMS) * time.Millisecond
	out.AttemptTimeout = time.Duration(cfg.ResilienceAttemptTimeoutMS) * time.Millisecond
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = time.Duration(cfg.ResilienceBreakerOpenTimeoutMS) * time.Millisecond
	return out
}

func Settings(cfg config.Config) domain.CalculationSettings {
	return domain.CalculationSettings{
		GSTRatePercent:           cfg.GSTRatePercent,
		MinorUnits:               int32(cfg.CurrencyMinorUnits),
		EliminationWarningDays:   cfg.EliminationWarningDays,
		ConcessionExpiryWarnDays: cfg.ConcessionExpiryWarningDays,
	}.Normalize()
}

// OnClose registers cleanup to run when the app is closed, in reverse order.
func (a *App) OnClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
