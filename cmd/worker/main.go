package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/dto"
	"github.com/kirillkom/customs-duty-engine/internal/bootstrap"
	"github.com/kirillkom/customs-duty-engine/internal/config"
	"github.com/kirillkom/customs-duty-engine/internal/observability/logging"
	"github.com/kirillkom/customs-duty-engine/internal/observability/metrics"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:          logger,
		Observer:        workerMetrics.Calculations(),
		BreakerListener: workerMetrics.Calculations().ObserveBreakerState,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	transport, err := bootstrap.ConnectBatchTransport(cfg, logger, workerMetrics.Calculations().ObserveBreakerState)
	if err != nil {
		logger.Error("transport_init_failed", "error", err)
		os.Exit(1)
	}
	app.OnClose(transport.Close)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	minorUnits := app.Settings.MinorUnits
	logger.Info("worker_subscribed", "subject", cfg.NATSBatchSubject, "queue_group", cfg.NATSQueueGroup)
	err = transport.SubscribeBatchRequests(ctx, func(handlerCtx context.Context, payload []byte) ([]byte, error) {
		start := time.Now()
		workerMetrics.StartBatch()
		reply, err := dto.HandleEncodedBatch(handlerCtx, app.Calculator, payload, minorUnits, cfg.BatchMaxItems)
		workerMetrics.FinishBatch("worker", time.Since(start), err)
		return reply, err
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
