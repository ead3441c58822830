package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/mcptool"
	"github.com/kirillkom/customs-duty-engine/internal/bootstrap"
	"github.com/kirillkom/customs-duty-engine/internal/config"
	"github.com/kirillkom/customs-duty-engine/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tool := mcptool.New(app.Calculator, app.Settings.MinorUnits, logger)
	if err := server.ServeStdio(mcptool.NewServer(tool, version)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
	}
}
