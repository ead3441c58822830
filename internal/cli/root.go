package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kirillkom/customs-duty-engine/internal/bootstrap"
	"github.com/kirillkom/customs-duty-engine/internal/config"
	"github.com/kirillkom/customs-duty-engine/internal/core/ports"
)

// Runtime holds the collaborators commands open on demand, so tests can replace the network-bound ones.
type Runtime struct {
	Config config.Config
	Logger *slog.Logger

	OpenApp       func(ctx context.Context, cfg config.Config) (*bootstrap.App, error)
	DialTransport func(cfg config.Config) (ports.BatchTransport, func(), error)
	OpenImporter  func(ctx context.Context, cfg config.Config) (ports.RateImporter, func(), error)
}

func DefaultRuntime(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		Config: cfg,
		Logger: logger,
		OpenApp: func(ctx context.Context, cfg config.Config) (*bootstrap.App, error) {
			return bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
		},
		DialTransport: func(cfg config.Config) (ports.BatchTransport, func(), error) {
			transport, err := bootstrap.ConnectBatchTransport(cfg, logger, nil)
			if err != nil {
				return nil, nil, err
			}
			return transport, transport.Close, nil
		},
		OpenImporter: func(ctx context.Context, cfg config.Config) (ports.RateImporter, func(), error) {
			repo, db, err := bootstrap.OpenPostgres(ctx, cfg, bootstrap.NewExecutor(cfg, logger, nil))
			if err != nil {
				return nil, nil, err
			}
			return repo, func() { _ = db.Close() }, nil
		},
	}
}

func NewRootCommand(rt *Runtime) *cobra.Command {
	var rateFile string

	root := &cobra.Command{
		Use:           "dutyctl",
		Short:         "Resolve customs duty regimes and compute landed cost",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if rateFile != "" {
				rt.Config.RateSource = config.RateSourceFile
				rt.Config.RateFile = rateFile
			}
		},
	}
	root.PersistentFlags().StringVar(&rateFile, "rate-file", "", "Read rates from a YAML file instead of the configured source")

	root.AddCommand(
		newCalculateCommand(rt),
		newBatchCommand(rt),
		newTemplateCommand(),
		newSchemaCommand(rt),
		newSeedCommand(rt),
	)
	return root
}

func (rt *Runtime) minorUnits() int32 {
	if rt.Config.CurrencyMinorUnits < 0 {
		return 2
	}
	return int32(rt.Config.CurrencyMinorUnits)
}
