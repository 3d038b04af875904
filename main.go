package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/k2tzumi/new-emoji-webhook/internal/app"
	"github.com/k2tzumi/new-emoji-webhook/internal/config"
	"github.com/k2tzumi/new-emoji-webhook/internal/logging"
	"github.com/k2tzumi/new-emoji-webhook/internal/tracing"
)

var (
	logger     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	configPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "new-emoji-webhook",
		Short:         "Relay Slack emoji_changed events to an incoming webhook",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (environment variables override it)")

	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(configCmd())
	return root
}

// loadConfig reads the configuration and switches the process logger to
// the configured level and format.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger = logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the Slack Events API endpoint",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	relay, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer relay.Close()

	logger.Info("relay ready",
		"events_path", cfg.HTTP.EventsPath,
		"cache", cfg.Cache.Backend,
		"delivery", cfg.Delivery.Mode)
	return relay.Run(ctx)
}
