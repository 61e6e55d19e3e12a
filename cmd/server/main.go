package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pixelwall/pixelwall-server/internal/app"
	"github.com/pixelwall/pixelwall-server/internal/config"
	"github.com/pixelwall/pixelwall-server/internal/log"
)

func main() {
	var cfgPath string
	var overrides config.Config

	root := &cobra.Command{
		Use:          "pixelwall-server",
		Short:        "Real-time collaborative pixel canvas server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath, overrides)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to config file")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.IntVar(&overrides.GridWidth, "grid-width", 0, "canvas width in cells")
	flags.IntVar(&overrides.GridHeight, "grid-height", 0, "canvas height in cells")
	flags.StringVar(&overrides.DatabasePath, "db", "", "path to the paint history database")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.IntVar(&overrides.PaintRateLimit, "paint-rate-limit", 0, "max paints per minute per connection (0 = unlimited)")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfgPath string, overrides config.Config) error {
	logger := log.New("info")

	cfg, cfgFile, err := config.Load(logger, cfgPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return err
	}
	cfg.UpdateFrom(overrides)

	logger = log.New(cfg.LogLevel)
	logger.Info().Str("config", cfgFile).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize application")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting pixelwall server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
