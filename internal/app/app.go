package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelwall/pixelwall-server/internal/config"
	"github.com/pixelwall/pixelwall-server/internal/core"
	"github.com/pixelwall/pixelwall-server/internal/grid"
	"github.com/pixelwall/pixelwall-server/internal/store"
	"github.com/pixelwall/pixelwall-server/internal/store/sqlite"
	transporthttp "github.com/pixelwall/pixelwall-server/internal/transport/http"
)

// App wires the grid, hub, history store and HTTP transport together.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	recorder        *store.Recorder
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init history store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("history store initialized")

	recorder := store.NewRecorder(st, logger)

	// The grid always starts from the default color; history is never
	// replayed into it.
	g := grid.New(cfg.GridWidth, cfg.GridHeight, grid.White)
	logger.Info().
		Int("width", cfg.GridWidth).
		Int("height", cfg.GridHeight).
		Msg("grid initialized")

	hub := core.NewHub(recorder, logger)
	server := transporthttp.NewServer(hub, g, st, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		recorder:        recorder,
		log:             logger,
	}, nil
}

// Run starts the hub and the HTTP server, and blocks until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup drains the recorder and closes the database.
func (a *App) cleanup() {
	a.recorder.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close history store")
	} else {
		a.log.Info().Msg("history store closed")
	}
}
