package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelwall/pixelwall-server/internal/config"
	"github.com/pixelwall/pixelwall-server/internal/core"
	"github.com/pixelwall/pixelwall-server/internal/grid"
	"github.com/pixelwall/pixelwall-server/internal/store"
)

// NewServer builds the HTTP server: health check, the websocket endpoint,
// and the read-only history API.
func NewServer(hub *core.Hub, g *grid.Grid, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(LoggerMiddleware(logger))

	router.GET("/healthz", healthHandler)
	router.GET("/ws", NewWSHandler(hub, g, cfg, logger))

	history := NewHistoryHandlers(st, cfg.HistoryLimit, logger)
	api := router.Group("/api")
	api.GET("/history", history.Recent)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
