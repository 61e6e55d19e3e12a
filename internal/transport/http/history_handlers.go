package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelwall/pixelwall-server/internal/grid"
	"github.com/pixelwall/pixelwall-server/internal/store"
)

// maxHistoryLimit caps how many events a single request may ask for.
const maxHistoryLimit = 1000

// HistoryHandlers serves the read-only paint history API.
type HistoryHandlers struct {
	store        store.Store
	defaultLimit int
	log          *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.Store, defaultLimit int, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{
		store:        st,
		defaultLimit: defaultLimit,
		log:          logger,
	}
}

// PaintEventResponse is one history entry as returned by the API.
type PaintEventResponse struct {
	Name      string     `json:"name"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
	Pixel     grid.Color `json:"pixel"`
	CreatedAt time.Time  `json:"created_at"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Recent handles GET /api/history?limit=N, newest events first.
func (h *HistoryHandlers) Recent(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	events, err := h.store.RecentPaints(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("query paint history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load history"})
		return
	}

	resp := make([]PaintEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, PaintEventResponse{
			Name:      ev.Name,
			X:         ev.X,
			Y:         ev.Y,
			Pixel:     ev.Color,
			CreatedAt: ev.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}
