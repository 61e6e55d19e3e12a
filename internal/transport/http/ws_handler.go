package http

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelwall/pixelwall-server/internal/config"
	"github.com/pixelwall/pixelwall-server/internal/core"
	"github.com/pixelwall/pixelwall-server/internal/grid"
	"github.com/pixelwall/pixelwall-server/internal/proto"
)

const (
	// writeWait bounds a single outbound frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a peer may stay silent before it is dead.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait so a healthy peer is probed
	// before the previous window expires.
	pingPeriod = (pongWait * 9) / 10
	// pingTimeout is how long a ping may wait for its pong: the slack
	// between two probes.
	pingTimeout = pongWait - pingPeriod
	// maxMessageSize bounds inbound frames; paint requests are tiny.
	maxMessageSize = 512
)

// WSHandler upgrades HTTP connections and pumps them against the hub: one
// read loop feeding the grid and the hub, one write loop draining the
// client's outbound queue.
type WSHandler struct {
	hub       *core.Hub
	grid      *grid.Grid
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds the websocket endpoint handler.
func NewWSHandler(hub *core.Hub, g *grid.Grid, cfg config.Config, logger *zerolog.Logger) gin.HandlerFunc {
	h := &WSHandler{hub: hub, grid: g, rateLimit: cfg.PaintRateLimit, log: logger}
	return h.handle
}

func (h *WSHandler) handle(c *gin.Context) {
	name := c.Query("username")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Request-scoped failure: nothing was allocated, nothing to undo.
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(maxMessageSize)
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(name)
	client.Advance(core.StateUpgrading)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The snapshot goes out before the hub learns about this connection.
	// Grid writes are serialized with Snapshot, so anything painted after
	// this copy is taken reaches the client as a broadcast once joined;
	// joining first could lose or duplicate an update.
	initCtx, initCancel := context.WithTimeout(ctx, writeWait)
	err = wsjson.Write(initCtx, conn, proto.NewInit(h.grid.Snapshot()))
	initCancel()
	if err != nil {
		h.log.Warn().Err(err).Stringer("conn_id", client.ID).Msg("send init snapshot")
		return
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)
	client.Advance(core.StateActive)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	// Whichever loop fails first decides the close status; the other is
	// cancelled and waited for so teardown runs exactly once.
	err = <-errCh
	client.Advance(core.StateClosing)
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Stringer("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
	client.Advance(core.StateClosed)
}

// readLoop pulls paint requests off the wire, applies them to the grid, and
// hands accepted updates to the hub. Any read or decode failure ends the
// connection; a bad coordinate only drops that one message.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.rateLimit)
	stop := make(chan struct{})
	defer close(stop)
	limiter.startReset(stop)

	for {
		var req proto.PaintRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Debug().
				Stringer("conn_id", client.ID).
				Msg("paint rate exceeded, dropping request")
			continue
		}

		if _, err := h.grid.Write(req.X, req.Y, req.Pixel); err != nil {
			// Out-of-range paints are discarded without hanging up; one
			// stray click must not cost the client its session.
			h.log.Debug().
				Stringer("conn_id", client.ID).
				Int("x", req.X).
				Int("y", req.Y).
				Msg("discarding out-of-range paint")
			continue
		}

		h.hub.Broadcast(&proto.Update{
			Type:   proto.OutboundTypeUpdate,
			X:      req.X,
			Y:      req.Y,
			Pixel:  req.Pixel,
			Sender: client.ID,
		})
	}
}

// writeLoop drains the outbound queue onto the wire and owns the keepalive
// timer. A closed queue means the hub dropped us (unregister or eviction):
// send a close frame and leave. Ping replies are handled by the transport
// while readLoop blocks in Read, so a peer that stops answering fails the
// ping and tears the connection down.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-client.Send:
			if !ok {
				return conn.Close(websocket.StatusNormalClosure, "connection dropped by server")
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
