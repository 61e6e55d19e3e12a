package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pixelwall/pixelwall-server/internal/proto"
	"github.com/pixelwall/pixelwall-server/internal/store"
)

// Hub owns the connection registry. Every membership change and every
// broadcast fan-out runs on the single Run goroutine, so the registry is
// never touched concurrently and membership always matches broadcast
// eligibility. Per-connection problems never terminate the loop.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan *proto.Update

	// done is closed when Run returns so late Register/Unregister/Broadcast
	// calls from winding-down pumps do not block forever.
	done chan struct{}

	clients  map[uuid.UUID]*Client
	recorder *store.Recorder
	log      *zerolog.Logger
}

// NewHub builds a hub. recorder may be nil to disable history recording;
// logger may be nil in tests.
func NewHub(recorder *store.Recorder, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *proto.Update, 64),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID]*Client),
		recorder:   recorder,
		log:        logger,
	}
}

// Register makes the client eligible for broadcasts. Must be called only
// after the client's initial snapshot has been sent.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes the client from the registry and closes its outbound
// queue. Safe to call for a client the hub already evicted.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast relays an accepted update to every registered client except its
// sender.
func (h *Hub) Broadcast(ev *proto.Update) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// Run processes registry and broadcast traffic until ctx is cancelled, then
// closes every remaining outbound queue so the write loops drain out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c.ID] = c
			h.log.Info().
				Stringer("conn_id", c.ID).
				Str("name", c.Name).
				Int("clients", len(h.clients)).
				Msg("client joined")

		case c := <-h.unregister:
			h.drop(c, "disconnected")

		case ev := <-h.broadcast:
			h.fanOut(ev)

		case <-ctx.Done():
			for _, c := range h.clients {
				h.drop(c, "hub shutting down")
			}
			return
		}
	}
}

// drop removes a client from the registry and closes its queue. A second
// attempt for the same client is a no-op: disconnect paths may race and both
// end up here.
func (h *Hub) drop(c *Client, reason string) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.Send)
	h.log.Info().
		Stringer("conn_id", c.ID).
		Str("name", c.Name).
		Str("reason", reason).
		Int("clients", len(h.clients)).
		Msg("client left")
}

// fanOut enqueues ev for every client but the sender. Enqueues never block:
// a full queue means a stalled peer, and a stalled peer is treated exactly
// like a dead one.
func (h *Hub) fanOut(ev *proto.Update) {
	var stalled []*Client
	for id, c := range h.clients {
		if id == ev.Sender {
			continue
		}
		select {
		case c.Send <- ev:
		default:
			stalled = append(stalled, c)
		}
	}
	// Evictions run after the pass so the map is not mutated mid-iteration;
	// they stay on this goroutine, preserving the registry invariant.
	for _, c := range stalled {
		h.drop(c, "outbound queue full")
	}

	if h.recorder != nil {
		name := ""
		if sender, ok := h.clients[ev.Sender]; ok {
			name = sender.Name
		}
		if !h.recorder.Record(store.PaintEvent{
			ConnID: ev.Sender.String(),
			Name:   name,
			X:      ev.X,
			Y:      ev.Y,
			Color:  ev.Pixel,
		}) {
			h.log.Warn().Msg("history recorder backlog full, paint event dropped")
		}
	}
}
