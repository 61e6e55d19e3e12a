package proto

import (
	"github.com/google/uuid"

	"github.com/pixelwall/pixelwall-server/internal/grid"
)

const (
	// OutboundTypeInit tags the one-shot full snapshot sent on connect.
	OutboundTypeInit = "init"
	// OutboundTypeUpdate tags a relayed cell change.
	OutboundTypeUpdate = "update"
)

// Init carries the full grid snapshot, sent exactly once right after the
// websocket handshake and before the connection joins the hub.
type Init struct {
	Type   string         `json:"type"`
	Pixels [][]grid.Color `json:"pixels"`
}

// NewInit wraps a snapshot in the init envelope.
func NewInit(pixels [][]grid.Color) Init {
	return Init{Type: OutboundTypeInit, Pixels: pixels}
}

// Update is one accepted cell change, fanned out to every connection except
// the sender. Sender never crosses the wire.
type Update struct {
	Type   string     `json:"type"`
	X      int        `json:"x"`
	Y      int        `json:"y"`
	Pixel  grid.Color `json:"pixel"`
	Sender uuid.UUID  `json:"-"`
}

// PaintRequest is the client's request to recolor a single cell. There is no
// acknowledgment: the client applies its own change optimistically and is
// excluded from the resulting broadcast.
type PaintRequest struct {
	X     int        `json:"x"`
	Y     int        `json:"y"`
	Pixel grid.Color `json:"pixel"`
}
