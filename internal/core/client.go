package core

import (
	"sync"

	"github.com/google/uuid"

	"github.com/pixelwall/pixelwall-server/internal/proto"
)

// sendBuffer is the outbound queue capacity per connection. A client that
// falls this far behind gets evicted instead of slowing the hub down.
const sendBuffer = 256

// State tracks a connection through its lifecycle. Transitions only ever
// move forward one step at a time; Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateUpgrading
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateUpgrading:
		return "upgrading"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one live connection as the hub sees it: a unique identifier, a
// display name, and a bounded outbound queue. The websocket itself stays
// with the transport layer; the hub only ever touches the queue, never
// another connection's state.
type Client struct {
	ID   uuid.UUID
	Name string
	Send chan *proto.Update

	mu    sync.Mutex
	state State
}

// NewClient constructs a client in the Connecting state with a fresh
// identifier. Identifiers are never reused for another transport.
func NewClient(name string) *Client {
	if name == "" {
		name = "anonymous"
	}
	return &Client{
		ID:    uuid.New(),
		Name:  name,
		Send:  make(chan *proto.Update, sendBuffer),
		state: StateConnecting,
	}
}

// Advance moves the client to next if next is the immediate successor of the
// current state, and reports whether the transition happened. Repeated calls
// with the same target (both pump loops racing to mark Closing) are no-ops.
func (c *Client) Advance(next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next != c.state+1 {
		return false
	}
	c.state = next
	return true
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
