package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/pixelwall/pixelwall-server/internal/config"
	"github.com/pixelwall/pixelwall-server/internal/core"
	"github.com/pixelwall/pixelwall-server/internal/grid"
	"github.com/pixelwall/pixelwall-server/internal/proto"
	"github.com/pixelwall/pixelwall-server/internal/store"
	"github.com/pixelwall/pixelwall-server/internal/store/sqlite"
)

// serverMessage covers both outbound shapes so tests can decode either.
type serverMessage struct {
	Type   string         `json:"type"`
	Pixels [][]grid.Color `json:"pixels,omitempty"`
	X      int            `json:"x"`
	Y      int            `json:"y"`
	Pixel  grid.Color     `json:"pixel"`
}

func startTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	logger := zerolog.Nop()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rec := store.NewRecorder(st, &logger)
	t.Cleanup(rec.Close)

	hub := core.NewHub(rec, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	g := grid.New(10, 10, grid.White)
	server := NewServer(hub, g, st, config.Config{
		Addr:              ":0",
		GridWidth:         10,
		GridHeight:        10,
		HistoryLimit:      100,
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, st
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server, username string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	if username != "" {
		wsURL += "?username=" + username
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", username, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readMsg(t *testing.T, ctx context.Context, conn *websocket.Conn) serverMessage {
	t.Helper()

	var msg serverMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read server message: %v", err)
	}
	return msg
}

func readInit(t *testing.T, ctx context.Context, conn *websocket.Conn) serverMessage {
	t.Helper()

	msg := readMsg(t, ctx, conn)
	if msg.Type != proto.OutboundTypeInit {
		t.Fatalf("expected init as first message, got %q", msg.Type)
	}
	if len(msg.Pixels) != 10 || len(msg.Pixels[0]) != 10 {
		t.Fatalf("unexpected snapshot dimensions: %dx%d", len(msg.Pixels[0]), len(msg.Pixels))
	}
	return msg
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestPaintIsBroadcastToOthersNotSender(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts, "alice")
	initA := readInit(t, ctx, connA)
	for _, row := range initA.Pixels {
		for _, c := range row {
			if c != grid.White {
				t.Fatalf("fresh grid has non-white cell: %+v", c)
			}
		}
	}

	connB := dialWS(t, ctx, ts, "bob")
	readInit(t, ctx, connB)

	red := grid.Color{R: 255}
	if err := wsjson.Write(ctx, connA, proto.PaintRequest{X: 3, Y: 4, Pixel: red}); err != nil {
		t.Fatalf("send paint: %v", err)
	}

	update := readMsg(t, ctx, connB)
	if update.Type != proto.OutboundTypeUpdate || update.X != 3 || update.Y != 4 || update.Pixel != red {
		t.Fatalf("unexpected broadcast: %+v", update)
	}

	// The sender must not see its own update echoed back.
	echoCtx, echoCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer echoCancel()
	var echoed serverMessage
	if err := wsjson.Read(echoCtx, connA, &echoed); err == nil {
		t.Fatalf("sender received its own update back: %+v", echoed)
	}

	// A late joiner's snapshot already carries the change.
	connC := dialWS(t, ctx, ts, "carol")
	initC := readInit(t, ctx, connC)
	if initC.Pixels[4][3] != red {
		t.Fatalf("late joiner snapshot missing update: %+v", initC.Pixels[4][3])
	}
}

func TestOutOfRangePaintIsDiscarded(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts, "alice")
	readInit(t, ctx, connA)
	connB := dialWS(t, ctx, ts, "bob")
	readInit(t, ctx, connB)

	// Both coordinates outside the 10x10 grid: no broadcast, no state
	// change, and the connection stays open.
	if err := wsjson.Write(ctx, connA, proto.PaintRequest{X: 15, Y: 4, Pixel: grid.Color{R: 1}}); err != nil {
		t.Fatalf("send out-of-range paint: %v", err)
	}
	if err := wsjson.Write(ctx, connA, proto.PaintRequest{X: 0, Y: -1, Pixel: grid.Color{R: 1}}); err != nil {
		t.Fatalf("send out-of-range paint: %v", err)
	}

	// A valid paint over the same connection still goes through, proving
	// the session survived.
	green := grid.Color{G: 255}
	if err := wsjson.Write(ctx, connA, proto.PaintRequest{X: 1, Y: 1, Pixel: green}); err != nil {
		t.Fatalf("send paint: %v", err)
	}

	update := readMsg(t, ctx, connB)
	if update.X != 1 || update.Y != 1 || update.Pixel != green {
		t.Fatalf("expected only the in-range update, got %+v", update)
	}
}

func TestHistoryEndpointReturnsRecordedPaints(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts, "alice")
	readInit(t, ctx, connA)
	connB := dialWS(t, ctx, ts, "bob")
	readInit(t, ctx, connB)

	if err := wsjson.Write(ctx, connA, proto.PaintRequest{X: 2, Y: 7, Pixel: grid.Color{B: 255}}); err != nil {
		t.Fatalf("send paint: %v", err)
	}
	readMsg(t, ctx, connB) // broadcast observed, so the hub processed it

	// Recording is asynchronous; poll until the event lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := ts.Client().Get(ts.URL + "/api/history?limit=10")
		if err != nil {
			t.Fatalf("history request: %v", err)
		}
		var events []PaintEventResponse
		if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
			resp.Body.Close()
			t.Fatalf("decode history: %v", err)
		}
		resp.Body.Close()

		if len(events) == 1 {
			ev := events[0]
			if ev.Name != "alice" || ev.X != 2 || ev.Y != 7 || ev.Pixel != (grid.Color{B: 255}) {
				t.Fatalf("unexpected history entry: %+v", ev)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("paint event never showed up in history")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHistoryEndpointRejectsBadLimit(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/api/history?limit=bogus")
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMalformedMessageDisconnectsOnlyThatClient(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, ts, "alice")
	readInit(t, ctx, connA)
	connB := dialWS(t, ctx, ts, "bob")
	readInit(t, ctx, connB)
	connC := dialWS(t, ctx, ts, "carol")
	readInit(t, ctx, connC)

	// Not JSON at all: alice's read loop fails and her connection dies.
	if err := connA.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("send garbage: %v", err)
	}
	if _, _, err := connA.Read(ctx); err == nil {
		t.Fatalf("expected alice's connection to be closed")
	}

	// Everyone else keeps working.
	if err := wsjson.Write(ctx, connB, proto.PaintRequest{X: 5, Y: 5, Pixel: grid.Color{R: 9}}); err != nil {
		t.Fatalf("send paint: %v", err)
	}
	update := readMsg(t, ctx, connC)
	if update.X != 5 || update.Y != 5 {
		t.Fatalf("unexpected update after disconnect: %+v", update)
	}
}
