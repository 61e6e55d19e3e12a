package core

import (
	"testing"
	"time"

	"github.com/pixelwall/pixelwall-server/internal/proto"
)

func mustUpdate(t *testing.T, ch <-chan *proto.Update) *proto.Update {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("outbound queue closed while waiting for update")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected update not received")
	}
	return nil
}

// mustClosed drains ch until it is closed, failing the test on timeout.
func mustClosed(t *testing.T, ch <-chan *proto.Update) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbound queue was not closed")
		}
	}
}

func mustEmpty(t *testing.T, ch <-chan *proto.Update) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected update in queue: %+v", ev)
	default:
	}
}
