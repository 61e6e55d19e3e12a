package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	recorderBuffer = 512
	recordTimeout  = 5 * time.Second
)

// Recorder sits between the hub and the Store: events are enqueued without
// blocking and written by a single background goroutine, so a slow disk
// never gates broadcast fan-out. History is best-effort; when the buffer is
// full the event is dropped.
type Recorder struct {
	store Store
	ch    chan PaintEvent
	done  chan struct{}
	log   *zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewRecorder starts the writer goroutine. logger may be nil in tests.
func NewRecorder(s Store, logger *zerolog.Logger) *Recorder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := &Recorder{
		store: s,
		ch:    make(chan PaintEvent, recorderBuffer),
		done:  make(chan struct{}),
		log:   logger,
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.store.RecordPaint(ctx, ev); err != nil {
			r.log.Warn().Err(err).Msg("record paint event")
		}
		cancel()
	}
}

// Record enqueues ev and reports whether it was accepted. Never blocks;
// events offered after Close, or while the buffer is full, are dropped.
func (r *Recorder) Record(ev PaintEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.ch <- ev:
		return true
	default:
		return false
	}
}

// Close drains queued events into the store and stops the writer. Safe to
// call more than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
}
