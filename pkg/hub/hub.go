// Package hub fans controller status frames out to dashboard viewers.
//
// One goroutine (Run) owns the viewer set. Viewers that fall behind are
// dropped instead of slowing the publisher, and the latest frame is kept so
// a dashboard opened mid-session starts with the current status.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-superbit/internal/log"
	"github.com/teslashibe/go-superbit/pkg/protocol"
)

// publishBuffer is the depth of the inbound frame queue.
const publishBuffer = 64

// Hub tracks the connected viewers and delivers every published frame to them.
type Hub struct {
	name   string
	logger *slog.Logger

	frames chan []byte
	joins  chan *Viewer
	leaves chan *Viewer
	done   chan struct{}

	mu      sync.RWMutex
	viewers map[*Viewer]struct{}
	latest  []byte
	running bool
	dropped uint64
}

// New creates a hub. name tags its log lines.
func New(name string) *Hub {
	return &Hub{
		name:    name,
		logger:  log.With("hub", name),
		frames:  make(chan []byte, publishBuffer),
		joins:   make(chan *Viewer),
		leaves:  make(chan *Viewer),
		done:    make(chan struct{}),
		viewers: make(map[*Viewer]struct{}),
	}
}

// SetLogger replaces the hub's logger.
func (h *Hub) SetLogger(l *slog.Logger) {
	h.logger = l.With("hub", h.name)
}

// Run delivers frames until ctx is cancelled, then disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		close(h.done)
		for v := range h.viewers {
			close(v.frames)
			delete(h.viewers, v)
		}
		h.running = false
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case v := <-h.joins:
			h.mu.Lock()
			h.viewers[v] = struct{}{}
			if h.latest != nil {
				v.frames <- h.latest
			}
			n := len(h.viewers)
			h.mu.Unlock()
			h.logger.Debug("viewer joined", "addr", v.addr, "viewers", n)

		case v := <-h.leaves:
			h.mu.Lock()
			if _, ok := h.viewers[v]; ok {
				delete(h.viewers, v)
				close(v.frames)
			}
			n := len(h.viewers)
			h.mu.Unlock()
			h.logger.Debug("viewer left", "addr", v.addr, "viewers", n)

		case frame := <-h.frames:
			h.deliver(frame)
		}
	}
}

func (h *Hub) deliver(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = frame
	for v := range h.viewers {
		select {
		case v.frames <- frame:
		default:
			close(v.frames)
			delete(h.viewers, v)
			h.dropped++
			h.logger.Warn("dropped slow viewer", "addr", v.addr)
		}
	}
}

// join adds v unless the hub has stopped.
func (h *Hub) join(v *Viewer) bool {
	select {
	case h.joins <- v:
		return true
	case <-h.done:
		return false
	}
}

// leave removes v unless the hub has stopped.
func (h *Hub) leave(v *Viewer) {
	select {
	case h.leaves <- v:
	case <-h.done:
	}
}

// Publish queues a pre-encoded JSON frame. It never blocks; when the queue
// is full the frame is discarded.
func (h *Hub) Publish(frame []byte) {
	select {
	case h.frames <- frame:
	default:
		h.logger.Warn("publish queue full, frame discarded")
	}
}

// PublishStatus wraps st in a status message and publishes it.
func (h *Hub) PublishStatus(st protocol.StatusData) error {
	msg, err := protocol.NewStatusMessage(st)
	if err != nil {
		return err
	}
	frame, err := msg.Bytes()
	if err != nil {
		return err
	}
	h.Publish(frame)
	return nil
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Dropped returns how many viewers were disconnected for falling behind.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Running reports whether Run is active.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
