package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/teslashibe/go-superbit/pkg/command"
)

// conn is the transport-independent half of a session: the bounded event
// queue, the end-of-life signal and the published channel values.
type conn struct {
	id     string
	peer   string
	logger *slog.Logger

	events  chan command.Event
	dropped atomic.Uint64

	done    chan struct{}
	endOnce sync.Once
	reason  EndReason
	err     error

	mu     sync.Mutex
	values map[command.Channel][]byte

	// afterEvent, when set, runs on the dispatch goroutine once the handler
	// returned for ev.
	afterEvent func(ev command.Event)
}

func newConn(peer string, queue int, logger *slog.Logger) *conn {
	id := uuid.NewString()
	return &conn{
		id:     id,
		peer:   peer,
		logger: logger.With("session", id, "peer", peer),
		events: make(chan command.Event, queue),
		done:   make(chan struct{}),
		values: make(map[command.Channel][]byte),
	}
}

func (c *conn) ID() string   { return c.id }
func (c *conn) Peer() string { return c.peer }

// Dropped returns how many events were discarded because the queue was full.
func (c *conn) Dropped() uint64 { return c.dropped.Load() }

// deliver queues ev without blocking the transport goroutine.
func (c *conn) deliver(ev command.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	default:
		n := c.dropped.Add(1)
		c.logger.Warn("event queue full, dropping event", "event", describe(ev), "dropped", n)
		return false
	}
}

// end records why the connection ended. Only the first call counts.
func (c *conn) end(reason EndReason, err error) {
	c.endOnce.Do(func() {
		c.reason, c.err = reason, err
		close(c.done)
	})
}

func (c *conn) ended() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) run(ctx context.Context, h Handler) (EndReason, error) {
	for {
		select {
		case <-ctx.Done():
			return Shutdown, nil
		case ev := <-c.events:
			c.dispatch(h, ev)
		case <-c.done:
			c.drain(ctx, h)
			return c.reason, c.err
		}
	}
}

// drain delivers whatever was queued before the connection ended.
func (c *conn) drain(ctx context.Context, h Handler) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case ev := <-c.events:
			c.dispatch(h, ev)
		default:
			return
		}
	}
}

func (c *conn) dispatch(h Handler, ev command.Event) {
	h(ev)
	if c.afterEvent != nil {
		c.afterEvent(ev)
	}
}

// store records value as the current value of ch.
func (c *conn) store(ch command.Channel, value []byte) error {
	if !ch.Readable() {
		return ErrNotReadable
	}
	if c.ended() {
		return ErrNotConnected
	}
	c.mu.Lock()
	c.values[ch] = append([]byte(nil), value...)
	c.mu.Unlock()
	return nil
}

func (c *conn) value(ch command.Channel) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.values[ch]...)
}

func describe(ev command.Event) string {
	switch e := ev.(type) {
	case command.WriteEvent:
		return "write " + e.Channel.String()
	case command.ReadEvent:
		return "read " + e.Channel.String()
	case command.SubscriptionEvent:
		if e.Enabled {
			return "subscribe " + e.Channel.String()
		}
		return "unsubscribe " + e.Channel.String()
	default:
		return "unknown"
	}
}
