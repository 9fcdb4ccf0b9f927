// Package session manages the advertise, accept, service, disconnect cycle
// for a single remote controller over a pluggable transport.
//
// A Transport hands out at most one Session at a time. Transports receive
// data on their own goroutines and queue it; Session.Run drains that queue on
// the caller's goroutine and invokes the handler synchronously, so the next
// event is not delivered until the previous one has been fully handled.
package session

import (
	"context"

	"github.com/teslashibe/go-superbit/pkg/command"
)

// EndReason says why Session.Run returned.
type EndReason int

const (
	// Disconnected means the remote closed the connection.
	Disconnected EndReason = iota
	// TransportError means the link failed underneath the session.
	TransportError
	// Shutdown means the caller's context was cancelled.
	Shutdown
)

// String returns the reason name.
func (r EndReason) String() string {
	switch r {
	case Disconnected:
		return "disconnected"
	case TransportError:
		return "transport-error"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Handler receives events for one session.
type Handler func(ev command.Event)

// Session is one accepted remote connection.
type Session interface {
	// ID is unique per accepted connection.
	ID() string

	// Peer identifies the remote (BLE address or network address).
	Peer() string

	// Run delivers events to h until the remote disconnects, the link
	// fails or ctx is cancelled. Events queued before a disconnect are
	// still delivered before Run returns.
	Run(ctx context.Context, h Handler) (EndReason, error)

	// Publish updates the readable value of ch. When push is set the
	// remote is notified of the new value.
	Publish(ch command.Channel, value []byte, push bool) error

	// Close drops the connection.
	Close() error
}

// Transport advertises for and accepts remote connections.
type Transport interface {
	// Name is the transport kind, e.g. "ble" or "ws".
	Name() string

	// Advertise makes the device connectable and blocks until a remote
	// connects or ctx ends. It never times out by itself.
	Advertise(ctx context.Context) (Session, error)

	// Close stops the transport and ends any active session.
	Close() error
}

// SubscriptionReporter is implemented by sessions that can tell whether they
// deliver SubscriptionEvents. Sessions that cannot (the remote's subscription
// state lives in the BLE stack) return false, and callers should treat the
// remote as always subscribed.
type SubscriptionReporter interface {
	ReportsSubscriptions() bool
}

// DropCounter is implemented by sessions that count events discarded because
// the dispatch queue was full.
type DropCounter interface {
	Dropped() uint64
}
