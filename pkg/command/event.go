package command

// Event is something a session delivers to the control loop. The set is
// closed: only the types in this file implement it.
type Event interface {
	event()
}

// WriteEvent carries bytes the remote wrote to a channel.
type WriteEvent struct {
	Channel Channel
	Value   []byte
}

// ReadEvent reports that the remote read a channel's current value.
type ReadEvent struct {
	Channel Channel
}

// SubscriptionEvent reports that the remote enabled or disabled pushed
// updates on a channel.
type SubscriptionEvent struct {
	Channel Channel
	Enabled bool
}

func (WriteEvent) event()        {}
func (ReadEvent) event()         {}
func (SubscriptionEvent) event() {}
