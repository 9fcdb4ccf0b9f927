package session

import "errors"

var (
	// ErrAlreadyConnected is returned by Advertise while a session is active.
	ErrAlreadyConnected = errors.New("session: remote already connected")

	// ErrTransportClosed is returned once the transport has been closed.
	ErrTransportClosed = errors.New("session: transport closed")

	// ErrNotConnected is returned by Publish after the session ended.
	ErrNotConnected = errors.New("session: not connected")

	// ErrNotReadable is returned by Publish for a write-only channel.
	ErrNotReadable = errors.New("session: channel is not readable")
)
