package command

import "errors"

var (
	// ErrInvalidDirection is returned for direction bytes outside 0-3.
	ErrInvalidDirection = errors.New("command: invalid direction")

	// ErrInvalidLEDIndex is returned for LED indexes past the colour table.
	ErrInvalidLEDIndex = errors.New("command: invalid led index")

	// ErrEmptyPayload is returned for a write with no bytes.
	ErrEmptyPayload = errors.New("command: empty payload")

	// ErrUnknownChannel is returned for a channel the robot does not expose.
	ErrUnknownChannel = errors.New("command: unknown channel")
)
