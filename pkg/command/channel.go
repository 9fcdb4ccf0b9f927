// Package command turns raw channel writes into typed robot commands.
package command

import "fmt"

// Channel is one independently addressable command endpoint.
type Channel uint8

const (
	ChannelDirection Channel = iota + 1
	ChannelLED
	ChannelArm
)

// Channels lists every command channel.
var Channels = []Channel{ChannelDirection, ChannelLED, ChannelArm}

// String returns the wire name of the channel.
func (c Channel) String() string {
	switch c {
	case ChannelDirection:
		return "direction"
	case ChannelLED:
		return "led"
	case ChannelArm:
		return "arm"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// ParseChannel maps a wire name back to a Channel.
func ParseChannel(name string) (Channel, error) {
	for _, c := range Channels {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// Readable reports whether the remote may read the channel's value.
func (c Channel) Readable() bool {
	return c == ChannelLED
}

// Notifiable reports whether the channel supports pushed updates.
func (c Channel) Notifiable() bool {
	return c == ChannelLED
}
