package command

import (
	"fmt"

	"github.com/teslashibe/go-superbit/pkg/colors"
)

// Direction is a drive heading. The byte values are the wire encoding.
type Direction uint8

const (
	Forward   Direction = 0
	Left      Direction = 1
	Right     Direction = 2
	Backwards Direction = 3
)

// String returns the heading name.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Backwards:
		return "backwards"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection parses a heading name as returned by Direction.String.
func ParseDirection(name string) (Direction, error) {
	for d := Forward; d <= Backwards; d++ {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, name)
}

// LEDIndex addresses an entry of the colour table.
type LEDIndex uint8

// ArmTrigger is the catapult command: fire, or return to rest.
type ArmTrigger bool

const (
	ArmRest ArmTrigger = false
	ArmFire ArmTrigger = true
)

// String returns "fire" or "rest".
func (a ArmTrigger) String() string {
	if a == ArmFire {
		return "fire"
	}
	return "rest"
}

// Command is a decoded write. Like Event, the set is closed.
type Command interface {
	command()
	String() string
}

// Drive requests one drive pulse.
type Drive struct{ Direction Direction }

// SetLED requests a colour table entry on the whole strip.
type SetLED struct{ Index LEDIndex }

// Arm requests a catapult motion.
type Arm struct{ Trigger ArmTrigger }

func (Drive) command()  {}
func (SetLED) command() {}
func (Arm) command()    {}

func (c Drive) String() string  { return "drive " + c.Direction.String() }
func (c SetLED) String() string { return fmt.Sprintf("led %d", uint8(c.Index)) }
func (c Arm) String() string    { return "arm " + c.Trigger.String() }

// DecodeDirection classifies a direction byte.
func DecodeDirection(b byte) (Direction, error) {
	if b > byte(Backwards) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDirection, b)
	}
	return Direction(b), nil
}

// DecodeLEDIndex classifies an LED index byte.
func DecodeLEDIndex(b byte) (LEDIndex, error) {
	if int(b) >= colors.Len {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLEDIndex, b)
	}
	return LEDIndex(b), nil
}

// DecodeArm classifies an arm byte: 1 fires, anything else rests.
func DecodeArm(b byte) ArmTrigger {
	return ArmTrigger(b == 1)
}

// Decode turns a write on ch into a Command. Only the first byte of value
// is significant.
func Decode(ch Channel, value []byte) (Command, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("%w on %s", ErrEmptyPayload, ch)
	}
	b := value[0]

	switch ch {
	case ChannelDirection:
		d, err := DecodeDirection(b)
		if err != nil {
			return nil, err
		}
		return Drive{Direction: d}, nil
	case ChannelLED:
		idx, err := DecodeLEDIndex(b)
		if err != nil {
			return nil, err
		}
		return SetLED{Index: idx}, nil
	case ChannelArm:
		return Arm{Trigger: DecodeArm(b)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
	}
}
