// Package actuator defines the capability interface to the robot's physical outputs.
//
// The interfaces are intentionally small so that consumers depend only on what they
// drive: the sequencer needs a Board and a Clock, the controller optionally lights an
// Indicator while advertising.
package actuator

import "fmt"

// Motor identifies one drive motor output on the expansion board.
type Motor uint8

// The robot wires its left wheel to M1 and its right wheel to M3.
const (
	M1 Motor = 1
	M2 Motor = 2
	M3 Motor = 3
	M4 Motor = 4

	LeftMotor  = M1
	RightMotor = M3
)

// String returns the board label of the motor.
func (m Motor) String() string {
	return fmt.Sprintf("M%d", uint8(m))
}

// Rotation is the spin direction of a drive motor.
type Rotation uint8

const (
	Forward Rotation = iota
	Reverse
)

// String returns "forward" or "reverse".
func (r Rotation) String() string {
	if r == Reverse {
		return "reverse"
	}
	return "forward"
}

// RGB is a 24-bit LED colour.
type RGB struct {
	R, G, B uint8
}

// String formats the colour as rgb(r,g,b).
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// ServoController moves the catapult servo to an absolute position.
type ServoController interface {
	SetServo(position uint16) error
}

// MotorController drives and stops the wheel motors.
type MotorController interface {
	DriveMotor(m Motor, speed uint8, dir Rotation) error
	StopMotor(m Motor) error
}

// LEDController sets the addressable LED strip. Colour changes are buffered
// until CommitLEDs shifts them out to the strip.
type LEDController interface {
	SetAllLEDs(c RGB) error
	ClearLEDs() error
	CommitLEDs() error
}

// Board is the composite interface for the whole expansion board.
type Board interface {
	ServoController
	MotorController
	LEDController
}

// Indicator is implemented by boards with a status display. The controller
// shows the advertising pattern while no remote is connected.
type Indicator interface {
	ShowAdvertising(on bool) error
}
