package actuator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// DefaultSerialTimeout bounds how long the bridge may take to acknowledge a command.
const DefaultSerialTimeout = 500 * time.Millisecond

// ErrBridgeRejected is returned (wrapped in a FaultError) when the bridge answers ERR.
var ErrBridgeRejected = errors.New("actuator: bridge rejected command")

// SerialBoard drives the expansion board through a microcontroller bridge on a
// serial line. Each command is one ASCII line prefixed with a sequence number;
// the bridge answers "<seq> OK" or "<seq> ERR <reason>" once the output has
// been applied. Acks for earlier sequence numbers (late answers to a command
// that already timed out) are discarded.
//
//	<seq> <command>
//
//	S <pos>               servo
//	M <ch> <speed> <F|R>  drive motor
//	X <ch>                stop motor
//	L <r> <g> <b>         set all LEDs (buffered)
//	O                     clear LEDs (buffered)
//	P                     commit LEDs
//	I <0|1>               status indicator
type SerialBoard struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	reader *bufio.Reader
	seq    uint32
}

var (
	_ Board     = (*SerialBoard)(nil)
	_ Indicator = (*SerialBoard)(nil)
)

// OpenSerial opens the serial device and returns a board speaking the bridge protocol.
func OpenSerial(name string, baud int) (*SerialBoard, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: DefaultSerialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return NewSerialBoard(port), nil
}

// NewSerialBoard wraps an already open port.
func NewSerialBoard(port io.ReadWriteCloser) *SerialBoard {
	return &SerialBoard{
		port:   port,
		reader: bufio.NewReader(port),
	}
}

// Close releases the serial port.
func (b *SerialBoard) Close() error {
	return b.port.Close()
}

func (b *SerialBoard) send(op, line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	seq := b.seq
	if _, err := fmt.Fprintf(b.port, "%d %s\n", seq, line); err != nil {
		return Fault(op, err)
	}

	for {
		reply, err := b.reader.ReadString('\n')
		if err != nil {
			return Fault(op, fmt.Errorf("read ack: %w", err))
		}
		id, status, ok := strings.Cut(strings.TrimSpace(reply), " ")
		n, perr := strconv.ParseUint(id, 10, 32)
		if !ok || perr != nil {
			return Fault(op, fmt.Errorf("unexpected ack %q", strings.TrimSpace(reply)))
		}
		if uint32(n) != seq {
			// Late ack for a command that already failed.
			continue
		}

		switch {
		case status == "OK":
			return nil
		case strings.HasPrefix(status, "ERR"):
			reason := strings.TrimSpace(strings.TrimPrefix(status, "ERR"))
			return Fault(op, fmt.Errorf("%w: %s", ErrBridgeRejected, reason))
		default:
			return Fault(op, fmt.Errorf("unexpected ack %q", strings.TrimSpace(reply)))
		}
	}
}

// SetServo moves the catapult servo.
func (b *SerialBoard) SetServo(position uint16) error {
	return b.send("SetServo", fmt.Sprintf("S %d", position))
}

// DriveMotor drives motor m at speed in direction dir.
func (b *SerialBoard) DriveMotor(m Motor, speed uint8, dir Rotation) error {
	d := "F"
	if dir == Reverse {
		d = "R"
	}
	return b.send("DriveMotor", fmt.Sprintf("M %d %d %s", uint8(m), speed, d))
}

// StopMotor stops motor m.
func (b *SerialBoard) StopMotor(m Motor) error {
	return b.send("StopMotor", fmt.Sprintf("X %d", uint8(m)))
}

// SetAllLEDs buffers colour c on every LED.
func (b *SerialBoard) SetAllLEDs(c RGB) error {
	return b.send("SetAllLEDs", fmt.Sprintf("L %d %d %d", c.R, c.G, c.B))
}

// ClearLEDs buffers all LEDs off.
func (b *SerialBoard) ClearLEDs() error {
	return b.send("ClearLEDs", "O")
}

// CommitLEDs shifts the buffered colours out to the strip.
func (b *SerialBoard) CommitLEDs() error {
	return b.send("CommitLEDs", "P")
}

// ShowAdvertising lights or clears the advertising pattern.
func (b *SerialBoard) ShowAdvertising(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return b.send("ShowAdvertising", fmt.Sprintf("I %d", v))
}
