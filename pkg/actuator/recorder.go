package actuator

import (
	"context"
	"sync"
	"time"
)

// OpKind names a recorded board operation.
type OpKind string

const (
	OpServo     OpKind = "servo"
	OpDrive     OpKind = "drive"
	OpStop      OpKind = "stop"
	OpSetLEDs   OpKind = "set-leds"
	OpClearLEDs OpKind = "clear-leds"
	OpCommit    OpKind = "commit-leds"
	OpIndicator OpKind = "indicator"
	OpDelay     OpKind = "delay"
)

// Op is one recorded operation. Only the fields relevant to Kind are set.
type Op struct {
	Kind     OpKind
	Motor    Motor
	Speed    uint8
	Rotation Rotation
	Position uint16
	Color    RGB
	On       bool
	Delay    time.Duration
}

// MotorState is the last commanded state of a motor. Speed 0 means stopped.
type MotorState struct {
	Speed    uint8
	Rotation Rotation
}

// State is the last commanded output state of a Recorder.
type State struct {
	Servo  uint16
	Motors map[Motor]MotorState

	// LEDs and LEDsOn reflect what has been committed to the strip.
	LEDs   RGB
	LEDsOn bool

	Advertising bool
}

// Recorder is an in-memory Board, Indicator and Clock. It keeps the commanded
// output state plus an ordered log of every operation, delays included, so a
// whole sequence can be checked step by step. It backs the "sim" board.
type Recorder struct {
	// Fail, when set, is consulted before each operation. A non-nil return
	// aborts the operation and is reported as a FaultError.
	Fail func(op Op) error

	// RealTime makes Sleep actually wait instead of returning at once.
	RealTime bool

	mu         sync.Mutex
	ops        []Op
	state      State
	pendingLED RGB
	pendingOn  bool
	faults     int
}

// NewRecorder creates a recorder with all outputs idle.
func NewRecorder() *Recorder {
	return &Recorder{
		state: State{Motors: make(map[Motor]MotorState)},
	}
}

var (
	_ Board     = (*Recorder)(nil)
	_ Indicator = (*Recorder)(nil)
	_ Clock     = (*Recorder)(nil)
)

func (r *Recorder) apply(name string, op Op, mutate func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Fail != nil {
		if err := r.Fail(op); err != nil {
			r.faults++
			return Fault(name, err)
		}
	}
	r.ops = append(r.ops, op)
	if mutate != nil {
		mutate()
	}
	return nil
}

// SetServo records a servo move.
func (r *Recorder) SetServo(position uint16) error {
	return r.apply("SetServo", Op{Kind: OpServo, Position: position}, func() {
		r.state.Servo = position
	})
}

// DriveMotor records a motor drive.
func (r *Recorder) DriveMotor(m Motor, speed uint8, dir Rotation) error {
	return r.apply("DriveMotor", Op{Kind: OpDrive, Motor: m, Speed: speed, Rotation: dir}, func() {
		r.state.Motors[m] = MotorState{Speed: speed, Rotation: dir}
	})
}

// StopMotor records a motor stop.
func (r *Recorder) StopMotor(m Motor) error {
	return r.apply("StopMotor", Op{Kind: OpStop, Motor: m}, func() {
		r.state.Motors[m] = MotorState{}
	})
}

// SetAllLEDs buffers a colour for every LED.
func (r *Recorder) SetAllLEDs(c RGB) error {
	return r.apply("SetAllLEDs", Op{Kind: OpSetLEDs, Color: c}, func() {
		r.pendingLED = c
		r.pendingOn = true
	})
}

// ClearLEDs buffers all LEDs off.
func (r *Recorder) ClearLEDs() error {
	return r.apply("ClearLEDs", Op{Kind: OpClearLEDs}, func() {
		r.pendingLED = RGB{}
		r.pendingOn = false
	})
}

// CommitLEDs makes the buffered colour visible.
func (r *Recorder) CommitLEDs() error {
	return r.apply("CommitLEDs", Op{Kind: OpCommit}, func() {
		r.state.LEDs = r.pendingLED
		r.state.LEDsOn = r.pendingOn
	})
}

// ShowAdvertising records the status indicator.
func (r *Recorder) ShowAdvertising(on bool) error {
	return r.apply("ShowAdvertising", Op{Kind: OpIndicator, On: on}, func() {
		r.state.Advertising = on
	})
}

// Sleep records a delay. It only waits when RealTime is set.
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.ops = append(r.ops, Op{Kind: OpDelay, Delay: d})
	realTime := r.RealTime
	r.mu.Unlock()

	if realTime {
		return RealClock{}.Sleep(ctx, d)
	}
	return ctx.Err()
}

// Ops returns a copy of the operation log.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Reset clears the operation log but keeps the output state.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

// State returns a copy of the last commanded output state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state
	st.Motors = make(map[Motor]MotorState, len(r.state.Motors))
	for m, ms := range r.state.Motors {
		st.Motors[m] = ms
	}
	return st
}

// Faults returns how many operations were rejected by Fail.
func (r *Recorder) Faults() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.faults
}
