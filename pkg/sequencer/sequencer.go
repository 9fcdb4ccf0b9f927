// Package sequencer turns decoded commands into bounded, timed actuator motions.
//
// A Sequence is planned up front as an ordered list of steps, each an actuator
// call optionally followed by a fixed delay, and then executed to completion
// on the caller's goroutine. Nothing in a running sequence can be interrupted
// except by cancelling the context, which only happens at process shutdown.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-superbit/pkg/actuator"
	"github.com/teslashibe/go-superbit/pkg/colors"
	"github.com/teslashibe/go-superbit/pkg/command"
)

// Step is one actuator operation. After is the delay to wait once it succeeded.
type Step struct {
	Name  string
	Do    func(b actuator.Board) error
	After time.Duration
}

// Sequence is an ordered list of steps.
type Sequence struct {
	Name  string
	Steps []Step
}

// Duration is the sum of the fixed delays.
func (s Sequence) Duration() time.Duration {
	var total time.Duration
	for _, st := range s.Steps {
		total += st.After
	}
	return total
}

// wheelRotations maps a heading onto (left, right) tank-drive rotations.
var wheelRotations = map[command.Direction][2]actuator.Rotation{
	command.Forward:   {actuator.Forward, actuator.Forward},
	command.Backwards: {actuator.Reverse, actuator.Reverse},
	command.Left:      {actuator.Reverse, actuator.Forward},
	command.Right:     {actuator.Forward, actuator.Reverse},
}

// Sequencer plans and runs motions on a single board.
type Sequencer struct {
	board actuator.Board
	clock actuator.Clock
	cfg   Config
}

// New creates a sequencer that owns board for the duration of each sequence.
func New(board actuator.Board, clock actuator.Clock, opts ...Option) *Sequencer {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Sequencer{board: board, clock: clock, cfg: cfg}
}

// Config returns the active motion parameters.
func (s *Sequencer) Config() Config {
	return s.cfg
}

// Plan builds the sequence for cmd without touching the board.
func (s *Sequencer) Plan(cmd command.Command) (Sequence, error) {
	switch c := cmd.(type) {
	case command.Drive:
		return s.planDrive(c.Direction)
	case command.SetLED:
		return s.planLED(c.Index)
	case command.Arm:
		if c.Trigger == command.ArmFire {
			return s.planFire(), nil
		}
		return s.planRest(), nil
	default:
		return Sequence{}, fmt.Errorf("%w: %T", ErrUnsupportedCommand, cmd)
	}
}

func (s *Sequencer) planDrive(dir command.Direction) (Sequence, error) {
	rot, ok := wheelRotations[dir]
	if !ok {
		return Sequence{}, fmt.Errorf("%w: %s", command.ErrInvalidDirection, dir)
	}
	speed := s.cfg.DriveSpeed

	return Sequence{
		Name: "drive " + dir.String(),
		Steps: []Step{
			{Name: "left " + rot[0].String(), Do: func(b actuator.Board) error {
				return b.DriveMotor(actuator.LeftMotor, speed, rot[0])
			}},
			{Name: "right " + rot[1].String(), Do: func(b actuator.Board) error {
				return b.DriveMotor(actuator.RightMotor, speed, rot[1])
			}, After: s.cfg.DrivePulse},
			{Name: "stop left", Do: func(b actuator.Board) error {
				return b.StopMotor(actuator.LeftMotor)
			}},
			{Name: "stop right", Do: func(b actuator.Board) error {
				return b.StopMotor(actuator.RightMotor)
			}},
		},
	}, nil
}

func (s *Sequencer) planLED(idx command.LEDIndex) (Sequence, error) {
	entry, ok := colors.Lookup(uint8(idx))
	if !ok {
		return Sequence{}, fmt.Errorf("%w: %d", command.ErrInvalidLEDIndex, idx)
	}

	var set Step
	if entry.Off {
		set = Step{Name: "clear", Do: func(b actuator.Board) error { return b.ClearLEDs() }}
	} else {
		rgb := entry.RGB
		set = Step{Name: "set " + entry.Name, Do: func(b actuator.Board) error { return b.SetAllLEDs(rgb) }}
	}

	return Sequence{
		Name: "led " + entry.Name,
		Steps: []Step{
			set,
			{Name: "commit", Do: func(b actuator.Board) error { return b.CommitLEDs() }},
		},
	}, nil
}

func (s *Sequencer) planFire() Sequence {
	ready, fire := s.cfg.ServoReady, s.cfg.ServoFire
	return Sequence{
		Name: "arm fire",
		Steps: []Step{
			{Name: "ready", Do: func(b actuator.Board) error { return b.SetServo(ready) }, After: s.cfg.ArmReadyPause},
			{Name: "fire", Do: func(b actuator.Board) error { return b.SetServo(fire) }},
		},
	}
}

func (s *Sequencer) planRest() Sequence {
	rest := s.cfg.ServoRest
	return Sequence{
		Name: "arm rest",
		Steps: []Step{
			{Name: "rest", Do: func(b actuator.Board) error { return b.SetServo(rest) }},
		},
	}
}

// Execute runs seq to completion. The first failing step aborts the rest and
// is returned as a *StepError.
func (s *Sequencer) Execute(ctx context.Context, seq Sequence) error {
	start := time.Now()
	for i, st := range seq.Steps {
		if err := st.Do(s.board); err != nil {
			return &StepError{Sequence: seq.Name, Step: st.Name, Index: i, Err: err}
		}
		if st.After > 0 {
			if err := s.clock.Sleep(ctx, st.After); err != nil {
				return &StepError{Sequence: seq.Name, Step: st.Name + " delay", Index: i, Err: err}
			}
		}
	}
	s.cfg.Logger.Debug("sequence complete", "sequence", seq.Name, "steps", len(seq.Steps), "elapsed", time.Since(start))
	return nil
}

// Run plans and executes cmd.
func (s *Sequencer) Run(ctx context.Context, cmd command.Command) error {
	seq, err := s.Plan(cmd)
	if err != nil {
		return err
	}
	return s.Execute(ctx, seq)
}

// StopMotors commands both drive motors to stop. Both are attempted even if
// the first fails.
func (s *Sequencer) StopMotors() error {
	return errors.Join(
		s.board.StopMotor(actuator.LeftMotor),
		s.board.StopMotor(actuator.RightMotor),
	)
}

// Home puts every output in its power-on state: LEDs dark, arm at rest,
// motors stopped.
func (s *Sequencer) Home() error {
	return errors.Join(
		s.board.ClearLEDs(),
		s.board.CommitLEDs(),
		s.board.SetServo(s.cfg.ServoRest),
		s.StopMotors(),
	)
}
