package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-superbit/internal/log"
	"github.com/teslashibe/go-superbit/pkg/actuator"
	"github.com/teslashibe/go-superbit/pkg/colors"
	"github.com/teslashibe/go-superbit/pkg/command"
)

func newTestSequencer() (*Sequencer, *actuator.Recorder) {
	rec := actuator.NewRecorder()
	return New(rec, rec, WithLogger(log.Discard())), rec
}

func TestDrive_AllDirections(t *testing.T) {
	tests := []struct {
		dir         command.Direction
		left, right actuator.Rotation
	}{
		{command.Forward, actuator.Forward, actuator.Forward},
		{command.Backwards, actuator.Reverse, actuator.Reverse},
		{command.Left, actuator.Reverse, actuator.Forward},
		{command.Right, actuator.Forward, actuator.Reverse},
	}

	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			seq, rec := newTestSequencer()

			if err := seq.Run(context.Background(), command.Drive{Direction: tt.dir}); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			want := []actuator.Op{
				{Kind: actuator.OpDrive, Motor: actuator.LeftMotor, Speed: 255, Rotation: tt.left},
				{Kind: actuator.OpDrive, Motor: actuator.RightMotor, Speed: 255, Rotation: tt.right},
				{Kind: actuator.OpDelay, Delay: 250 * time.Millisecond},
				{Kind: actuator.OpStop, Motor: actuator.LeftMotor},
				{Kind: actuator.OpStop, Motor: actuator.RightMotor},
			}
			assertOps(t, rec.Ops(), want)

			st := rec.State()
			if st.Motors[actuator.LeftMotor].Speed != 0 || st.Motors[actuator.RightMotor].Speed != 0 {
				t.Errorf("motors not stopped after pulse: %+v", st.Motors)
			}
		})
	}
}

func TestDrive_RepeatedWritesPulseEachTime(t *testing.T) {
	seq, rec := newTestSequencer()

	for i := 0; i < 3; i++ {
		if err := seq.Run(context.Background(), command.Drive{Direction: command.Forward}); err != nil {
			t.Fatal(err)
		}
	}

	delays := 0
	for _, op := range rec.Ops() {
		if op.Kind == actuator.OpDelay {
			delays++
		}
	}
	if delays != 3 {
		t.Errorf("delays = %d, want one pulse per write (3)", delays)
	}
}

func TestArm_Fire(t *testing.T) {
	seq, rec := newTestSequencer()

	if err := seq.Run(context.Background(), command.Arm{Trigger: command.ArmFire}); err != nil {
		t.Fatal(err)
	}

	assertOps(t, rec.Ops(), []actuator.Op{
		{Kind: actuator.OpServo, Position: 105},
		{Kind: actuator.OpDelay, Delay: 100 * time.Millisecond},
		{Kind: actuator.OpServo, Position: 135},
	})

	if rec.State().Servo != 135 {
		t.Errorf("servo = %d, want 135 (no automatic return to rest)", rec.State().Servo)
	}
}

func TestArm_Rest(t *testing.T) {
	seq, rec := newTestSequencer()

	if err := seq.Run(context.Background(), command.Arm{Trigger: command.ArmRest}); err != nil {
		t.Fatal(err)
	}

	assertOps(t, rec.Ops(), []actuator.Op{
		{Kind: actuator.OpServo, Position: 115},
	})
}

func TestLED_EveryIndex(t *testing.T) {
	for i, entry := range colors.All() {
		t.Run(entry.Name, func(t *testing.T) {
			seq, rec := newTestSequencer()

			if err := seq.Run(context.Background(), command.SetLED{Index: command.LEDIndex(i)}); err != nil {
				t.Fatal(err)
			}

			st := rec.State()
			if entry.Off {
				if st.LEDsOn {
					t.Error("index 0 should leave the strip dark")
				}
				assertOps(t, rec.Ops(), []actuator.Op{{Kind: actuator.OpClearLEDs}, {Kind: actuator.OpCommit}})
				return
			}
			if !st.LEDsOn || st.LEDs != entry.RGB {
				t.Errorf("LEDs = %v on=%v, want %v", st.LEDs, st.LEDsOn, entry.RGB)
			}
			assertOps(t, rec.Ops(), []actuator.Op{{Kind: actuator.OpSetLEDs, Color: entry.RGB}, {Kind: actuator.OpCommit}})
		})
	}
}

func TestLED_Blue(t *testing.T) {
	seq, rec := newTestSequencer()

	if err := seq.Run(context.Background(), command.SetLED{Index: 5}); err != nil {
		t.Fatal(err)
	}
	if got := rec.State().LEDs; got != (actuator.RGB{R: 4, G: 213, B: 237}) {
		t.Errorf("LEDs = %v, want rgb(4,213,237)", got)
	}
}

func TestPlan_InvalidValues(t *testing.T) {
	seq, rec := newTestSequencer()

	if _, err := seq.Plan(command.Drive{Direction: 7}); !errors.Is(err, command.ErrInvalidDirection) {
		t.Errorf("Plan(drive 7) error = %v, want ErrInvalidDirection", err)
	}
	if _, err := seq.Plan(command.SetLED{Index: 9}); !errors.Is(err, command.ErrInvalidLEDIndex) {
		t.Errorf("Plan(led 9) error = %v, want ErrInvalidLEDIndex", err)
	}
	if _, err := seq.Plan(nil); !errors.Is(err, ErrUnsupportedCommand) {
		t.Errorf("Plan(nil) error = %v, want ErrUnsupportedCommand", err)
	}
	if len(rec.Ops()) != 0 {
		t.Errorf("Plan touched the board: %+v", rec.Ops())
	}
}

func TestPlan_Duration(t *testing.T) {
	seq, _ := newTestSequencer()

	drive, _ := seq.Plan(command.Drive{Direction: command.Left})
	if drive.Duration() != 250*time.Millisecond {
		t.Errorf("drive duration = %v, want 250ms", drive.Duration())
	}
	fire, _ := seq.Plan(command.Arm{Trigger: command.ArmFire})
	if fire.Duration() != 100*time.Millisecond {
		t.Errorf("fire duration = %v, want 100ms", fire.Duration())
	}
	rest, _ := seq.Plan(command.Arm{Trigger: command.ArmRest})
	if rest.Duration() != 0 {
		t.Errorf("rest duration = %v, want 0", rest.Duration())
	}
}

func TestExecute_FaultAbortsSequence(t *testing.T) {
	seq, rec := newTestSequencer()
	rec.Fail = func(op actuator.Op) error {
		if op.Kind == actuator.OpDrive && op.Motor == actuator.RightMotor {
			return errors.New("h-bridge fault")
		}
		return nil
	}

	err := seq.Run(context.Background(), command.Drive{Direction: command.Forward})

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("err = %v, want *StepError", err)
	}
	if stepErr.Index != 1 {
		t.Errorf("aborted at step %d, want 1", stepErr.Index)
	}
	if !errors.Is(err, actuator.ErrDriverFault) {
		t.Errorf("err = %v, want ErrDriverFault in chain", err)
	}

	for _, op := range rec.Ops() {
		if op.Kind == actuator.OpDelay || op.Kind == actuator.OpStop {
			t.Errorf("step after the fault ran: %+v", op)
		}
	}
}

func TestExecute_ContextCancelledDuringDelay(t *testing.T) {
	rec := actuator.NewRecorder()
	rec.RealTime = true
	seq := New(rec, rec, WithLogger(log.Discard()), WithArmReadyPause(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := seq.Run(ctx, command.Arm{Trigger: command.ArmFire})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancelled sequence kept waiting")
	}
	if rec.State().Servo != 105 {
		t.Errorf("servo = %d, want 105 (fire step skipped)", rec.State().Servo)
	}
}

func TestOptions(t *testing.T) {
	rec := actuator.NewRecorder()
	seq := New(rec, rec,
		WithLogger(log.Discard()),
		WithDrivePulse(500*time.Millisecond),
		WithDriveSpeed(128),
		WithServoPositions(90, 80, 150),
	)

	_ = seq.Run(context.Background(), command.Drive{Direction: command.Forward})
	_ = seq.Run(context.Background(), command.Arm{Trigger: command.ArmFire})

	ops := rec.Ops()
	if ops[0].Speed != 128 {
		t.Errorf("speed = %d, want 128", ops[0].Speed)
	}
	if ops[2].Delay != 500*time.Millisecond {
		t.Errorf("pulse = %v, want 500ms", ops[2].Delay)
	}
	if ops[5].Position != 80 || ops[7].Position != 150 {
		t.Errorf("servo positions = %d, %d; want 80, 150", ops[5].Position, ops[7].Position)
	}
}

func TestStopMotorsAndHome(t *testing.T) {
	seq, rec := newTestSequencer()
	_ = rec.DriveMotor(actuator.LeftMotor, 255, actuator.Forward)
	_ = rec.DriveMotor(actuator.RightMotor, 255, actuator.Forward)
	_ = rec.SetAllLEDs(actuator.RGB{R: 1})
	_ = rec.CommitLEDs()
	_ = rec.SetServo(135)

	if err := seq.Home(); err != nil {
		t.Fatal(err)
	}

	st := rec.State()
	if st.Servo != 115 || st.LEDsOn {
		t.Errorf("after Home servo = %d, LEDsOn = %v", st.Servo, st.LEDsOn)
	}
	for m, ms := range st.Motors {
		if ms.Speed != 0 {
			t.Errorf("motor %s still running", m)
		}
	}
}

func TestStopMotors_AttemptsBoth(t *testing.T) {
	seq, rec := newTestSequencer()
	rec.Fail = func(op actuator.Op) error {
		if op.Kind == actuator.OpStop && op.Motor == actuator.LeftMotor {
			return errors.New("i2c nak")
		}
		return nil
	}

	if err := seq.StopMotors(); !errors.Is(err, actuator.ErrDriverFault) {
		t.Errorf("err = %v, want ErrDriverFault", err)
	}
	ops := rec.Ops()
	if len(ops) != 1 || ops[0].Motor != actuator.RightMotor {
		t.Errorf("right motor stop not attempted: %+v", ops)
	}
}

func assertOps(t *testing.T, got, want []actuator.Op) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ops = %+v\nwant %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
