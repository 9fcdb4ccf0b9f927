package actuator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// fakePort answers every written line with the next scripted reply ("OK" by
// default), tagged with the line's sequence number. With holdFirst set the
// first ack is withheld until the next line arrives, like a bridge answering
// after the read timeout.
type fakePort struct {
	written   bytes.Buffer
	pending   bytes.Buffer
	replies   []string
	writeErr  error
	closed    bool
	holdFirst bool
	held      string
	lines     int
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written.Write(b)
	p.lines++

	seq, _, _ := strings.Cut(string(b), " ")
	reply := "OK"
	if len(p.replies) > 0 {
		reply = p.replies[0]
		p.replies = p.replies[1:]
	}
	ack := seq + " " + reply + "\n"
	if reply == "??" {
		ack = reply + "\n"
	}

	if p.held != "" {
		p.pending.WriteString(p.held)
		p.held = ""
	}
	if p.holdFirst && p.lines == 1 {
		p.held = ack
		return len(b), nil
	}
	p.pending.WriteString(ack)
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.pending.Len() == 0 {
		return 0, io.EOF
	}
	return p.pending.Read(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialBoard_Lines(t *testing.T) {
	port := &fakePort{}
	b := NewSerialBoard(port)

	steps := []func() error{
		func() error { return b.SetServo(115) },
		func() error { return b.DriveMotor(LeftMotor, 255, Forward) },
		func() error { return b.DriveMotor(RightMotor, 128, Reverse) },
		func() error { return b.StopMotor(LeftMotor) },
		func() error { return b.SetAllLEDs(RGB{4, 213, 237}) },
		func() error { return b.ClearLEDs() },
		func() error { return b.CommitLEDs() },
		func() error { return b.ShowAdvertising(true) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	want := strings.Join([]string{
		"1 S 115",
		"2 M 1 255 F",
		"3 M 3 128 R",
		"4 X 1",
		"5 L 4 213 237",
		"6 O",
		"7 P",
		"8 I 1",
	}, "\n") + "\n"
	if got := port.written.String(); got != want {
		t.Errorf("written =\n%q\nwant\n%q", got, want)
	}

	if err := b.Close(); err != nil || !port.closed {
		t.Errorf("Close() = %v, closed = %v", err, port.closed)
	}
}

func TestSerialBoard_BridgeError(t *testing.T) {
	port := &fakePort{replies: []string{"ERR servo stalled"}}
	b := NewSerialBoard(port)

	err := b.SetServo(135)
	if !errors.Is(err, ErrDriverFault) {
		t.Fatalf("err = %v, want ErrDriverFault", err)
	}
	if !errors.Is(err, ErrBridgeRejected) {
		t.Errorf("err = %v, want ErrBridgeRejected in chain", err)
	}

	var fe *FaultError
	if !errors.As(err, &fe) || fe.Op != "SetServo" {
		t.Errorf("FaultError op = %v, want SetServo", fe)
	}
}

func TestSerialBoard_WriteError(t *testing.T) {
	port := &fakePort{writeErr: errors.New("unplugged")}
	b := NewSerialBoard(port)

	if err := b.StopMotor(RightMotor); !errors.Is(err, ErrDriverFault) {
		t.Errorf("err = %v, want ErrDriverFault", err)
	}
}

func TestSerialBoard_GarbledAck(t *testing.T) {
	port := &fakePort{replies: []string{"??"}}
	b := NewSerialBoard(port)

	if err := b.CommitLEDs(); !errors.Is(err, ErrDriverFault) {
		t.Errorf("err = %v, want ErrDriverFault", err)
	}
}

func TestSerialBoard_LateAckDoesNotShiftReplies(t *testing.T) {
	port := &fakePort{
		holdFirst: true,
		replies:   []string{"OK", "ERR jam", "OK"},
	}
	b := NewSerialBoard(port)

	if err := b.SetServo(115); !errors.Is(err, ErrDriverFault) {
		t.Fatalf("SetServo err = %v, want a fault for the missing ack", err)
	}

	err := b.DriveMotor(LeftMotor, 255, Forward)
	if !errors.Is(err, ErrBridgeRejected) {
		t.Fatalf("DriveMotor err = %v, want the bridge's ERR for this command", err)
	}
	var fe *FaultError
	if !errors.As(err, &fe) || fe.Op != "DriveMotor" {
		t.Errorf("fault blamed on %v, want DriveMotor", fe)
	}

	if err := b.StopMotor(LeftMotor); err != nil {
		t.Errorf("StopMotor err = %v, want nil (bridge answered OK)", err)
	}
}

func TestRecorder_StateAndLog(t *testing.T) {
	r := NewRecorder()

	_ = r.DriveMotor(LeftMotor, 255, Reverse)
	_ = r.SetAllLEDs(RGB{255, 0, 0})
	_ = r.Sleep(context.Background(), 250*time.Millisecond)

	st := r.State()
	if st.Motors[LeftMotor] != (MotorState{Speed: 255, Rotation: Reverse}) {
		t.Errorf("left motor = %+v", st.Motors[LeftMotor])
	}
	if st.LEDsOn {
		t.Error("LEDs should not be visible before commit")
	}

	_ = r.CommitLEDs()
	st = r.State()
	if !st.LEDsOn || st.LEDs != (RGB{255, 0, 0}) {
		t.Errorf("LEDs = %v on=%v, want red on", st.LEDs, st.LEDsOn)
	}

	ops := r.Ops()
	if len(ops) != 4 {
		t.Fatalf("len(ops) = %d, want 4", len(ops))
	}
	if ops[2].Kind != OpDelay || ops[2].Delay != 250*time.Millisecond {
		t.Errorf("ops[2] = %+v, want 250ms delay", ops[2])
	}
}

func TestRecorder_FaultInjection(t *testing.T) {
	r := NewRecorder()
	r.Fail = func(op Op) error {
		if op.Kind == OpServo {
			return errors.New("pwm stuck")
		}
		return nil
	}

	if err := r.SetServo(105); !errors.Is(err, ErrDriverFault) {
		t.Fatalf("SetServo err = %v, want ErrDriverFault", err)
	}
	if err := r.StopMotor(LeftMotor); err != nil {
		t.Fatalf("StopMotor err = %v", err)
	}
	if r.Faults() != 1 {
		t.Errorf("Faults() = %d, want 1", r.Faults())
	}
	if len(r.Ops()) != 1 {
		t.Errorf("failed op should not be logged, ops = %+v", r.Ops())
	}
}

func TestRecorder_StateIsCopy(t *testing.T) {
	r := NewRecorder()
	_ = r.DriveMotor(LeftMotor, 10, Forward)

	st := r.State()
	st.Motors[LeftMotor] = MotorState{}

	if r.State().Motors[LeftMotor].Speed != 10 {
		t.Error("mutating the returned State leaked into the recorder")
	}
}

func TestRealClock_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Sleep did not return promptly on a cancelled context")
	}
}

func TestRealClock_Waits(t *testing.T) {
	start := time.Now()
	if err := (RealClock{}).Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Sleep returned early")
	}
}
