package hub

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-superbit/internal/log"
	"github.com/teslashibe/go-superbit/pkg/protocol"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	h.SetLogger(log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

// attach joins a connectionless viewer so tests can read its frames directly.
func attach(t *testing.T, h *Hub, buffer int) *Viewer {
	t.Helper()
	v := &Viewer{hub: h, addr: t.Name(), frames: make(chan []byte, buffer)}
	if !h.join(v) {
		t.Fatal("hub refused viewer")
	}
	return v
}

func next(t *testing.T, v *Viewer) []byte {
	t.Helper()
	select {
	case f, ok := <-v.frames:
		if !ok {
			t.Fatal("viewer channel closed")
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return nil
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHub_PublishReachesEveryViewer(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	a := attach(t, h, 4)
	b := attach(t, h, 4)

	h.Publish([]byte(`{"n":1}`))

	for _, v := range []*Viewer{a, b} {
		if got := string(next(t, v)); got != `{"n":1}` {
			t.Errorf("frame = %s", got)
		}
	}
	if h.Viewers() != 2 {
		t.Errorf("Viewers() = %d, want 2", h.Viewers())
	}
}

func TestHub_LateViewerGetsLatestStatus(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	first := attach(t, h, 4)
	if err := h.PublishStatus(protocol.StatusData{State: "connected", LEDIndex: 4}); err != nil {
		t.Fatal(err)
	}
	next(t, first)

	late := attach(t, h, 4)
	msg, err := protocol.ParseMessage(next(t, late))
	if err != nil {
		t.Fatal(err)
	}
	st, err := msg.GetStatusData()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != protocol.TypeStatus || st.State != "connected" || st.LEDIndex != 4 {
		t.Errorf("replayed %v %+v, want connected status with led 4", msg.Type, st)
	}
}

func TestHub_DropsSlowViewer(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	slow := attach(t, h, 1)
	h.Publish([]byte("1"))
	h.Publish([]byte("2"))

	waitUntil(t, "slow viewer drop", func() bool { return h.Viewers() == 0 })

	<-slow.frames
	if _, ok := <-slow.frames; ok {
		t.Error("slow viewer channel should be closed")
	}
	if h.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", h.Dropped())
	}
}

func TestHub_LeaveAndStop(t *testing.T) {
	h, cancel := startHub(t)

	v := attach(t, h, 1)
	h.leave(v)
	if _, ok := <-v.frames; ok {
		t.Error("departed viewer channel should be closed")
	}

	cancel()
	waitUntil(t, "hub stop", func() bool { return !h.Running() })

	late := &Viewer{hub: h, frames: make(chan []byte, 1)}
	if h.join(late) {
		t.Error("stopped hub accepted a viewer")
	}
	h.leave(late)
}
