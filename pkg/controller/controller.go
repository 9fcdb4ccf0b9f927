// Package controller runs the robot's control loop: advertise, serve one
// remote, stop the motors, advertise again.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-superbit/pkg/command"
	"github.com/teslashibe/go-superbit/pkg/protocol"
	"github.com/teslashibe/go-superbit/pkg/sequencer"
	"github.com/teslashibe/go-superbit/pkg/session"
)

// State is the control loop state.
type State string

const (
	StateAdvertising State = "advertising"
	StateConnected   State = "connected"
	StateStopped     State = "stopped"
)

// Controller owns the board (through the sequencer) and the transport.
type Controller struct {
	transport session.Transport
	seq       *sequencer.Sequencer
	cfg       Config

	// Touched only on the Run goroutine.
	subscribed bool
	ledIndex   uint8

	mu     sync.Mutex
	status protocol.StatusData
}

// New creates a controller.
func New(transport session.Transport, seq *sequencer.Sequencer, opts ...Option) *Controller {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Notify == "" {
		cfg.Notify = NotifyOnChange
	}

	c := &Controller{
		transport: transport,
		seq:       seq,
		cfg:       cfg,
	}
	c.status = protocol.StatusData{
		Device:    cfg.DeviceName,
		Transport: transport.Name(),
		State:     string(StateStopped),
	}
	return c
}

// Status returns the current status snapshot.
func (c *Controller) Status() protocol.StatusData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) update(fn func(st *protocol.StatusData)) {
	c.mu.Lock()
	fn(&c.status)
	st := c.status
	c.mu.Unlock()

	if c.cfg.Observer != nil {
		c.cfg.Observer(st)
	}
}

// Run homes the board and then loops advertise → serve until ctx is
// cancelled or the transport is closed. Motors are stopped on every exit
// from a session and on return.
func (c *Controller) Run(ctx context.Context) error {
	logger := c.cfg.Logger

	if err := c.seq.Home(); err != nil {
		logger.Warn("homing failed", "error", err)
	}
	defer c.shutdown()

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.safetyStop("advertise")
		c.indicate(true)
		c.update(func(st *protocol.StatusData) {
			st.State = string(StateAdvertising)
			st.SessionID, st.Peer = "", ""
			st.Subscribed = false
		})

		s, err := c.transport.Advertise(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, session.ErrTransportClosed) {
				return err
			}
			logger.Error("advertise failed", "error", err, "retry", c.cfg.AdvertiseRetry)
			c.update(func(st *protocol.StatusData) { st.LastError = err.Error() })
			if err := c.cfg.Clock.Sleep(ctx, c.cfg.AdvertiseRetry); err != nil {
				return nil
			}
			continue
		}

		c.indicate(false)
		c.serve(ctx, s)
	}
}

func (c *Controller) serve(ctx context.Context, s session.Session) {
	logger := c.cfg.Logger.With("session", s.ID(), "peer", s.Peer())

	c.subscribed = true
	if r, ok := s.(session.SubscriptionReporter); ok && r.ReportsSubscriptions() {
		c.subscribed = false
	}

	if err := s.Publish(command.ChannelLED, []byte{c.ledIndex}, false); err != nil {
		logger.Debug("initial LED value not published", "error", err)
	}

	c.update(func(st *protocol.StatusData) {
		st.State = string(StateConnected)
		st.SessionID, st.Peer = s.ID(), s.Peer()
		st.Subscribed = c.subscribed
		st.Sessions++
	})
	logger.Info("remote connected")

	reason, err := s.Run(ctx, func(ev command.Event) {
		c.handle(ctx, s, ev)
	})

	c.safetyStop("session end")
	if reason == session.Shutdown {
		_ = s.Close()
	}

	if d, ok := s.(session.DropCounter); ok {
		dropped := d.Dropped()
		c.update(func(st *protocol.StatusData) { st.DroppedEvents += dropped })
	}
	if err != nil {
		logger.Warn("session ended", "reason", reason.String(), "error", err)
		c.update(func(st *protocol.StatusData) { st.LastError = err.Error() })
		return
	}
	logger.Info("session ended", "reason", reason.String())
}

// handle dispatches one event. It runs synchronously on the Run goroutine.
func (c *Controller) handle(ctx context.Context, s session.Session, ev command.Event) {
	switch e := ev.(type) {
	case command.WriteEvent:
		c.handleWrite(ctx, s, e)
	case command.ReadEvent:
		c.handleRead(s, e)
	case command.SubscriptionEvent:
		c.handleSubscription(e)
	default:
		c.cfg.Logger.Warn("unhandled event", "type", describeEvent(ev))
	}
}

func (c *Controller) handleWrite(ctx context.Context, s session.Session, e command.WriteEvent) {
	logger := c.cfg.Logger

	cmd, err := command.Decode(e.Channel, e.Value)
	if err != nil {
		if errors.Is(err, command.ErrInvalidLEDIndex) {
			logger.Debug("ignoring write", "channel", e.Channel.String(), "error", err)
		} else {
			logger.Warn("ignoring write", "channel", e.Channel.String(), "error", err)
		}
		c.update(func(st *protocol.StatusData) { st.InvalidCommands++ })
		return
	}

	logger.Debug("command", "command", cmd.String())
	runErr := c.seq.Run(ctx, cmd)

	c.update(func(st *protocol.StatusData) {
		st.Commands++
		st.LastCommand = cmd.String()
	})

	if runErr != nil {
		if ctx.Err() != nil {
			logger.Info("sequence interrupted by shutdown", "command", cmd.String())
			return
		}
		logger.Error("sequence failed", "command", cmd.String(), "error", runErr)
		c.update(func(st *protocol.StatusData) {
			st.Faults++
			st.LastError = runErr.Error()
		})
		if _, ok := cmd.(command.Drive); ok {
			c.safetyStop("drive fault")
		}
		return
	}

	if led, ok := cmd.(command.SetLED); ok {
		c.publishLED(s, uint8(led.Index))
	}
}

func (c *Controller) publishLED(s session.Session, idx uint8) {
	changed := idx != c.ledIndex
	c.ledIndex = idx

	var push bool
	switch c.cfg.Notify {
	case NotifyOnChange:
		push = changed && c.subscribed
	case NotifyEveryWrite:
		push = c.subscribed
	}

	if err := s.Publish(command.ChannelLED, []byte{idx}, push); err != nil {
		c.cfg.Logger.Warn("LED publish failed", "error", err)
	}
	c.update(func(st *protocol.StatusData) { st.LEDIndex = idx })
}

func (c *Controller) handleRead(s session.Session, e command.ReadEvent) {
	c.cfg.Logger.Debug("remote read", "channel", e.Channel.String())
	if e.Channel != command.ChannelLED {
		return
	}
	if err := s.Publish(command.ChannelLED, []byte{c.ledIndex}, false); err != nil {
		c.cfg.Logger.Debug("LED refresh failed", "error", err)
	}
}

func (c *Controller) handleSubscription(e command.SubscriptionEvent) {
	if e.Channel != command.ChannelLED {
		return
	}
	c.subscribed = e.Enabled
	c.cfg.Logger.Debug("subscription changed", "channel", e.Channel.String(), "enabled", e.Enabled)
	c.update(func(st *protocol.StatusData) { st.Subscribed = e.Enabled })
}

func (c *Controller) safetyStop(why string) {
	if err := c.seq.StopMotors(); err != nil {
		c.cfg.Logger.Error("stopping motors failed", "when", why, "error", err)
	}
}

func (c *Controller) indicate(on bool) {
	if c.cfg.Indicator == nil {
		return
	}
	if err := c.cfg.Indicator.ShowAdvertising(on); err != nil {
		c.cfg.Logger.Warn("indicator failed", "error", err)
	}
}

func (c *Controller) shutdown() {
	c.safetyStop("shutdown")
	c.indicate(false)
	c.update(func(st *protocol.StatusData) {
		st.State = string(StateStopped)
		st.SessionID, st.Peer = "", ""
	})
	c.cfg.Logger.Info("control loop stopped")
}

func describeEvent(ev command.Event) string {
	if ev == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", ev)
}
