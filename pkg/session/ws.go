package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-superbit/pkg/command"
	"github.com/teslashibe/go-superbit/pkg/protocol"
)

// WSTransport accepts one remote at a time over a websocket endpoint. It is
// the network stand-in for the BLE link: same channels, same one-remote rule.
type WSTransport struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	advertising bool
	active      *wsSession
	accepted    chan *wsSession
	closed      chan struct{}
	closeOnce   sync.Once
}

var _ Transport = (*WSTransport)(nil)

// NewWSTransport creates a websocket transport. Call RegisterRoutes to
// mount it on a fiber app.
func NewWSTransport(opts ...Option) *WSTransport {
	cfg := newConfig(opts)
	return &WSTransport{
		cfg:      cfg,
		logger:   cfg.Logger.With("transport", "ws"),
		accepted: make(chan *wsSession, 1),
		closed:   make(chan struct{}),
	}
}

// Name returns "ws".
func (t *WSTransport) Name() string { return "ws" }

// RegisterRoutes registers the remote endpoint on router.
func (t *WSTransport) RegisterRoutes(router fiber.Router) {
	router.Use(t.cfg.Path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get(t.cfg.Path, websocket.New(t.handleRemote))
}

// Advertise waits for a remote to open the endpoint.
func (t *WSTransport) Advertise(ctx context.Context) (Session, error) {
	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		return nil, ErrTransportClosed
	default:
	}
	if t.active != nil {
		t.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	t.advertising = true
	t.mu.Unlock()

	t.logger.Info("waiting for remote", "path", t.cfg.Path, "name", t.cfg.DeviceName)

	select {
	case s := <-t.accepted:
		return s, nil
	case <-ctx.Done():
		t.stopAdvertising()
		return nil, ctx.Err()
	case <-t.closed:
		t.stopAdvertising()
		return nil, ErrTransportClosed
	}
}

// stopAdvertising closes the accept window and drops a remote that slipped
// in after Advertise gave up.
func (t *WSTransport) stopAdvertising() {
	t.mu.Lock()
	t.advertising = false
	t.mu.Unlock()

	select {
	case s := <-t.accepted:
		_ = s.Close()
	default:
	}
}

// Close refuses new remotes and drops the active one.
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	t.stopAdvertising()

	t.mu.Lock()
	s := t.active
	t.mu.Unlock()
	if s != nil {
		s.end(TransportError, ErrTransportClosed)
		return s.closeConn()
	}
	return nil
}

// claim makes a new connection the active session if the transport is
// accepting. It returns the refusal reason otherwise.
func (t *WSTransport) claim(c *websocket.Conn) (*wsSession, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.active != nil:
		return nil, "busy"
	case !t.advertising:
		return nil, "not advertising"
	}

	s := &wsSession{
		conn: newConn(c.IP(), t.cfg.EventQueue, t.logger),
		ws:   c,
	}
	s.afterEvent = s.answerRead
	t.active = s
	t.advertising = false
	t.accepted <- s
	return s, ""
}

func (t *WSTransport) release(s *wsSession) {
	t.mu.Lock()
	if t.active == s {
		t.active = nil
	}
	t.mu.Unlock()
}

func (t *WSTransport) handleRemote(c *websocket.Conn) {
	s, reason := t.claim(c)
	if s == nil {
		t.logger.Warn("refusing remote", "peer", c.IP(), "reason", reason)
		if msg, err := protocol.NewRejectMessage(reason); err == nil {
			if data, err := msg.Bytes(); err == nil {
				_ = c.WriteMessage(websocket.TextMessage, data)
			}
		}
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
		return
	}
	defer t.release(s)

	s.logger.Info("remote connected")
	if msg, err := protocol.NewWelcomeMessage(s.id, t.cfg.DeviceName); err == nil {
		if err := s.send(msg); err != nil {
			s.end(TransportError, err)
			return
		}
	}

	why, err := s.readLoop()
	s.logger.Info("remote disconnected", "reason", why.String(), "error", err)
	s.end(why, err)

	// The socket is recycled once the handler returns.
	s.writeMu.Lock()
	s.released = true
	s.writeMu.Unlock()
}

// wsSession is one websocket remote.
type wsSession struct {
	*conn
	ws *websocket.Conn

	writeMu  sync.Mutex
	released bool
}

var (
	_ Session              = (*wsSession)(nil)
	_ SubscriptionReporter = (*wsSession)(nil)
	_ DropCounter          = (*wsSession)(nil)
)

const wsWriteWait = 5 * time.Second

func (s *wsSession) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.released {
		return ErrNotConnected
	}
	_ = s.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) readLoop() (EndReason, error) {
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) || s.ended() {
				return Disconnected, nil
			}
			return TransportError, err
		}
		s.handleMessage(data)
	}
}

func (s *wsSession) handleMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Debug("unparseable message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeWrite:
		wd, err := msg.GetWriteData()
		if err != nil {
			s.logger.Debug("bad write", "error", err)
			return
		}
		ch, err := command.ParseChannel(wd.Channel)
		if err != nil {
			s.logger.Debug("write to unknown channel", "error", err)
			return
		}
		s.deliver(command.WriteEvent{Channel: ch, Value: wd.Value})

	case protocol.TypeRead:
		rd, err := msg.GetReadData()
		if err != nil {
			return
		}
		ch, err := command.ParseChannel(rd.Channel)
		if err != nil || !ch.Readable() {
			s.logger.Debug("read of unreadable channel", "channel", rd.Channel)
			return
		}
		s.deliver(command.ReadEvent{Channel: ch})

	case protocol.TypeSubscribe:
		sd, err := msg.GetSubscribeData()
		if err != nil {
			return
		}
		ch, err := command.ParseChannel(sd.Channel)
		if err != nil || !ch.Notifiable() {
			s.logger.Debug("subscribe to channel without notify", "channel", sd.Channel)
			return
		}
		s.deliver(command.SubscriptionEvent{Channel: ch, Enabled: sd.Enabled})

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			_ = s.send(pong)
		}

	default:
		s.logger.Debug("ignoring message", "type", msg.Type)
	}
}

// answerRead sends the current value once the handler has seen the read,
// so a read queued behind a write observes that write.
func (s *wsSession) answerRead(ev command.Event) {
	rd, ok := ev.(command.ReadEvent)
	if !ok || s.ended() {
		return
	}
	msg, err := protocol.NewValueMessage(rd.Channel.String(), s.value(rd.Channel), false)
	if err != nil {
		return
	}
	if err := s.send(msg); err != nil {
		s.logger.Debug("read response failed", "error", err)
	}
}

func (s *wsSession) Run(ctx context.Context, h Handler) (EndReason, error) {
	return s.run(ctx, h)
}

// Publish stores value and, when push is set, sends it as a notification.
func (s *wsSession) Publish(ch command.Channel, value []byte, push bool) error {
	if err := s.store(ch, value); err != nil {
		return err
	}
	if !push {
		return nil
	}
	msg, err := protocol.NewValueMessage(ch.String(), value, true)
	if err != nil {
		return err
	}
	if err := s.send(msg); err != nil {
		return fmt.Errorf("notify %s: %w", ch, err)
	}
	return nil
}

// Close ends the session and closes the socket.
func (s *wsSession) Close() error {
	s.end(Disconnected, nil)
	return s.closeConn()
}

func (s *wsSession) closeConn() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.released {
		return nil
	}
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := s.ws.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// ReportsSubscriptions is true: the remote sends explicit subscribe messages.
func (s *wsSession) ReportsSubscriptions() bool { return true }
