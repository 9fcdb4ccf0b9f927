package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-superbit/pkg/command"
)

// GATT identity of the command service. Characteristic UUIDs share the
// service UUID's suffix.
const (
	ServiceUUID   = "6b38635e-9fe3-41ea-a28f-74f5c807c090"
	DirectionUUID = "6b38dee0-9fe3-41ea-a28f-74f5c807c090"
	LEDUUID       = "6b3897dc-9fe3-41ea-a28f-74f5c807c090"
	ArmUUID       = "6b383ad1-9fe3-41ea-a28f-74f5c807c090"
)

// CharacteristicSpec describes one command channel as a GATT characteristic.
type CharacteristicSpec struct {
	Channel command.Channel
	UUID    string
	Initial []byte
}

// ServiceSpec is the GATT service exposed to the remote.
type ServiceSpec struct {
	UUID            string
	Characteristics []CharacteristicSpec
}

// CommandService returns the robot's command service layout.
func CommandService() ServiceSpec {
	return ServiceSpec{
		UUID: ServiceUUID,
		Characteristics: []CharacteristicSpec{
			{Channel: command.ChannelDirection, UUID: DirectionUUID},
			{Channel: command.ChannelLED, UUID: LEDUUID, Initial: []byte{0}},
			{Channel: command.ChannelArm, UUID: ArmUUID},
		},
	}
}

// Peripheral is the BLE stack seen from the transport. TinyGoPeripheral
// implements it on top of tinygo.org/x/bluetooth.
type Peripheral interface {
	// Enable powers the radio.
	Enable() error

	// Register installs the GATT service. onWrite is called from the
	// stack's goroutine for every write.
	Register(svc ServiceSpec, onWrite func(ch command.Channel, value []byte)) error

	// SetConnectHandler installs the connection callback. It must be set
	// before Enable.
	SetConnectHandler(h func(peer string, connected bool))

	// StartAdvertising puts the device on air with the configured name,
	// service id and interval.
	StartAdvertising(cfg Config) error

	// StopAdvertising takes the device off air.
	StopAdvertising() error

	// SetValue updates a characteristic. The stack notifies the remote if
	// it has subscribed. Some backends (BlueZ through tinygo bluetooth)
	// also report the update to the write callback; BLETransport discards
	// that echo.
	SetValue(ch command.Channel, value []byte) error

	// Disconnect drops the link to peer.
	Disconnect(peer string) error
}

// BLETransport accepts one remote at a time over a BLE peripheral.
type BLETransport struct {
	cfg    Config
	p      Peripheral
	logger *slog.Logger

	initOnce sync.Once
	initErr  error

	mu          sync.Mutex
	advertising bool
	active      *bleSession
	accepted    chan *bleSession
	closed      chan struct{}
	closeOnce   sync.Once

	// Values being written by setValue, keyed by channel. Separate from mu
	// because the backend may call onWrite from inside SetValue.
	echoMu     sync.Mutex
	publishing map[command.Channel][]byte
}

var _ Transport = (*BLETransport)(nil)

// NewBLETransport creates a transport on p.
func NewBLETransport(p Peripheral, opts ...Option) *BLETransport {
	cfg := newConfig(opts)
	return &BLETransport{
		cfg:        cfg,
		p:          p,
		logger:     cfg.Logger.With("transport", "ble"),
		accepted:   make(chan *bleSession, 1),
		closed:     make(chan struct{}),
		publishing: make(map[command.Channel][]byte),
	}
}

// Name returns "ble".
func (t *BLETransport) Name() string { return "ble" }

func (t *BLETransport) init() error {
	t.initOnce.Do(func() {
		t.p.SetConnectHandler(t.onConnect)
		if err := t.p.Enable(); err != nil {
			t.initErr = fmt.Errorf("enable adapter: %w", err)
			return
		}
		if err := t.p.Register(CommandService(), t.onWrite); err != nil {
			t.initErr = fmt.Errorf("register service: %w", err)
			return
		}
		t.logger.Info("GATT service registered", "service", ServiceUUID)
	})
	return t.initErr
}

// Advertise puts the device on air and waits for a remote.
func (t *BLETransport) Advertise(ctx context.Context) (Session, error) {
	if err := t.init(); err != nil {
		return nil, err
	}

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
	if err := t.p.StartAdvertising(t.cfg); err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("start advertising: %w", err)
	}
	t.advertising = true
	t.mu.Unlock()

	t.logger.Info("advertising", "name", t.cfg.DeviceName, "service_id", fmt.Sprintf("0x%04x", t.cfg.ServiceID))

	select {
	case s := <-t.accepted:
		return s, nil
	case <-ctx.Done():
		t.stopAdvertising()
		t.rejectPending(Shutdown)
		return nil, ctx.Err()
	case <-t.closed:
		t.stopAdvertising()
		return nil, ErrTransportClosed
	}
}

func (t *BLETransport) stopAdvertising() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.advertising {
		return
	}
	t.advertising = false
	if err := t.p.StopAdvertising(); err != nil {
		t.logger.Warn("stop advertising failed", "error", err)
	}
}

// rejectPending drops a remote that connected after Advertise gave up.
func (t *BLETransport) rejectPending(reason EndReason) {
	select {
	case s := <-t.accepted:
		_ = t.drop(s, reason, nil)
	default:
	}
}

func (t *BLETransport) onConnect(peer string, connected bool) {
	if !connected {
		t.mu.Lock()
		s := t.active
		if s != nil && s.peer == peer {
			t.active = nil
		} else {
			s = nil
		}
		t.mu.Unlock()
		if s != nil {
			s.logger.Info("remote disconnected")
			s.end(Disconnected, nil)
		}
		return
	}

	t.mu.Lock()
	if t.active != nil || !t.advertising {
		busy := t.active != nil
		t.mu.Unlock()
		t.logger.Warn("refusing connection", "peer", peer, "busy", busy)
		if err := t.p.Disconnect(peer); err != nil {
			t.logger.Warn("disconnect refused peer failed", "peer", peer, "error", err)
		}
		return
	}

	s := &bleSession{
		conn: newConn(peer, t.cfg.EventQueue, t.logger),
		t:    t,
	}
	t.active = s
	t.advertising = false
	if err := t.p.StopAdvertising(); err != nil {
		t.logger.Warn("stop advertising failed", "error", err)
	}
	t.accepted <- s
	t.mu.Unlock()

	s.logger.Info("remote connected")
}

// setValue writes a characteristic on behalf of the robot. A write callback
// carrying the same value while it runs is the backend's echo, not the remote.
func (t *BLETransport) setValue(ch command.Channel, value []byte) error {
	t.echoMu.Lock()
	t.publishing[ch] = value
	t.echoMu.Unlock()

	defer func() {
		t.echoMu.Lock()
		delete(t.publishing, ch)
		t.echoMu.Unlock()
	}()
	return t.p.SetValue(ch, value)
}

func (t *BLETransport) isEcho(ch command.Channel, value []byte) bool {
	t.echoMu.Lock()
	defer t.echoMu.Unlock()
	pending, ok := t.publishing[ch]
	return ok && bytes.Equal(pending, value)
}

func (t *BLETransport) onWrite(ch command.Channel, value []byte) {
	if t.isEcho(ch, value) {
		t.logger.Debug("ignoring echo of own update", "channel", ch.String())
		return
	}
	t.mu.Lock()
	s := t.active
	t.mu.Unlock()
	if s == nil {
		t.logger.Debug("write without a session", "channel", ch.String())
		return
	}
	s.deliver(command.WriteEvent{Channel: ch, Value: value})
}

// Close stops advertising and drops the active remote.
func (t *BLETransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
	})
	t.stopAdvertising()

	t.mu.Lock()
	s := t.active
	t.mu.Unlock()
	if s != nil {
		return t.drop(s, TransportError, ErrTransportClosed)
	}
	return nil
}

// drop ends s, frees the slot and disconnects the remote.
func (t *BLETransport) drop(s *bleSession, reason EndReason, err error) error {
	s.end(reason, err)
	t.mu.Lock()
	if t.active == s {
		t.active = nil
	}
	t.mu.Unlock()
	return t.p.Disconnect(s.peer)
}

// bleSession is one BLE central connected to the command service.
type bleSession struct {
	*conn
	t *BLETransport
}

var (
	_ Session              = (*bleSession)(nil)
	_ SubscriptionReporter = (*bleSession)(nil)
	_ DropCounter          = (*bleSession)(nil)
)

func (s *bleSession) Run(ctx context.Context, h Handler) (EndReason, error) {
	return s.run(ctx, h)
}

// Publish stores value in the characteristic. The BLE stack owns the
// subscription state and only notifies a subscribed remote, so push is
// honoured by skipping the update when it would not change the value.
func (s *bleSession) Publish(ch command.Channel, value []byte, push bool) error {
	prev := s.value(ch)
	if err := s.store(ch, value); err != nil {
		return err
	}
	if !push && string(prev) == string(value) {
		return nil
	}
	return s.t.setValue(ch, value)
}

func (s *bleSession) Close() error {
	return s.t.drop(s, Disconnected, nil)
}

// ReportsSubscriptions is false: CCCD writes are handled inside the stack.
func (s *bleSession) ReportsSubscriptions() bool { return false }
