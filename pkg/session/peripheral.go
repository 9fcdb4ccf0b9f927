package session

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/teslashibe/go-superbit/pkg/command"
)

// TinyGoPeripheral is the Peripheral backed by tinygo.org/x/bluetooth. On a
// Linux host it talks to BlueZ over D-Bus.
type TinyGoPeripheral struct {
	adapter *bluetooth.Adapter

	mu      sync.Mutex
	chars   map[command.Channel]*bluetooth.Characteristic
	devices map[string]bluetooth.Device
}

var _ Peripheral = (*TinyGoPeripheral)(nil)

// NewTinyGoPeripheral wraps adapter. Pass bluetooth.DefaultAdapter for the
// first controller on the host.
func NewTinyGoPeripheral(adapter *bluetooth.Adapter) *TinyGoPeripheral {
	return &TinyGoPeripheral{
		adapter: adapter,
		chars:   make(map[command.Channel]*bluetooth.Characteristic),
		devices: make(map[string]bluetooth.Device),
	}
}

// Enable powers the adapter.
func (p *TinyGoPeripheral) Enable() error {
	return p.adapter.Enable()
}

func characteristicFlags(ch command.Channel) bluetooth.CharacteristicPermissions {
	if ch.Notifiable() {
		return bluetooth.CharacteristicReadPermission |
			bluetooth.CharacteristicWritePermission |
			bluetooth.CharacteristicNotifyPermission
	}
	return bluetooth.CharacteristicWriteWithoutResponsePermission
}

// Register adds the command service to the adapter's GATT server.
func (p *TinyGoPeripheral) Register(svc ServiceSpec, onWrite func(ch command.Channel, value []byte)) error {
	svcUUID, err := bluetooth.ParseUUID(svc.UUID)
	if err != nil {
		return fmt.Errorf("service uuid: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	configs := make([]bluetooth.CharacteristicConfig, 0, len(svc.Characteristics))
	for _, spec := range svc.Characteristics {
		uuid, err := bluetooth.ParseUUID(spec.UUID)
		if err != nil {
			return fmt.Errorf("%s uuid: %w", spec.Channel, err)
		}
		ch := spec.Channel
		handle := &bluetooth.Characteristic{}
		p.chars[ch] = handle

		configs = append(configs, bluetooth.CharacteristicConfig{
			Handle: handle,
			UUID:   uuid,
			Value:  spec.Initial,
			Flags:  characteristicFlags(ch),
			WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
				if offset != 0 {
					return
				}
				onWrite(ch, append([]byte(nil), value...))
			},
		})
	}

	return p.adapter.AddService(&bluetooth.Service{
		UUID:            svcUUID,
		Characteristics: configs,
	})
}

// SetConnectHandler reports centrals connecting and disconnecting.
func (p *TinyGoPeripheral) SetConnectHandler(h func(peer string, connected bool)) {
	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		peer := device.Address.String()
		p.mu.Lock()
		if connected {
			p.devices[peer] = device
		} else {
			delete(p.devices, peer)
		}
		p.mu.Unlock()
		h(peer, connected)
	})
}

// StartAdvertising configures and starts the default advertisement.
func (p *TinyGoPeripheral) StartAdvertising(cfg Config) error {
	adv := p.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    cfg.DeviceName,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.New16BitUUID(cfg.ServiceID)},
		Interval:     bluetooth.NewDuration(cfg.AdvertiseInterval),
	}); err != nil {
		return err
	}
	return adv.Start()
}

// StopAdvertising stops the default advertisement.
func (p *TinyGoPeripheral) StopAdvertising() error {
	return p.adapter.DefaultAdvertisement().Stop()
}

// SetValue writes the characteristic value, notifying a subscribed central.
func (p *TinyGoPeripheral) SetValue(ch command.Channel, value []byte) error {
	p.mu.Lock()
	handle, ok := p.chars[ch]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: characteristic not registered", ch)
	}
	_, err := handle.Write(value)
	return err
}

// Disconnect drops the link to peer.
func (p *TinyGoPeripheral) Disconnect(peer string) error {
	p.mu.Lock()
	device, ok := p.devices[peer]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return device.Disconnect()
}
