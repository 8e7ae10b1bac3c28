//go:build linux

package ble

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/Hemanth143-hy/heart-rate-server/internal/gattdb"
)

// TinygoAdapter wraps tinygo-org/bluetooth, which drives BlueZ over D-Bus
// on Linux.
type TinygoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the advertisement state.
	mu         sync.Mutex
	adv        *bluetooth.Advertisement
	configured bool
}

// NewTinygoAdapter creates a new BLE adapter using the default controller.
// It returns Adapter so that callers build on every platform.
func NewTinygoAdapter() (Adapter, error) {
	return &TinygoAdapter{adapter: bluetooth.DefaultAdapter}, nil
}

func (a *TinygoAdapter) Enable() error {
	return a.adapter.Enable()
}

func (a *TinygoAdapter) AddService(svc Service) error {
	chars := make([]bluetooth.CharacteristicConfig, 0, len(svc.Characteristics))
	for _, c := range svc.Characteristics {
		chars = append(chars, bluetooth.CharacteristicConfig{
			UUID:  c.UUID,
			Value: c.Value,
			Flags: characteristicFlags(c.Properties),
		})
	}
	if err := a.adapter.AddService(&bluetooth.Service{
		UUID:            svc.UUID,
		Characteristics: chars,
	}); err != nil {
		return fmt.Errorf("ble: add service %s: %w", svc.UUID, err)
	}
	return nil
}

func (a *TinygoAdapter) StartAdvertising(opts AdvertisementOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.adv == nil {
		a.adv = a.adapter.DefaultAdvertisement()
	}
	// BlueZ keeps the payload across stop and start; it may only be
	// configured once.
	if !a.configured {
		err := a.adv.Configure(bluetooth.AdvertisementOptions{
			LocalName:    opts.LocalName,
			ServiceUUIDs: opts.ServiceUUIDs,
			Interval:     bluetooth.NewDuration(opts.Interval),
		})
		if err != nil {
			return fmt.Errorf("ble: configure advertisement: %w", err)
		}
		a.configured = true
	}
	return a.adv.Start()
}

func (a *TinygoAdapter) StopAdvertising() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adv == nil {
		return nil
	}
	return a.adv.Stop()
}

func (a *TinygoAdapter) SetConnectHandler(handler func(addr string, connected bool)) {
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		handler(device.Address.String(), connected)
	})
}

// Compile-time check that TinygoAdapter implements Adapter.
var _ Adapter = (*TinygoAdapter)(nil)

// characteristicFlags maps declaration properties to tinygo permissions.
func characteristicFlags(p gattdb.Properties) bluetooth.CharacteristicPermissions {
	var f bluetooth.CharacteristicPermissions
	if p.Broadcast() {
		f |= bluetooth.CharacteristicBroadcastPermission
	}
	if p.Read() {
		f |= bluetooth.CharacteristicReadPermission
	}
	if p.WriteWithoutResponse() {
		f |= bluetooth.CharacteristicWriteWithoutResponsePermission
	}
	if p.Write() {
		f |= bluetooth.CharacteristicWritePermission
	}
	if p.Notify() {
		f |= bluetooth.CharacteristicNotifyPermission
	}
	if p.Indicate() {
		f |= bluetooth.CharacteristicIndicatePermission
	}
	return f
}
