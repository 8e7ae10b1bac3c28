// Package ble publishes the peripheral's attribute database through a host
// Bluetooth LE stack and keeps it advertising. The stack sits behind the
// Adapter interface so the peripheral logic can be tested without hardware.
package ble

import (
	"errors"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/Hemanth143-hy/heart-rate-server/internal/gattdb"
)

// ErrUnsupported is returned by adapters on platforms without a peripheral
// role implementation.
var ErrUnsupported = errors.New("ble: peripheral role not supported on this platform")

// Characteristic is one characteristic handed to the host stack.
type Characteristic struct {
	// Handle is the value handle in the attribute database. Host stacks
	// assign their own handles; this one is kept for logging.
	Handle     uint16
	UUID       bluetooth.UUID
	Properties gattdb.Properties
	// Value is the initial value, nil when the database does not back it.
	Value []byte
}

// Service is one primary service handed to the host stack.
type Service struct {
	Handle          uint16
	UUID            bluetooth.UUID
	Characteristics []Characteristic
}

// AdvertisementOptions configures the advertising payload.
type AdvertisementOptions struct {
	LocalName    string
	ServiceUUIDs []bluetooth.UUID
	Interval     time.Duration
}

// Adapter abstracts the BLE host stack for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// AddService registers a primary service and its characteristics.
	AddService(svc Service) error
	// StartAdvertising configures and starts connectable advertising.
	StartAdvertising(opts AdvertisementOptions) error
	// StopAdvertising stops advertising. It is a no-op when not advertising.
	StopAdvertising() error
	// SetConnectHandler registers a callback for central connect and
	// disconnect events.
	SetConnectHandler(handler func(addr string, connected bool))
}
