package hrs

import (
	"fmt"

	"github.com/Hemanth143-hy/heart-rate-server/internal/gattdb"
)

// MaxStringLen bounds a Device Information string. It matches the maximum
// length of an attribute value.
const MaxStringLen = 512

// DeviceInfo holds the Device Information service strings.
type DeviceInfo struct {
	Manufacturer string
	Model        string
	Firmware     string
	Software     string
}

// DefaultDeviceInfo returns the factory Device Information strings.
func DefaultDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Manufacturer: "Cypress",
		Model:        "BLE-103",
		Firmware:     "1.0.0",
		Software:     "1.0.1",
	}
}

// State owns the buffers behind the externally referenced attribute values.
// The GAP values are fixed; the Device Information strings may be replaced at
// runtime but never grow beyond their initial length.
type State struct {
	deviceName   *gattdb.Buffer
	appearance   *gattdb.Buffer
	manufacturer *gattdb.Buffer
	model        *gattdb.Buffer
	firmware     *gattdb.Buffer
	software     *gattdb.Buffer

	index *gattdb.Index
}

// NewState builds the value buffers seeded from info.
func NewState(info DeviceInfo) (*State, error) {
	s := &State{
		deviceName: gattdb.NewFixedBuffer(DeviceNameBytes()),
		appearance: gattdb.NewFixedBuffer(AppearanceBytes()),
	}

	fields := []struct {
		name  string
		value string
		dst   **gattdb.Buffer
	}{
		{"manufacturer", info.Manufacturer, &s.manufacturer},
		{"model", info.Model, &s.model},
		{"firmware", info.Firmware, &s.firmware},
		{"software", info.Software, &s.software},
	}
	for _, f := range fields {
		if len(f.value) > MaxStringLen {
			return nil, fmt.Errorf("hrs: %s: %d bytes exceeds %d", f.name, len(f.value), MaxStringLen)
		}
		b, err := gattdb.NewBuffer(len(f.value), []byte(f.value))
		if err != nil {
			return nil, fmt.Errorf("hrs: %s: %w", f.name, err)
		}
		*f.dst = b
	}

	idx, err := gattdb.NewIndex(
		gattdb.Entry{Handle: HandleDeviceNameValue, Buffer: s.deviceName},
		gattdb.Entry{Handle: HandleAppearanceValue, Buffer: s.appearance},
		gattdb.Entry{Handle: HandleManufacturerNameValue, Buffer: s.manufacturer},
		gattdb.Entry{Handle: HandleModelNumberValue, Buffer: s.model},
		gattdb.Entry{Handle: HandleFirmwareRevisionValue, Buffer: s.firmware},
		gattdb.Entry{Handle: HandleSoftwareRevisionValue, Buffer: s.software},
	)
	if err != nil {
		return nil, fmt.Errorf("hrs: build index: %w", err)
	}
	s.index = idx
	return s, nil
}

// Index returns the external attribute index over the state's buffers.
func (s *State) Index() *gattdb.Index { return s.index }

// Gaps returns the value and descriptor attributes of the database that the
// index does not back.
func (s *State) Gaps() []gattdb.Record { return Database().Unbacked(s.index) }

// Value returns the current value at handle, if indexed.
func (s *State) Value(handle uint16) ([]byte, bool) {
	b, ok := s.index.Lookup(handle)
	if !ok {
		return nil, false
	}
	return b.Bytes(), true
}

// SetValue replaces the value at handle. Fixed values and values longer than
// the entry's maximum length are rejected.
func (s *State) SetValue(handle uint16, p []byte) error {
	b, ok := s.index.Lookup(handle)
	if !ok {
		return fmt.Errorf("hrs: handle 0x%04X is not indexed", handle)
	}
	if err := b.Set(p); err != nil {
		return fmt.Errorf("hrs: handle 0x%04X: %w", handle, err)
	}
	return nil
}

// Info returns the current Device Information strings.
func (s *State) Info() DeviceInfo {
	return DeviceInfo{
		Manufacturer: string(s.manufacturer.Bytes()),
		Model:        string(s.model.Bytes()),
		Firmware:     string(s.firmware.Bytes()),
		Software:     string(s.software.Bytes()),
	}
}
