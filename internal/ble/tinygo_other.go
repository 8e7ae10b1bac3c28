//go:build !linux

package ble

// NewTinygoAdapter reports ErrUnsupported: the host stack only implements
// the peripheral role on Linux.
func NewTinygoAdapter() (Adapter, error) {
	return nil, ErrUnsupported
}
