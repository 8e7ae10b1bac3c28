package gattdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"tinygo.org/x/bluetooth"
)

// Image layout, one entry per record, integers little-endian:
//
//	handle(2) perm(1) len(1) [maxlen(1) if perm is writable] payload(len)
//
// A service declaration's payload is 0x2800 followed by the service UUID. A
// characteristic declaration's payload is 0x2803, properties(1), value
// handle(2) and the characteristic UUID. Values and descriptors carry only
// their type UUID; a 128-bit type sets permUUID128 in the permission byte.

var (
	ErrTruncated = errors.New("gattdb: image truncated")
	ErrMalformed = errors.New("gattdb: malformed attribute entry")
	ErrRoundTrip = errors.New("gattdb: image does not round-trip")
)

// Image encodes the database into its linear image.
func (db *Database) Image() []byte {
	var buf []byte
	for _, r := range db.records {
		buf = appendRecord(buf, r)
	}
	return buf
}

// ImageLen returns the length of the encoded image in bytes.
func (db *Database) ImageLen() int {
	n := 0
	for _, r := range db.records {
		n += entryLen(r)
	}
	return n
}

// VerifyImage decodes the encoded image and checks that it reproduces both
// the records and the bytes.
func (db *Database) VerifyImage() error {
	img := db.Image()
	back, err := Decode(img)
	if err != nil {
		return err
	}
	if !slices.Equal(back.records, db.records) {
		return fmt.Errorf("%w: records differ", ErrRoundTrip)
	}
	if !bytes.Equal(back.Image(), img) {
		return fmt.Errorf("%w: bytes differ", ErrRoundTrip)
	}
	return nil
}

func uuidLen(uuid bluetooth.UUID) int {
	if uuid.Is16Bit() {
		return 2
	}
	return 16
}

func payloadLen(r Record) int {
	switch r.Kind {
	case KindPrimaryService:
		return 2 + uuidLen(r.UUID)
	case KindCharacteristic:
		return 5 + uuidLen(r.UUID)
	default:
		return uuidLen(r.UUID)
	}
}

func entryLen(r Record) int {
	n := 4 + payloadLen(r)
	if r.Permissions.Writable() {
		n++
	}
	return n
}

func appendUUID(buf []byte, uuid bluetooth.UUID) []byte {
	if uuid.Is16Bit() {
		return binary.LittleEndian.AppendUint16(buf, uuid.Get16Bit())
	}
	b := uuid.Bytes()
	return append(buf, b[:]...)
}

func appendRecord(buf []byte, r Record) []byte {
	perm := r.Permissions
	if (r.Kind == KindValue || r.Kind == KindDescriptor) && !r.UUID.Is16Bit() {
		perm |= permUUID128
	}

	buf = binary.LittleEndian.AppendUint16(buf, r.Handle)
	buf = append(buf, byte(perm), byte(payloadLen(r)))
	if r.Permissions.Writable() {
		buf = append(buf, r.MaxLen)
	}

	switch r.Kind {
	case KindPrimaryService:
		buf = appendUUID(buf, UUIDPrimaryService)
		buf = appendUUID(buf, r.UUID)
	case KindCharacteristic:
		buf = appendUUID(buf, UUIDCharacteristic)
		buf = append(buf, byte(r.Properties))
		buf = binary.LittleEndian.AppendUint16(buf, r.ValueHandle)
		buf = appendUUID(buf, r.UUID)
	default:
		buf = appendUUID(buf, r.UUID)
	}
	return buf
}

// decodeUUID parses a 2- or 16-byte little-endian UUID. A 16-byte encoding of
// a 16-bit UUID is rejected so that images re-encode byte for byte.
func decodeUUID(b []byte) (bluetooth.UUID, error) {
	switch len(b) {
	case 2:
		return bluetooth.New16BitUUID(binary.LittleEndian.Uint16(b)), nil
	case 16:
		var raw [16]byte
		copy(raw[:], b)
		slices.Reverse(raw[:])
		uuid := bluetooth.NewUUID(raw)
		if uuid.Is16Bit() {
			return bluetooth.UUID{}, fmt.Errorf("%w: 128-bit form of 16-bit UUID %s", ErrMalformed, uuid)
		}
		return uuid, nil
	default:
		return bluetooth.UUID{}, fmt.Errorf("%w: UUID of %d bytes", ErrMalformed, len(b))
	}
}

// Decode parses a database image and validates the result.
func Decode(image []byte) (*Database, error) {
	var records []Record
	var pendingValue uint16 // value handle announced by the last declaration

	for off := 0; off < len(image); {
		if len(image)-off < 4 {
			return nil, fmt.Errorf("offset %d: %w", off, ErrTruncated)
		}
		start := off
		perm := Permissions(image[off+2])
		n := int(image[off+3])
		r := Record{
			Handle:      binary.LittleEndian.Uint16(image[off:]),
			Permissions: perm &^ permUUID128,
		}
		off += 4

		if perm.Writable() {
			if off >= len(image) {
				return nil, fmt.Errorf("offset %d: %w", start, ErrTruncated)
			}
			r.MaxLen = image[off]
			off++
		}
		if len(image)-off < n {
			return nil, fmt.Errorf("offset %d: %w", start, ErrTruncated)
		}
		payload := image[off : off+n]
		off += n

		var err error
		if perm&permUUID128 != 0 {
			if n != 16 {
				return nil, fmt.Errorf("offset %d: %w: 128-bit type with length %d", start, ErrMalformed, n)
			}
			r.UUID, err = decodeUUID(payload)
			r.Kind = attributeKind(r.Handle, pendingValue)
		} else {
			if n < 2 {
				return nil, fmt.Errorf("offset %d: %w: length %d", start, ErrMalformed, n)
			}
			typ, rest := bluetooth.New16BitUUID(binary.LittleEndian.Uint16(payload)), payload[2:]
			switch typ {
			case UUIDPrimaryService:
				r.Kind = KindPrimaryService
				r.UUID, err = decodeUUID(rest)
			case UUIDCharacteristic:
				if len(rest) < 3 {
					return nil, fmt.Errorf("offset %d: %w: short characteristic declaration", start, ErrMalformed)
				}
				r.Kind = KindCharacteristic
				r.Properties = Properties(rest[0])
				r.ValueHandle = binary.LittleEndian.Uint16(rest[1:])
				r.UUID, err = decodeUUID(rest[3:])
				pendingValue = r.ValueHandle
			default:
				if len(rest) != 0 {
					return nil, fmt.Errorf("offset %d: %w: inline value on %s", start, ErrMalformed, shortString(typ))
				}
				r.UUID = typ
				r.Kind = attributeKind(r.Handle, pendingValue)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", start, err)
		}
		if r.Kind == KindValue {
			pendingValue = 0
		}
		records = append(records, r)
	}

	db, err := New(records)
	if err != nil {
		return nil, fmt.Errorf("gattdb: decode: %w", err)
	}
	return db, nil
}

func attributeKind(handle, pendingValue uint16) Kind {
	if pendingValue != 0 && handle == pendingValue {
		return KindValue
	}
	return KindDescriptor
}
