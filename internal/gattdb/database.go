package gattdb

import (
	"errors"
	"fmt"

	"tinygo.org/x/bluetooth"
)

var (
	ErrEmpty            = errors.New("gattdb: database has no records")
	ErrHandleZero       = errors.New("gattdb: handle 0x0000 is reserved")
	ErrHandleOrder      = errors.New("gattdb: handles must be strictly increasing")
	ErrNoService        = errors.New("gattdb: first record must be a service declaration")
	ErrMissingValue     = errors.New("gattdb: characteristic declaration not followed by its value")
	ErrOrphanValue      = errors.New("gattdb: value record without a preceding declaration")
	ErrOrphanDescriptor = errors.New("gattdb: descriptor outside a characteristic")
	ErrMissingCCCD      = errors.New("gattdb: notify/indicate characteristic without CCCD")
	ErrWritePermission  = errors.New("gattdb: writable characteristic without write permission")
	ErrMaxLen           = errors.New("gattdb: max length set on a non-writable record")
	ErrReservedBit      = errors.New("gattdb: reserved permission bit set")
	ErrUnknownKind      = errors.New("gattdb: unknown record kind")
	ErrDeclarationType  = errors.New("gattdb: value or descriptor typed as a declaration")
)

// Database is a validated, immutable attribute table. Records are kept in
// declaration order, which is also handle order.
type Database struct {
	records  []Record
	byHandle map[uint16]int
}

// New validates records and wraps them in a Database. The slice is copied.
func New(records []Record) (*Database, error) {
	if err := validate(records); err != nil {
		return nil, err
	}
	db := &Database{
		records:  append([]Record(nil), records...),
		byHandle: make(map[uint16]int, len(records)),
	}
	for i, r := range db.records {
		db.byHandle[r.Handle] = i
	}
	return db, nil
}

func validate(records []Record) error {
	if len(records) == 0 {
		return ErrEmpty
	}
	if records[0].Kind != KindPrimaryService {
		return fmt.Errorf("%w: got %s", ErrNoService, records[0])
	}

	var prev uint16
	for i, r := range records {
		if r.Handle == 0 {
			return fmt.Errorf("record %d: %w", i, ErrHandleZero)
		}
		if i > 0 && r.Handle <= prev {
			return fmt.Errorf("record %d (0x%04X after 0x%04X): %w", i, r.Handle, prev, ErrHandleOrder)
		}
		prev = r.Handle

		if r.Permissions&permUUID128 != 0 {
			return fmt.Errorf("%s: %w", r, ErrReservedBit)
		}
		if r.MaxLen != 0 && !r.Permissions.Writable() {
			return fmt.Errorf("%s: %w", r, ErrMaxLen)
		}

		// The image tells entries apart by type, so these would decode as
		// declarations.
		if (r.Kind == KindValue || r.Kind == KindDescriptor) &&
			(r.UUID == UUIDPrimaryService || r.UUID == UUIDCharacteristic) {
			return fmt.Errorf("%s: %w", r, ErrDeclarationType)
		}

		switch r.Kind {
		case KindPrimaryService:
		case KindCharacteristic:
			if err := validateCharacteristic(records, i); err != nil {
				return err
			}
		case KindValue:
			if i == 0 || records[i-1].Kind != KindCharacteristic {
				return fmt.Errorf("%s: %w", r, ErrOrphanValue)
			}
		case KindDescriptor:
			switch records[i-1].Kind {
			case KindValue, KindDescriptor:
			default:
				return fmt.Errorf("%s: %w", r, ErrOrphanDescriptor)
			}
		default:
			return fmt.Errorf("record %d: %w", i, ErrUnknownKind)
		}
	}
	return nil
}

// validateCharacteristic checks the declaration at records[i] against the
// value (and, for notify/indicate, the CCCD) that must follow it.
func validateCharacteristic(records []Record, i int) error {
	decl := records[i]
	if i+1 >= len(records) {
		return fmt.Errorf("%s: %w", decl, ErrMissingValue)
	}
	val := records[i+1]
	if val.Kind != KindValue || val.Handle != decl.ValueHandle || val.UUID != decl.UUID {
		return fmt.Errorf("%s: %w (next is %s)", decl, ErrMissingValue, val)
	}
	if decl.Properties.Write() && val.Permissions&PermWriteReq == 0 {
		return fmt.Errorf("%s: %w", decl, ErrWritePermission)
	}
	if decl.Properties.WriteWithoutResponse() && val.Permissions&PermWriteCmd == 0 {
		return fmt.Errorf("%s: %w", decl, ErrWritePermission)
	}
	if decl.Properties.Notify() || decl.Properties.Indicate() {
		if i+2 >= len(records) {
			return fmt.Errorf("%s: %w", decl, ErrMissingCCCD)
		}
		d := records[i+2]
		if d.Kind != KindDescriptor || d.UUID != UUIDCCCD {
			return fmt.Errorf("%s: %w", decl, ErrMissingCCCD)
		}
	}
	return nil
}

// Records returns a copy of the records in handle order.
func (db *Database) Records() []Record {
	return append([]Record(nil), db.records...)
}

// Len returns the number of records.
func (db *Database) Len() int { return len(db.records) }

// Lookup returns the record with the given handle.
func (db *Database) Lookup(handle uint16) (Record, bool) {
	i, ok := db.byHandle[handle]
	if !ok {
		return Record{}, false
	}
	return db.records[i], true
}

// ValueHandles returns the handles of all characteristic value records.
func (db *Database) ValueHandles() []uint16 {
	var hs []uint16
	for _, r := range db.records {
		if r.Kind == KindValue {
			hs = append(hs, r.Handle)
		}
	}
	return hs
}

// Unbacked returns the value and descriptor records that have no entry in
// idx. Their values live nowhere in the database, so the server stack must
// serve them itself or reject requests for them.
func (db *Database) Unbacked(idx *Index) []Record {
	var out []Record
	for _, r := range db.records {
		if r.Kind != KindValue && r.Kind != KindDescriptor {
			continue
		}
		if _, ok := idx.Lookup(r.Handle); !ok {
			out = append(out, r)
		}
	}
	return out
}

// Service groups a service declaration with its characteristics.
type Service struct {
	Declaration     Record
	EndHandle       uint16
	Characteristics []Characteristic
}

// UUID returns the service UUID.
func (s Service) UUID() bluetooth.UUID { return s.Declaration.UUID }

// Characteristic groups a characteristic declaration, its value record and
// its descriptors.
type Characteristic struct {
	Declaration Record
	Value       Record
	Descriptors []Record
}

// Services returns the database grouped by service.
func (db *Database) Services() []Service {
	var svcs []Service
	for _, r := range db.records {
		switch r.Kind {
		case KindPrimaryService:
			svcs = append(svcs, Service{Declaration: r})
		case KindCharacteristic:
			s := &svcs[len(svcs)-1]
			s.Characteristics = append(s.Characteristics, Characteristic{Declaration: r})
		case KindValue:
			s := &svcs[len(svcs)-1]
			s.Characteristics[len(s.Characteristics)-1].Value = r
		case KindDescriptor:
			s := &svcs[len(svcs)-1]
			c := &s.Characteristics[len(s.Characteristics)-1]
			c.Descriptors = append(c.Descriptors, r)
		}
		svcs[len(svcs)-1].EndHandle = r.Handle
	}
	return svcs
}

// Builder accumulates records in declaration order. Build validates them.
type Builder struct {
	records []Record
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// PrimaryService declares a primary service.
func (b *Builder) PrimaryService(handle uint16, uuid bluetooth.UUID) *Builder {
	b.records = append(b.records, Record{
		Handle:      handle,
		Kind:        KindPrimaryService,
		UUID:        uuid,
		Permissions: PermReadable,
	})
	return b
}

// Characteristic declares a characteristic and its value attribute.
func (b *Builder) Characteristic(handle, valueHandle uint16, uuid bluetooth.UUID, props Properties, perm Permissions) *Builder {
	b.records = append(b.records,
		Record{
			Handle:      handle,
			Kind:        KindCharacteristic,
			UUID:        uuid,
			Properties:  props,
			ValueHandle: valueHandle,
			Permissions: PermReadable,
		},
		Record{
			Handle:      valueHandle,
			Kind:        KindValue,
			UUID:        uuid,
			Permissions: perm,
		})
	return b
}

// WritableCharacteristic is Characteristic for a value that carries write
// permission. maxLen is encoded with the value; zero leaves the length to the
// backing buffer.
func (b *Builder) WritableCharacteristic(handle, valueHandle uint16, uuid bluetooth.UUID, props Properties, perm Permissions, maxLen uint8) *Builder {
	b.Characteristic(handle, valueHandle, uuid, props, perm)
	b.records[len(b.records)-1].MaxLen = maxLen
	return b
}

// Descriptor declares a descriptor of the preceding characteristic.
func (b *Builder) Descriptor(handle uint16, uuid bluetooth.UUID, perm Permissions) *Builder {
	b.records = append(b.records, Record{
		Handle:      handle,
		Kind:        KindDescriptor,
		UUID:        uuid,
		Permissions: perm,
	})
	return b
}

// WritableDescriptor is Descriptor for a descriptor that carries write
// permission, with maxLen as in WritableCharacteristic.
func (b *Builder) WritableDescriptor(handle uint16, uuid bluetooth.UUID, perm Permissions, maxLen uint8) *Builder {
	b.Descriptor(handle, uuid, perm)
	b.records[len(b.records)-1].MaxLen = maxLen
	return b
}

// Build validates the accumulated records.
func (b *Builder) Build() (*Database, error) {
	return New(b.records)
}
