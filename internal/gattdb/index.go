package gattdb

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrTooLong        = errors.New("gattdb: value exceeds buffer max length")
	ErrReadOnly       = errors.New("gattdb: buffer is read-only")
	ErrDuplicate      = errors.New("gattdb: duplicate index handle")
	ErrNilBuffer      = errors.New("gattdb: index entry without buffer")
	ErrNotValueHandle = errors.New("gattdb: index handle is not a value handle")
)

// Buffer is a fixed-capacity backing store for one attribute value. It is
// safe for concurrent use; a server stack may read while another goroutine
// updates a mutable buffer.
type Buffer struct {
	mu      sync.RWMutex
	data    []byte
	maxLen  int
	mutable bool
}

// NewBuffer returns a mutable buffer of capacity maxLen holding a copy of
// init. It fails when init is longer than maxLen.
func NewBuffer(maxLen int, init []byte) (*Buffer, error) {
	if len(init) > maxLen {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLong, len(init), maxLen)
	}
	data := make([]byte, len(init), maxLen)
	copy(data, init)
	return &Buffer{data: data, maxLen: maxLen, mutable: true}, nil
}

// NewFixedBuffer returns an immutable buffer holding a copy of value.
func NewFixedBuffer(value []byte) *Buffer {
	return &Buffer{data: append([]byte(nil), value...), maxLen: len(value)}
}

// Bytes returns a copy of the current value.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]byte(nil), b.data...)
}

// Len returns the current length.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// MaxLen returns the capacity.
func (b *Buffer) MaxLen() int { return b.maxLen }

// Mutable reports whether Set may change the value.
func (b *Buffer) Mutable() bool { return b.mutable }

// Set replaces the value. Values longer than MaxLen are rejected, never
// truncated.
func (b *Buffer) Set(p []byte) error {
	if !b.mutable {
		return ErrReadOnly
	}
	if len(p) > b.maxLen {
		return fmt.Errorf("%w: %d > %d", ErrTooLong, len(p), b.maxLen)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data[:0], p...)
	return nil
}

// Entry binds a value handle to its backing buffer.
type Entry struct {
	Handle uint16
	Buffer *Buffer
}

func (e Entry) MaxLen() int { return e.Buffer.MaxLen() }
func (e Entry) CurLen() int { return e.Buffer.Len() }

// Index resolves value handles to buffers for attributes whose values are not
// part of the database image.
type Index struct {
	entries  []Entry
	byHandle map[uint16]*Buffer
}

// NewIndex builds an index. Handles must be non-zero and unique, and every
// entry needs a buffer.
func NewIndex(entries ...Entry) (*Index, error) {
	idx := &Index{
		entries:  append([]Entry(nil), entries...),
		byHandle: make(map[uint16]*Buffer, len(entries)),
	}
	for _, e := range entries {
		if e.Handle == 0 {
			return nil, ErrHandleZero
		}
		if e.Buffer == nil {
			return nil, fmt.Errorf("0x%04X: %w", e.Handle, ErrNilBuffer)
		}
		if _, ok := idx.byHandle[e.Handle]; ok {
			return nil, fmt.Errorf("0x%04X: %w", e.Handle, ErrDuplicate)
		}
		idx.byHandle[e.Handle] = e.Buffer
	}
	return idx, nil
}

// Lookup returns the buffer backing handle.
func (idx *Index) Lookup(handle uint16) (*Buffer, bool) {
	b, ok := idx.byHandle[handle]
	return b, ok
}

// Entries returns the entries in declaration order.
func (idx *Index) Entries() []Entry {
	return append([]Entry(nil), idx.entries...)
}

// Len returns the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Verify checks that every index handle names a value record of db.
func (idx *Index) Verify(db *Database) error {
	for _, e := range idx.entries {
		r, ok := db.Lookup(e.Handle)
		if !ok || r.Kind != KindValue {
			return fmt.Errorf("0x%04X: %w", e.Handle, ErrNotValueHandle)
		}
	}
	return nil
}
