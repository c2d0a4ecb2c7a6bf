// Package store provides the key-addressable presence store. Records
// are flat field maps so that every writer can merge only the fields it
// owns; the tracking session and the lifecycle manager share the same
// officer record and must never clobber each other.
package store

import (
	"context"
)

// Fields is one record's encoded field set. Values are JSON-encoded; in
// an Update a nil value deletes the field.
type Fields map[string][]byte

// Store is a generic key-addressable store with last-write-wins
// semantics per field. There are no cross-key transactions; two writers
// racing on the same field at the same instant is a documented
// limitation, not a merge.
type Store interface {
	// Read returns the record's fields, or nil if the key is absent.
	Read(ctx context.Context, key string) (Fields, error)

	// Write replaces the whole record.
	Write(ctx context.Context, key string, fields Fields) error

	// Update merges the given fields into the record, deleting fields
	// whose value is nil. Fields not mentioned are preserved.
	Update(ctx context.Context, key string, fields Fields) error

	// Remove deletes the record.
	Remove(ctx context.Context, key string) error

	// Keys lists all record keys.
	Keys(ctx context.Context) ([]string, error)

	// Subscribe registers onChange for one key. The callback receives
	// the full record after each write. Returns an unsubscribe func;
	// calling it more than once is a no-op.
	Subscribe(key string, onChange func(key string, fields Fields)) func()

	// SubscribeAll registers onChange for every key.
	SubscribeAll(onChange func(key string, fields Fields)) func()
}

// Clone copies a field set so callers can hold it across writes.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
