// Package storage defines the byte-level persistence contract behind the key store.
//
// Implementations live under internal/infrastructure/persistence; callers may also
// supply their own.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrAlreadyExists is returned by Store when the name is taken.
	ErrAlreadyExists = errors.New("storage: entry already exists")
	// ErrNotFound is returned by Update when the name is absent.
	ErrNotFound = errors.New("storage: entry not found")
)

// Adapter persists opaque records addressed by name in a flat namespace.
//
// Single-name operations must be atomic; nothing else is promised across names.
type Adapter interface {
	// Exists reports whether name is stored.
	Exists(ctx context.Context, name string) (bool, error)
	// Load returns the record for name, or (nil, nil) on a miss.
	Load(ctx context.Context, name string) ([]byte, error)
	// Store creates name. It fails with ErrAlreadyExists if name is present.
	Store(ctx context.Context, name string, data []byte) error
	// Update replaces name. It fails with ErrNotFound if name is absent.
	Update(ctx context.Context, name string, data []byte) error
	// Remove deletes name and reports whether anything was deleted.
	Remove(ctx context.Context, name string) (bool, error)
	// List returns every record in adapter order.
	List(ctx context.Context) ([][]byte, error)
	// Clear deletes every record.
	Clear(ctx context.Context) error
}

// Close closes a if it holds resources.
func Close(a Adapter) error {
	if c, ok := a.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NameDigest returns hex(sha256(name)). Backends that address records by path use it
// so every name maps to a fixed-length, traversal-free component.
func NameDigest(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}
