package repository

import (
	"context"
	"errors"
)

// Package repository contains the key-value store abstraction shared by every
// session of the application. Implementations live in subpackages (memory, sqlstore).

var (
	ErrNotFound        = errors.New("key not found")
	ErrKeyExists       = errors.New("key already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrStoreClosed     = errors.New("store closed")
)

// Entry is a stored value and its write version.
// Version starts at 1 on Create and grows by one on every Update.
type Entry struct {
	Key     string
	Value   string
	Version int64
}

// KeyValueStore is a persistent, string-keyed mapping visible to every session.
// No business logic here, strictly persistence operations.
type KeyValueStore interface {
	// Get returns the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Create stores a new key. It returns ErrKeyExists if the key is already live.
	Create(ctx context.Context, key, value string) (Entry, error)

	// Update replaces the value only if the stored version equals version.
	// It returns ErrVersionConflict on mismatch and ErrNotFound if the key is absent.
	Update(ctx context.Context, key, value string, version int64) (Entry, error)

	// Delete removes a key. It returns nil if the key did not exist.
	Delete(ctx context.Context, key string) error

	// List returns all entries whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
