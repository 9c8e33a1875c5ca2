// Package kv is the small key-value port the library persists client-side
// state through: offset checkpoints, a cached node identity. Implementations
// are in-memory and file-backed; anything with the same three operations can
// serve.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("kv: not found")

// Store is a flat key-value area. Get returns ErrNotFound for missing keys;
// Delete of a missing key is a no-op.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Put marshals v as JSON under key.
func Put[T any](ctx context.Context, store Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: marshal %s: %w", key, err)
	}
	return store.Put(ctx, key, data)
}

// Get unmarshals the JSON value stored under key.
func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("kv: unmarshal %s: %w", key, err)
	}
	return out, nil
}
