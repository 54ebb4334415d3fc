// Package kvstore exposes a schemaless key-value store with prefix scans.
// Key layout is a caller convention; the store treats keys as opaque strings.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrLocked is returned by Locker.Acquire while a live lease exists.
	ErrLocked = errors.New("kvstore: lock is held")
)

// Entry is one key and its raw JSON value.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Store is implemented by every backend. Calls are independent: there is no
// atomicity across multiple Set calls.
type Store interface {
	Set(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, dest any) error
	GetByPrefix(ctx context.Context, prefix string) ([]Entry, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// GetAs loads a single value into a new T.
func GetAs[T any](ctx context.Context, s Store, key string) (*T, error) {
	var v T
	if err := s.Get(ctx, key, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByPrefix decodes every entry under prefix into T. Entries that fail to
// decode are skipped.
func ListByPrefix[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	entries, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Key joins parts with the ':' separator used across the store.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Prefix is Key with a trailing separator, suitable for GetByPrefix.
func Prefix(parts ...string) string {
	return Key(parts...) + ":"
}

func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("value is not valid JSON")
		}
		return v, nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode value: %w", err)
		}
		return b, nil
	}
}

func decode(raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}
