package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Collection is a JSON array of records stored under one key. Reads never
// fail: a missing, unreadable or corrupt value is an empty collection.
type Collection[T any] struct {
	local *Local
	key   string
	event string
	id    func(T) string
	now   func() time.Time
}

func NewCollection[T any](local *Local, key, event string, id func(T) string) *Collection[T] {
	return &Collection[T]{local: local, key: key, event: event, id: id, now: time.Now}
}

func (c *Collection[T]) Key() string   { return c.key }
func (c *Collection[T]) Event() string { return c.event }

func (c *Collection[T]) GetAll(ctx context.Context) []T {
	raw, ok, err := c.local.GetItem(ctx, c.key)
	if err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("Failed to read local collection")
		return []T{}
	}
	if !ok || raw == "" {
		return []T{}
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("Discarding corrupt local collection")
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// Filter returns the records keep accepts, in stored order.
func (c *Collection[T]) Filter(ctx context.Context, keep func(T) bool) []T {
	out := []T{}
	for _, item := range c.GetAll(ctx) {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Collection[T]) GetByID(ctx context.Context, id string) (T, bool) {
	for _, item := range c.GetAll(ctx) {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Add appends record with createdAt set to now.
func (c *Collection[T]) Add(ctx context.Context, record T) (T, error) {
	stamped, err := merge(record, map[string]any{"createdAt": c.now().UTC()})
	if err != nil {
		return record, err
	}

	items := append(c.GetAll(ctx), stamped)
	if err := c.save(ctx, items); err != nil {
		return record, err
	}
	return stamped, nil
}

// Update shallow-merges fields into the record with the given id and sets
// updatedAt. It reports false when no record has that id.
func (c *Collection[T]) Update(ctx context.Context, id string, fields map[string]any) (T, bool, error) {
	items := c.GetAll(ctx)
	for i, item := range items {
		if c.id(item) != id {
			continue
		}

		patch := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			patch[k] = v
		}
		patch["updatedAt"] = c.now().UTC()

		updated, err := merge(item, patch)
		if err != nil {
			return item, true, err
		}
		items[i] = updated
		if err := c.save(ctx, items); err != nil {
			return item, true, err
		}
		return updated, true, nil
	}

	var zero T
	return zero, false, nil
}

// Delete removes the record with the given id and reports whether one existed.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	items := c.GetAll(ctx)
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if c.id(item) != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, c.save(ctx, kept)
}

// Clear drops the whole collection.
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.local.RemoveItem(ctx, c.key)
}

// Seed stores records only when the collection is empty. It reports whether
// anything was written.
func (c *Collection[T]) Seed(ctx context.Context, records []T) (bool, error) {
	if len(c.GetAll(ctx)) > 0 {
		return false, nil
	}
	return true, c.save(ctx, records)
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.local.SetItem(ctx, c.key, string(b)); err != nil {
		return err
	}
	c.local.bus.Publish(Event{Name: c.event, Key: c.key, At: c.now()})
	return nil
}

// merge overlays fields onto the JSON object form of record.
func merge[T any](record T, fields map[string]any) (T, error) {
	var out T

	b, err := json.Marshal(record)
	if err != nil {
		return out, fmt.Errorf("encode record: %w", err)
	}
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &obj); err != nil {
		return out, fmt.Errorf("record is not a JSON object: %w", err)
	}

	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("encode field %s: %w", k, err)
		}
		obj[k] = raw
	}

	b, err = json.Marshal(obj)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode merged record: %w", err)
	}
	return out, nil
}
