// Package localstore is the portal's on-device persistence: a string
// key-value Storage, an in-process event Bus and the JSON collections kept
// under fixed keys (prescriptions, medical reports, health timeline).
package localstore

import (
	"context"
	"time"
)

// StorageEvent is published on every write to a Local storage. The event key
// names the storage key that changed.
const StorageEvent = "storage"

// Storage holds string values under string keys.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Local couples a Storage with the Bus that announces its changes.
type Local struct {
	storage Storage
	bus     *Bus
	now     func() time.Time
}

func NewLocal(storage Storage, bus *Bus) *Local {
	if bus == nil {
		bus = NewBus()
	}
	return &Local{storage: storage, bus: bus, now: time.Now}
}

func (l *Local) Bus() *Bus {
	return l.bus
}

func (l *Local) Storage() Storage {
	return l.storage
}

func (l *Local) GetItem(ctx context.Context, key string) (string, bool, error) {
	return l.storage.GetItem(ctx, key)
}

func (l *Local) SetItem(ctx context.Context, key, value string) error {
	if err := l.storage.SetItem(ctx, key, value); err != nil {
		return err
	}
	l.bus.Publish(Event{Name: StorageEvent, Key: key, At: l.now()})
	return nil
}

func (l *Local) RemoveItem(ctx context.Context, key string) error {
	if err := l.storage.RemoveItem(ctx, key); err != nil {
		return err
	}
	l.bus.Publish(Event{Name: StorageEvent, Key: key, At: l.now()})
	return nil
}

func (l *Local) Keys(ctx context.Context) ([]string, error) {
	return l.storage.Keys(ctx)
}

func (l *Local) Close() error {
	return l.storage.Close()
}
