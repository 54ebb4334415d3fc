package kvstore

import (
	"context"
	"errors"
	"time"

	"stealthcompany.com/clinicportal/internal/metrics"
)

// Instrumented wraps a Store and records an operation metric per call.
// A missing key is not counted as an error.
type Instrumented struct {
	Store
	backend string
}

func Instrument(s Store, backend string) *Instrumented {
	return &Instrumented{Store: s, backend: backend}
}

func (i *Instrumented) record(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	metrics.RecordStoreOperation(op, i.backend, start, err)
}

func (i *Instrumented) Set(ctx context.Context, key string, value any) error {
	start := time.Now()
	err := i.Store.Set(ctx, key, value)
	i.record("set", start, err)
	return err
}

func (i *Instrumented) Get(ctx context.Context, key string, dest any) error {
	start := time.Now()
	err := i.Store.Get(ctx, key, dest)
	i.record("get", start, err)
	return err
}

func (i *Instrumented) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	start := time.Now()
	entries, err := i.Store.GetByPrefix(ctx, prefix)
	i.record("get_by_prefix", start, err)
	return entries, err
}

func (i *Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, key)
	i.record("delete", start, err)
	return err
}
