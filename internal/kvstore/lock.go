package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// lease is the document stored under lock:{name}.
type lease struct {
	Holder    string    `json:"holder"`
	LockedAt  time.Time `json:"lockedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Locker hands out named leases stored in the same key-value store. It is
// advisory: two holders racing on an empty key can both win, so callers must
// still be idempotent.
type Locker struct {
	store  Store
	holder string
	ttl    time.Duration
	now    func() time.Time
}

// NewLocker creates a locker whose leases expire after ttl.
func NewLocker(store Store, holder string, ttl time.Duration) *Locker {
	return &Locker{
		store:  store,
		holder: holder,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func lockKey(name string) string {
	return Key("lock", name)
}

// Acquire takes the lease for name. An expired lease is taken over. Returns
// ErrLocked while any live lease exists, including one this locker holds.
func (l *Locker) Acquire(ctx context.Context, name string) error {
	var current lease
	err := l.store.Get(ctx, lockKey(name), &current)
	switch {
	case err == nil:
		if l.now().Before(current.ExpiresAt) {
			return ErrLocked
		}
		if current.Holder != l.holder {
			log.Warn().Str("lock", name).Str("previous_holder", current.Holder).Msg("Reclaiming expired lock")
		}
	case errors.Is(err, ErrNotFound):
	default:
		return fmt.Errorf("failed to check lock %s: %w", name, err)
	}

	now := l.now()
	next := lease{Holder: l.holder, LockedAt: now, ExpiresAt: now.Add(l.ttl)}
	if err := l.store.Set(ctx, lockKey(name), next); err != nil {
		return fmt.Errorf("failed to create lock %s: %w", name, err)
	}

	log.Debug().Str("lock", name).Str("holder", l.holder).Msg("Lock acquired")
	return nil
}

// Release drops the lease if this locker still holds it.
func (l *Locker) Release(ctx context.Context, name string) error {
	var current lease
	if err := l.store.Get(ctx, lockKey(name), &current); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check lock %s: %w", name, err)
	}
	if current.Holder != l.holder {
		return nil
	}

	if err := l.store.Delete(ctx, lockKey(name)); err != nil {
		return fmt.Errorf("failed to remove lock %s: %w", name, err)
	}
	log.Debug().Str("lock", name).Str("holder", l.holder).Msg("Lock released")
	return nil
}

// IsLocked reports whether a live lease exists for name.
func (l *Locker) IsLocked(ctx context.Context, name string) (bool, error) {
	var current lease
	if err := l.store.Get(ctx, lockKey(name), &current); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return l.now().Before(current.ExpiresAt), nil
}

// WithLock runs fn while holding the named lease.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := l.Acquire(ctx, name); err != nil {
		return err
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx), name); err != nil {
			log.Error().Err(err).Str("lock", name).Msg("Failed to release lock")
		}
	}()
	return fn(ctx)
}
