package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerExclusive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := NewLocker(s, "worker-a", time.Minute)
	b := NewLocker(s, "worker-b", time.Minute)

	require.NoError(t, a.Acquire(ctx, "seed:u1"))
	assert.ErrorIs(t, b.Acquire(ctx, "seed:u1"), ErrLocked)

	// not re-entrant: a second caller sharing the holder is refused too
	assert.ErrorIs(t, a.Acquire(ctx, "seed:u1"), ErrLocked)

	locked, err := b.IsLocked(ctx, "seed:u1")
	require.NoError(t, err)
	assert.True(t, locked)

	// release by a non-holder is ignored
	require.NoError(t, b.Release(ctx, "seed:u1"))
	assert.ErrorIs(t, b.Acquire(ctx, "seed:u1"), ErrLocked)

	require.NoError(t, a.Release(ctx, "seed:u1"))
	assert.NoError(t, b.Acquire(ctx, "seed:u1"))
}

func TestLockerReclaimsExpiredLease(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	a := NewLocker(s, "worker-a", time.Minute)
	a.now = func() time.Time { return now }
	b := NewLocker(s, "worker-b", time.Minute)
	b.now = func() time.Time { return now.Add(2 * time.Minute) }

	require.NoError(t, a.Acquire(ctx, "seed:u1"))
	assert.NoError(t, b.Acquire(ctx, "seed:u1"))

	locked, err := b.IsLocked(ctx, "seed:u1")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestWithLockReleasesOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	l := NewLocker(s, "worker-a", time.Minute)

	boom := errors.New("boom")
	err := l.WithLock(ctx, "job", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	locked, err := l.IsLocked(ctx, "job")
	require.NoError(t, err)
	assert.False(t, locked)
}
