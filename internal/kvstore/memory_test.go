package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "appointment:a1", record{ID: "a1", Status: "pending"}))

	got, err := GetAs[record](ctx, s, "appointment:a1")
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)

	require.NoError(t, s.Set(ctx, "appointment:a1", record{ID: "a1", Status: "confirmed"}))
	got, err = GetAs[record](ctx, s, "appointment:a1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)

	require.NoError(t, s.Delete(ctx, "appointment:a1"))
	_, err = GetAs[record](ctx, s, "appointment:a1")
	assert.True(t, errors.Is(err, ErrNotFound))

	// deleting a missing key is fine
	assert.NoError(t, s.Delete(ctx, "appointment:a1"))
}

func TestMemoryStorePrefixScan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "appointment:p1:b", record{ID: "b"}))
	require.NoError(t, s.Set(ctx, "appointment:p1:a", record{ID: "a"}))
	require.NoError(t, s.Set(ctx, "appointment:p10:c", record{ID: "c"}))
	require.NoError(t, s.Set(ctx, "prescription:p1:x", record{ID: "x"}))

	entries, err := s.GetByPrefix(ctx, Prefix("appointment", "p1"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "appointment:p1:a", entries[0].Key)
	assert.Equal(t, "appointment:p1:b", entries[1].Key)

	records, err := ListByPrefix[record](ctx, s, "appointment:")
	require.NoError(t, err)
	assert.Len(t, records, 3)

	empty, err := s.GetByPrefix(ctx, "report:")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListByPrefixSkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "doctor:1", record{ID: "1"}))
	require.NoError(t, s.Set(ctx, "doctor:2", json.RawMessage(`"just a string"`)))

	records, err := ListByPrefix[record](ctx, s, "doctor:")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ID)
}

func TestSetRejectsInvalidRawBytes(t *testing.T) {
	s := NewMemoryStore()
	err := s.Set(context.Background(), "k", []byte("{not json"))
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	assert.ErrorIs(t, s.Set(ctx, "k", 1), context.Canceled)
	assert.ErrorIs(t, s.Ping(ctx), context.Canceled)
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		prefix string
		like   string
		glob   string
	}{
		{prefix: "appointment:", like: "appointment:%", glob: "appointment:*"},
		{prefix: "user_email:a%b", like: `user\_email:a\%b%`, glob: "user_email:a%b*"},
		{prefix: "k[1]?", like: "k[1]?%", glob: `k\[1\]\?*`},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.like, likePrefix(tt.prefix))
			assert.Equal(t, tt.glob, globPrefix(tt.prefix))
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "cassandra"})
	assert.Error(t, err)

	s, err := Open(context.Background(), Config{Driver: DriverMemory})
	require.NoError(t, err)
	require.IsType(t, &Instrumented{}, s)
	assert.IsType(t, &MemoryStore{}, s.(*Instrumented).Store)
}
