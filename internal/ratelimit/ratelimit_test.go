package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
}

func newTestRedisStore(t *testing.T) *RedisStore {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "test:")
}

func stores(t *testing.T) map[string]WindowStore {
	return map[string]WindowStore{
		"memory": NewMemoryStore(),
		"redis":  newTestRedisStore(t),
	}
}

func TestLimiter_DeniesAfterLimit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()
			l := NewLimiter("learner", store, 12, 5*time.Minute).WithClock(clock.Now)

			for i := 1; i <= 12; i++ {
				d, err := l.Check(ctx, "k1")
				require.NoError(t, err)
				assert.True(t, d.Allowed, "request %d", i)
				assert.Equal(t, 12-i, d.Remaining)
				clock.Advance(time.Second)
			}

			d, err := l.Check(ctx, "k1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 0, d.Remaining)
			assert.Equal(t, 13, d.Count)
		})
	}
}

func TestLimiter_WindowRolls(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newClock()
			l := NewLimiter("ip", store, 2, time.Minute).WithClock(clock.Now)

			for i := 0; i < 3; i++ {
				_, err := l.Check(ctx, "k")
				require.NoError(t, err)
			}
			d, err := l.Check(ctx, "k")
			require.NoError(t, err)
			assert.False(t, d.Allowed)

			clock.Advance(time.Minute + time.Millisecond)
			d, err = l.Check(ctx, "k")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, 1, d.Count)
		})
	}
}

func TestLimiter_KeysIndependent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := NewLimiter("learner", store, 1, time.Minute)

			d, err := l.Check(ctx, "a")
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			d, err = l.Check(ctx, "b")
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			d, err = l.Check(ctx, "a")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
		})
	}
}

func TestMemoryStore_Prune(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	_, _ = s.CheckAndRecord(context.Background(), "old", now.Add(-10*time.Minute), 5*time.Minute)
	_, _ = s.CheckAndRecord(context.Background(), "fresh", now, 5*time.Minute)

	removed := s.Prune(now, 5*time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}
