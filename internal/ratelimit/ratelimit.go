package ratelimit

import (
	"context"
	"time"
)

const DefaultWindow = 5 * time.Minute

// WindowStore keeps per-key request timestamps. CheckAndRecord purges entries
// older than now-window, appends now and returns the resulting length.
type WindowStore interface {
	CheckAndRecord(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}

type Decision struct {
	Allowed   bool
	Remaining int
	Count     int
}

// Limiter is a sliding-window limiter over a WindowStore. Denied requests are
// still recorded, so a caller hammering past the limit stays limited.
type Limiter struct {
	name   string
	store  WindowStore
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(name string, store WindowStore, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		name:   name,
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Name() string { return l.name }

func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	count, err := l.store.CheckAndRecord(ctx, key, l.now(), l.window)
	if err != nil {
		return Decision{}, err
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.limit,
		Remaining: remaining,
		Count:     count,
	}, nil
}
