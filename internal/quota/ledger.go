// Package quota tracks daily tutor usage against plan limits.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

const dayLayout = "2006-01-02"

// CounterStore keeps one counter per key per UTC day. A counter for any other
// day reads as zero.
type CounterStore interface {
	Get(ctx context.Context, key, day string) (int, error)
	Incr(ctx context.Context, key, day string) (int, error)
	Reset(ctx context.Context, key, day string) error
}

// ExceededError is returned by Enforce when today's usage has reached the limit.
type ExceededError struct {
	Plan  string
	Limit int
	Used  int
}

func (e *ExceededError) Error() string {
	if e.Plan == "" {
		return fmt.Sprintf("daily tutor limit of %d reached", e.Limit)
	}
	return fmt.Sprintf("daily tutor limit of %d reached on the %s plan", e.Limit, e.Plan)
}

type Ledger struct {
	store CounterStore
	now   func() time.Time
}

func NewLedger(store CounterStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) today() string {
	return l.now().UTC().Format(dayLayout)
}

// Enforce returns the remaining allowance without mutating state. A nil or
// unlimited limit disables enforcement and yields nil.
func (l *Ledger) Enforce(ctx context.Context, limit *models.DailyLimit, key, planLabel string) (*int, error) {
	allowance, ok := limit.Enforced()
	if !ok {
		return nil, nil
	}
	used, err := l.store.Get(ctx, key, l.today())
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}
	if used >= allowance {
		return nil, &ExceededError{Plan: planLabel, Limit: allowance, Used: used}
	}
	return remaining(allowance, used), nil
}

// Record counts one use for today and returns the new remaining allowance.
func (l *Ledger) Record(ctx context.Context, limit *models.DailyLimit, key string) (*int, error) {
	allowance, ok := limit.Enforced()
	if !ok {
		return nil, nil
	}
	used, err := l.store.Incr(ctx, key, l.today())
	if err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	return remaining(allowance, used), nil
}

// Usage reports today's record for key.
func (l *Ledger) Usage(ctx context.Context, key string) (models.DailyUsageRecord, error) {
	day := l.today()
	used, err := l.store.Get(ctx, key, day)
	if err != nil {
		return models.DailyUsageRecord{}, err
	}
	return models.DailyUsageRecord{Date: day, Count: used}, nil
}

func (l *Ledger) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key, l.today())
}

func remaining(allowance, used int) *int {
	r := allowance - used
	if r < 0 {
		r = 0
	}
	return &r
}
