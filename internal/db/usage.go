package db

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

func (db *DB) LogUsage(ctx context.Context, ev models.UsageEvent) error {
	query := `
        INSERT INTO tutor_usage_events (identity_key, mode, outcome, model, status_code, latency_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := db.Pool.Exec(ctx, query,
		ev.IdentityKey,
		string(ev.Mode),
		ev.Outcome,
		ev.Model,
		ev.StatusCode,
		ev.Latency.Milliseconds(),
		ev.Timestamp,
	)

	return err
}

// UsageSummary groups events in [from, to) by mode and outcome.
func (db *DB) UsageSummary(ctx context.Context, from, to time.Time) ([]models.UsageSummary, error) {
	query := `
        SELECT mode, outcome, COUNT(*), COALESCE(AVG(latency_ms), 0)::BIGINT
        FROM tutor_usage_events
        WHERE created_at >= $1 AND created_at < $2
        GROUP BY mode, outcome
        ORDER BY mode, outcome
    `

	rows, err := db.Pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []models.UsageSummary{}
	for rows.Next() {
		var s models.UsageSummary
		var mode string
		if err := rows.Scan(&mode, &s.Outcome, &s.Requests, &s.AvgMs); err != nil {
			return nil, err
		}
		s.Mode = models.Mode(mode)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

type UsageWriter interface {
	LogUsage(ctx context.Context, ev models.UsageEvent) error
}

// UsageSink writes events from a buffered channel on a background goroutine.
// When the buffer is full events are dropped rather than blocking a request.
type UsageSink struct {
	writer UsageWriter
	events chan models.UsageEvent
	log    zerolog.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewUsageSink(writer UsageWriter, buffer int, log zerolog.Logger) *UsageSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &UsageSink{
		writer: writer,
		events: make(chan models.UsageEvent, buffer),
		log:    log,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Log drops events that arrive after Close.
func (s *UsageSink) Log(ev models.UsageEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Str("outcome", ev.Outcome).Msg("usage sink full, dropping event")
	}
}

func (s *UsageSink) run() {
	defer s.wg.Done()
	for ev := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.writer.LogUsage(ctx, ev); err != nil {
			s.log.Warn().Err(err).Msg("failed to write usage event")
		}
		cancel()
	}
}

// Close drains buffered events. It is safe to call more than once.
func (s *UsageSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
