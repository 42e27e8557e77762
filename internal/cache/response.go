// Package cache stores marketing-mode tutor answers in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultTTL    = 6 * time.Hour
	defaultPrefix = "tutor:answer:"
)

type Entry struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Stores  int64  `json:"stores"`
	Entries int64  `json:"entries"`
	TTL     string `json:"ttl"`
}

type ResponseCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	log    zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	stores atomic.Int64
}

func NewResponseCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		redis:  client,
		prefix: defaultPrefix,
		ttl:    ttl,
		log:    log,
	}
}

// Key hashes the parts that determine a marketing answer.
func Key(systemPrompt, knowledge, prompt string) string {
	h := sha256.New()
	for _, part := range []string{systemPrompt, knowledge, prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get treats any Redis failure as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (Entry, bool) {
	raw, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("answer cache read failed")
		}
		c.misses.Add(1)
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Message == "" {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

func (c *ResponseCache) Set(ctx context.Context, key string, e Entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("answer cache write failed")
		return
	}
	c.stores.Add(1)
}

func (c *ResponseCache) Stats(ctx context.Context) (Stats, error) {
	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Stores: c.stores.Load(),
		TTL:    c.ttl.String(),
	}

	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return s, err
		}
		s.Entries += int64(len(keys))
		if next == 0 {
			break
		}
		cursor = next
	}
	return s, nil
}

// Flush removes every cached answer and returns how many were dropped.
func (c *ResponseCache) Flush(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.redis.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return removed, nil
}
