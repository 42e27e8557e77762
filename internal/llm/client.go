// Package llm calls the upstream chat-completions provider with a primary
// model and a single fallback.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/HanTheDev/tutor-gateway/internal/models"
	"github.com/HanTheDev/tutor-gateway/internal/sanitize"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultTemperature = 0.2
	maxErrorSnippet    = 512
)

var ErrEmptyCompletion = errors.New("upstream returned no message content")

type Config struct {
	Endpoint      string
	APIKey        string
	PrimaryModel  string
	FallbackModel string
	Referer       string
	Title         string
	Timeout       time.Duration
}

type Result struct {
	Message string
	Model   string
}

// AttemptObserver receives one call per upstream attempt.
type AttemptObserver interface {
	ObserveAttempt(model string, ok bool, elapsed time.Duration)
}

// StatusError is a non-2xx upstream reply.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// FailoverError reports that both models failed.
type FailoverError struct {
	Primary  error
	Fallback error
}

func (e *FailoverError) Error() string {
	return fmt.Sprintf("primary failed: %v; fallback failed: %v", e.Primary, e.Fallback)
}

func (e *FailoverError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

type Client struct {
	cfg      Config
	hc       *http.Client
	log      zerolog.Logger
	observer AttemptObserver
}

func NewClient(cfg Config, log zerolog.Logger, observer AttemptObserver) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:      cfg,
		hc:       &http.Client{Timeout: cfg.Timeout},
		log:      log,
		observer: observer,
	}
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Complete tries the primary model and, on any error, the fallback model once
// with the same messages.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage) (Result, error) {
	payload, err := buildPayload(messages)
	if err != nil {
		return Result{}, err
	}

	res, primaryErr := c.attempt(ctx, payload, c.cfg.PrimaryModel, "primary")
	if primaryErr == nil {
		return res, nil
	}
	if c.cfg.FallbackModel == "" {
		return Result{}, &FailoverError{Primary: primaryErr, Fallback: errors.New("no fallback model configured")}
	}

	res, fallbackErr := c.attempt(ctx, payload, c.cfg.FallbackModel, "fallback")
	if fallbackErr == nil {
		return res, nil
	}
	return Result{}, &FailoverError{Primary: primaryErr, Fallback: fallbackErr}
}

// Call issues a single attempt against model.
func (c *Client) Call(ctx context.Context, messages []models.ChatMessage, model string) (Result, error) {
	payload, err := buildPayload(messages)
	if err != nil {
		return Result{}, err
	}
	return c.attempt(ctx, payload, model, "direct")
}

func (c *Client) attempt(ctx context.Context, payload []byte, model, role string) (Result, error) {
	start := time.Now()
	res, err := c.call(ctx, payload, model)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer.ObserveAttempt(model, err == nil, elapsed)
	}
	if err != nil {
		c.log.Warn().Err(err).
			Str("model", model).
			Str("attempt", role).
			Dur("elapsed", elapsed).
			Msg("model call failed")
		return Result{}, err
	}
	c.log.Info().
		Str("model", model).
		Str("attempt", role).
		Dur("elapsed", elapsed).
		Msg("model call succeeded")
	return res, nil
}

func (c *Client) call(ctx context.Context, payload []byte, model string) (Result, error) {
	body, err := sjson.SetBytes(payload, "model", model)
	if err != nil {
		return Result{}, fmt.Errorf("set model: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read upstream body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(raw)
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return Result{}, &StatusError{Status: resp.StatusCode, Body: snippet}
	}

	content := gjson.GetBytes(raw, "choices.0.message.content").String()
	message := sanitize.Sanitize(content, sanitize.MaxOutputLen)
	if message == "" {
		return Result{}, ErrEmptyCompletion
	}
	return Result{Message: message, Model: model}, nil
}

func buildPayload(messages []models.ChatMessage) ([]byte, error) {
	payload, err := sjson.SetBytes([]byte(`{}`), "messages", messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	payload, err = sjson.SetBytes(payload, "temperature", DefaultTemperature)
	if err != nil {
		return nil, fmt.Errorf("encode temperature: %w", err)
	}
	return payload, nil
}
