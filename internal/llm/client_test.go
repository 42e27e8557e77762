package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

type upstream struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
	reply   func(model string) (int, string)
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.bodies = append(u.bodies, body)
	u.headers = append(u.headers, r.Header.Clone())
	u.mu.Unlock()

	status, payload := u.reply(gjson.GetBytes(body, "model").String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

type recordingObserver struct {
	attempts []string
	results  []bool
}

func (o *recordingObserver) ObserveAttempt(model string, ok bool, _ time.Duration) {
	o.attempts = append(o.attempts, model)
	o.results = append(o.results, ok)
}

func newTestClient(t *testing.T, u *upstream, obs AttemptObserver) *Client {
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		Endpoint:      srv.URL,
		APIKey:        "sk-test",
		PrimaryModel:  "primary-model",
		FallbackModel: "fallback-model",
		Referer:       "https://app.example",
		Title:         "Tutor",
		Timeout:       2 * time.Second,
	}, zerolog.Nop(), obs)
}

var msgs = []models.ChatMessage{
	{Role: "system", Content: "be kind"},
	{Role: "user", Content: "what is 2+2?"},
}

func TestComplete_PrimarySucceeds(t *testing.T) {
	u := &upstream{reply: func(string) (int, string) { return http.StatusOK, completion("  It is 4.  ") }}
	obs := &recordingObserver{}
	c := newTestClient(t, u, obs)

	res, err := c.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "It is 4.", res.Message)
	assert.Equal(t, "primary-model", res.Model)

	require.Len(t, u.bodies, 1)
	body := u.bodies[0]
	assert.Equal(t, "primary-model", gjson.GetBytes(body, "model").String())
	assert.Equal(t, 0.2, gjson.GetBytes(body, "temperature").Float())
	assert.Equal(t, "user", gjson.GetBytes(body, "messages.1.role").String())
	assert.Equal(t, "what is 2+2?", gjson.GetBytes(body, "messages.1.content").String())

	h := u.headers[0]
	assert.Equal(t, "Bearer sk-test", h.Get("Authorization"))
	assert.Equal(t, "https://app.example", h.Get("HTTP-Referer"))
	assert.Equal(t, "Tutor", h.Get("X-Title"))

	assert.Equal(t, []string{"primary-model"}, obs.attempts)
	assert.Equal(t, []bool{true}, obs.results)
}

func TestComplete_FallsBackWithSameMessages(t *testing.T) {
	u := &upstream{reply: func(model string) (int, string) {
		if model == "primary-model" {
			return http.StatusServiceUnavailable, `{"error":"overloaded"}`
		}
		return http.StatusOK, completion("fallback answer")
	}}
	obs := &recordingObserver{}
	c := newTestClient(t, u, obs)

	res, err := c.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", res.Message)
	assert.Equal(t, "fallback-model", res.Model)

	require.Len(t, u.bodies, 2)
	assert.JSONEq(t,
		gjson.GetBytes(u.bodies[0], "messages").Raw,
		gjson.GetBytes(u.bodies[1], "messages").Raw)
	assert.Equal(t, []bool{false, true}, obs.results)
}

func TestComplete_EmptyContentTriggersFallback(t *testing.T) {
	u := &upstream{reply: func(model string) (int, string) {
		if model == "primary-model" {
			return http.StatusOK, completion("   ")
		}
		return http.StatusOK, completion("second try")
	}}
	c := newTestClient(t, u, nil)

	res, err := c.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "fallback-model", res.Model)
}

func TestComplete_BothFail(t *testing.T) {
	u := &upstream{reply: func(string) (int, string) { return http.StatusBadGateway, "bad gateway" }}
	c := newTestClient(t, u, nil)

	_, err := c.Complete(context.Background(), msgs)
	require.Error(t, err)

	var fe *FailoverError
	require.ErrorAs(t, err, &fe)
	var se *StatusError
	require.ErrorAs(t, fe.Primary, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Len(t, u.bodies, 2)
}

func TestComplete_SanitizesOutput(t *testing.T) {
	u := &upstream{reply: func(string) (int, string) {
		return http.StatusOK, completion("Email me at tutor@example.com for more.")
	}}
	c := newTestClient(t, u, nil)

	res, err := c.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "Email me at [redacted] for more.", res.Message)
}

func TestConfigured(t *testing.T) {
	c := NewClient(Config{APIKey: "  "}, zerolog.Nop(), nil)
	assert.False(t, c.Configured())
	c = NewClient(Config{APIKey: "k"}, zerolog.Nop(), nil)
	assert.True(t, c.Configured())
}

func TestCall_SingleAttemptNoFallback(t *testing.T) {
	u := &upstream{reply: func(model string) (int, string) {
		if model == "primary-model" {
			return http.StatusServiceUnavailable, "overloaded"
		}
		return http.StatusOK, completion("direct answer")
	}}
	c := newTestClient(t, u, nil)

	res, err := c.Call(context.Background(), msgs, "other-model")
	require.NoError(t, err)
	assert.Equal(t, "direct answer", res.Message)
	assert.Equal(t, "other-model", res.Model)

	_, err = c.Call(context.Background(), msgs, "primary-model")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Len(t, u.bodies, 2)
}
