package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tutor")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.LearnerRateLimit)
	assert.Equal(t, 30, cfg.IPRateLimit)
	assert.Equal(t, 5*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Second, cfg.TutorTimeout)
	assert.Equal(t, "memory", cfg.StateBackend)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.ChatCompletionsURL())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tutor")
	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("LEARNER_RATE_LIMIT", "5")
	t.Setenv("AI_TUTOR_TIMEOUT", "10s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.StateBackend)
	assert.Equal(t, 5, cfg.LearnerRateLimit)
	assert.Equal(t, 10*time.Second, cfg.TutorTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestAPIKey_Preference(t *testing.T) {
	cfg := &Config{OpenRouterAPIKey: "or-key"}
	assert.Equal(t, "or-key", cfg.APIKey())
	cfg.TutorAPIKey = "tutor-key"
	assert.Equal(t, "tutor-key", cfg.APIKey())
	assert.Empty(t, (&Config{}).APIKey())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:      "postgres://x",
			LearnerRateLimit: 12,
			IPRateLimit:      30,
			RateLimitWindow:  time.Minute,
			TutorTimeout:     time.Second,
			StateBackend:     "memory",
			JWTSecret:        "secret",
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"missing database":    func(c *Config) { c.DatabaseURL = "" },
		"zero learner limit":  func(c *Config) { c.LearnerRateLimit = 0 },
		"negative window":     func(c *Config) { c.RateLimitWindow = -time.Second },
		"unknown backend":     func(c *Config) { c.StateBackend = "etcd" },
		"default prod secret": func(c *Config) { c.AppEnv = "production" },
		"negative free quota": func(c *Config) { c.FreePlanDailyLimit = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
