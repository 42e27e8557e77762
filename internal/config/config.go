package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL  string `env:"DATABASE_URL"`
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	StateBackend string `env:"STATE_BACKEND" envDefault:"memory"`
	JWTSecret    string `env:"JWT_SECRET" envDefault:"secret"`
	IdentitySalt string `env:"IDENTITY_SALT"`
	TrustProxy   bool   `env:"TRUST_PROXY" envDefault:"false"`

	TutorAPIKey      string        `env:"AI_TUTOR_API_KEY"`
	OpenRouterAPIKey string        `env:"OPENROUTER_API_KEY"`
	TutorBaseURL     string        `env:"AI_TUTOR_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	PrimaryModel     string        `env:"AI_TUTOR_PRIMARY_MODEL" envDefault:"openai/gpt-4o-mini"`
	FallbackModel    string        `env:"AI_TUTOR_FALLBACK_MODEL" envDefault:"meta-llama/llama-3.1-8b-instruct"`
	TutorTimeout     time.Duration `env:"AI_TUTOR_TIMEOUT" envDefault:"30s"`
	AppBaseURL       string        `env:"APP_BASE_URL" envDefault:"http://localhost:5173"`
	AppTitle         string        `env:"APP_TITLE" envDefault:"ElevatED"`

	LearnerRateLimit   int           `env:"LEARNER_RATE_LIMIT" envDefault:"12"`
	IPRateLimit        int           `env:"IP_RATE_LIMIT" envDefault:"30"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"5m"`
	FreePlanDailyLimit int           `env:"FREE_PLAN_DAILY_LIMIT" envDefault:"3"`

	SafetyPolicyPath  string        `env:"SAFETY_POLICY_PATH"`
	MarketingCacheTTL time.Duration `env:"MARKETING_CACHE_TTL" envDefault:"6h"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	RollbarToken       string   `env:"ROLLBAR_TOKEN"`
	Build              string   `env:"BUILD" envDefault:"dev"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.LearnerRateLimit <= 0 || c.IPRateLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.TutorTimeout <= 0 {
		errs = append(errs, errors.New("AI_TUTOR_TIMEOUT must be positive"))
	}
	if c.FreePlanDailyLimit < 0 {
		errs = append(errs, errors.New("FREE_PLAN_DAILY_LIMIT must not be negative"))
	}
	switch c.StateBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("STATE_BACKEND must be memory or redis, got %q", c.StateBackend))
	}
	if c.IsProduction() && c.JWTSecret == "secret" {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

// APIKey prefers AI_TUTOR_API_KEY over OPENROUTER_API_KEY. An empty key is
// reported per request, not at startup.
func (c *Config) APIKey() string {
	if k := strings.TrimSpace(c.TutorAPIKey); k != "" {
		return k
	}
	return strings.TrimSpace(c.OpenRouterAPIKey)
}

func (c *Config) ChatCompletionsURL() string {
	return strings.TrimRight(c.TutorBaseURL, "/") + "/chat/completions"
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
