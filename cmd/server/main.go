package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/HanTheDev/tutor-gateway/internal/admin"
	"github.com/HanTheDev/tutor-gateway/internal/api"
	"github.com/HanTheDev/tutor-gateway/internal/auth"
	"github.com/HanTheDev/tutor-gateway/internal/cache"
	"github.com/HanTheDev/tutor-gateway/internal/config"
	"github.com/HanTheDev/tutor-gateway/internal/db"
	"github.com/HanTheDev/tutor-gateway/internal/gateway"
	"github.com/HanTheDev/tutor-gateway/internal/identity"
	"github.com/HanTheDev/tutor-gateway/internal/learner"
	"github.com/HanTheDev/tutor-gateway/internal/llm"
	"github.com/HanTheDev/tutor-gateway/internal/observability"
	"github.com/HanTheDev/tutor-gateway/internal/quota"
	"github.com/HanTheDev/tutor-gateway/internal/ratelimit"
	"github.com/HanTheDev/tutor-gateway/internal/safety"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	host, _ := os.Hostname()
	tracker := observability.NewTracker(cfg.RollbarToken, cfg.AppEnv, host, cfg.Build)
	defer tracker.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.NewDB(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	rdb := connectRedis(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	// Rate limiting and daily quota state
	var (
		ipStore, learnerStore ratelimit.WindowStore
		counters              quota.CounterStore
		janitor               []*ratelimit.MemoryStore
	)
	if cfg.StateBackend == "redis" {
		ipStore = ratelimit.NewRedisStore(rdb, "ratelimit:ip:")
		learnerStore = ratelimit.NewRedisStore(rdb, "ratelimit:learner:")
		counters = quota.NewRedisStore(rdb, "usage:")
	} else {
		ipMem, learnerMem := ratelimit.NewMemoryStore(), ratelimit.NewMemoryStore()
		ipStore, learnerStore = ipMem, learnerMem
		janitor = append(janitor, ipMem, learnerMem)
		counters = quota.NewMemoryStore()
	}
	ipLimiter := ratelimit.NewLimiter("ip", ipStore, cfg.IPRateLimit, cfg.RateLimitWindow)
	learnerLimiter := ratelimit.NewLimiter("learner", learnerStore, cfg.LearnerRateLimit, cfg.RateLimitWindow)
	ledger := quota.NewLedger(counters)
	go pruneWindows(ctx, janitor, cfg.RateLimitWindow, log)

	hasher, err := identity.NewHasher(cfg.IdentitySalt)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize identity hasher")
	}
	if cfg.IdentitySalt == "" {
		log.Warn().Msg("IDENTITY_SALT not set, identity keys will change on restart")
	}

	policy, err := safety.LoadPolicy(cfg.SafetyPolicyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load safety policy")
	}
	classifier, err := safety.NewClassifier(policy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid safety policy")
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	model := llm.NewClient(llm.Config{
		Endpoint:      cfg.ChatCompletionsURL(),
		APIKey:        cfg.APIKey(),
		PrimaryModel:  cfg.PrimaryModel,
		FallbackModel: cfg.FallbackModel,
		Referer:       cfg.AppBaseURL,
		Title:         cfg.AppTitle,
		Timeout:       cfg.TutorTimeout,
	}, log.With().Str("component", "llm").Logger(), metrics)
	if !model.Configured() {
		log.Warn().Msg("AI_TUTOR_API_KEY not set, tutor requests will fail until it is configured")
	}

	usage := db.NewUsageSink(database, 512, log.With().Str("component", "usage").Logger())
	defer usage.Close()

	var answers *cache.ResponseCache
	if rdb != nil {
		answers = cache.NewResponseCache(rdb, cfg.MarketingCacheTTL, log.With().Str("component", "cache").Logger())
	}

	deps := gateway.Deps{
		IPLimiter:      ipLimiter,
		LearnerLimiter: learnerLimiter,
		Ledger:         ledger,
		Identity:       hasher,
		Context:        learner.NewBuilder(db.NewLearnerSource(database), hasher.User, log.With().Str("component", "learner").Logger()),
		Classifier:     classifier,
		Model:          model,
		Usage:          usage,
		Metrics:        metrics,
		Tracker:        tracker,
		Log:            log.With().Str("component", "gateway").Logger(),
	}
	if answers != nil {
		deps.Cache = answers
	}
	tutor, err := gateway.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build gateway")
	}

	// Initialize router
	router := mux.NewRouter()
	authMiddleware := auth.NewMiddleware(cfg.JWTSecret)

	apiHandler := api.NewHandler(tutor, db.NewPlanStore(database), cfg.FreePlanDailyLimit, cfg.TrustProxy, log.With().Str("component", "api").Logger())
	apiHandler.RegisterRoutes(router, authMiddleware)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	var cacheAdmin admin.CacheAdmin
	if answers != nil {
		cacheAdmin = answers
	}
	adminHandler := admin.NewAdminHandler(database, ledger, cacheAdmin, hasher, log.With().Str("component", "admin").Logger())
	adminHandler.RegisterRoutes(router, authMiddleware)

	if !cfg.IsProduction() {
		router.HandleFunc("/auth/token", tokenHandler(cfg.JWTSecret)).Methods("POST")
	}

	handler := api.RequestID(api.AccessLog(log)(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", api.RequestIDHeader},
		ExposedHeaders:   []string{api.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)))

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2*cfg.TutorTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.ServerPort).
			Str("state_backend", cfg.StateBackend).
			Bool("answer_cache", answers != nil).
			Msg("tutor gateway starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// connectRedis returns nil when Redis is optional and unreachable.
func connectRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if cfg.StateBackend == "redis" {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		log.Warn().Err(err).Msg("invalid REDIS_URL, answer cache disabled")
		return nil
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cfg.StateBackend == "redis" {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Warn().Err(err).Msg("redis unavailable, answer cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// pruneWindows drops idle keys from in-memory limiter windows.
func pruneWindows(ctx context.Context, stores []*ratelimit.MemoryStore, window time.Duration, log zerolog.Logger) {
	if len(stores) == 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := 0
			for _, s := range stores {
				removed += s.Prune(now, window)
			}
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("pruned idle rate limit windows")
			}
		}
	}
}

// tokenHandler issues tokens for local development; production tokens come
// from the platform's auth service.
func tokenHandler(jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Role == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "user_id and role are required"})
			return
		}

		token, err := auth.GenerateToken(req.UserID, req.Role, jwtSecret, auth.DefaultTokenTTL)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"message": "Failed to generate token"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	}
}
