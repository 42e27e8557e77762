package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/HanTheDev/tutor-gateway/internal/auth"
	"github.com/HanTheDev/tutor-gateway/internal/cache"
	"github.com/HanTheDev/tutor-gateway/internal/identity"
	"github.com/HanTheDev/tutor-gateway/internal/models"
)

const dateLayout = "2006-01-02"

type UsageReporter interface {
	UsageSummary(ctx context.Context, from, to time.Time) ([]models.UsageSummary, error)
}

type Ledger interface {
	Usage(ctx context.Context, key string) (models.DailyUsageRecord, error)
	Reset(ctx context.Context, key string) error
}

type CacheAdmin interface {
	Stats(ctx context.Context) (cache.Stats, error)
	Flush(ctx context.Context) (int64, error)
}

type AdminHandler struct {
	reports UsageReporter
	ledger  Ledger
	cache   CacheAdmin
	ids     *identity.Hasher
	log     zerolog.Logger
	now     func() time.Time
}

// NewAdminHandler accepts a nil cache when the marketing cache is disabled.
func NewAdminHandler(reports UsageReporter, ledger Ledger, answers CacheAdmin, ids *identity.Hasher, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		reports: reports,
		ledger:  ledger,
		cache:   answers,
		ids:     ids,
		log:     log,
		now:     time.Now,
	}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router, authMiddleware *auth.Middleware) {
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware.Authenticate, auth.RequireRole(auth.RoleAdmin))

	// Usage
	admin.HandleFunc("/usage/summary", h.GetUsageSummary).Methods("GET")
	admin.HandleFunc("/usage/{identity}", h.GetLearnerUsage).Methods("GET")
	admin.HandleFunc("/usage/{identity}", h.ResetLearnerUsage).Methods("DELETE")

	// Marketing cache
	admin.HandleFunc("/cache/stats", h.GetCacheStats).Methods("GET")
	admin.HandleFunc("/cache", h.FlushCache).Methods("DELETE")
}

// GetUsageSummary defaults to the last seven days. from and to are dates;
// to is inclusive.
func (h *AdminHandler) GetUsageSummary(w http.ResponseWriter, r *http.Request) {
	today := h.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -6)
	to := today

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(dateLayout, v); err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(dateLayout, v); err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	rows, err := h.reports.UsageSummary(r.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		h.log.Error().Err(err).Msg("usage summary query failed")
		writeError(w, http.StatusInternalServerError, "Failed to get usage summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from.Format(dateLayout),
		"to":      to.Format(dateLayout),
		"summary": rows,
	})
}

func (h *AdminHandler) GetLearnerUsage(w http.ResponseWriter, r *http.Request) {
	key := h.identityKey(mux.Vars(r)["identity"])

	rec, err := h.ledger.Usage(r.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("identity", identity.Short(key)).Msg("ledger read failed")
		writeError(w, http.StatusInternalServerError, "Failed to read usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identity": key,
		"date":     rec.Date,
		"count":    rec.Count,
	})
}

func (h *AdminHandler) ResetLearnerUsage(w http.ResponseWriter, r *http.Request) {
	key := h.identityKey(mux.Vars(r)["identity"])

	if err := h.ledger.Reset(r.Context(), key); err != nil {
		h.log.Error().Err(err).Str("identity", identity.Short(key)).Msg("ledger reset failed")
		writeError(w, http.StatusInternalServerError, "Failed to reset usage")
		return
	}

	h.log.Info().Str("identity", identity.Short(key)).Msg("daily usage reset")
	writeJSON(w, http.StatusOK, map[string]string{
		"identity": key,
		"status":   "reset",
	})
}

func (h *AdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
		return
	}

	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("cache stats failed")
		writeError(w, http.StatusInternalServerError, "Failed to get cache stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"stats":   stats,
	})
}

func (h *AdminHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "Marketing cache is disabled")
		return
	}

	removed, err := h.cache.Flush(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("cache flush failed")
		writeError(w, http.StatusInternalServerError, "Failed to flush cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// identityKey accepts an already hashed key or a raw user id.
func (h *AdminHandler) identityKey(raw string) string {
	if strings.HasPrefix(raw, "u_") || strings.HasPrefix(raw, "ip_") {
		return raw
	}
	return h.ids.User(raw)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
