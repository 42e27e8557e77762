package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HanTheDev/tutor-gateway/internal/auth"
	"github.com/HanTheDev/tutor-gateway/internal/cache"
	"github.com/HanTheDev/tutor-gateway/internal/identity"
	"github.com/HanTheDev/tutor-gateway/internal/models"
	"github.com/HanTheDev/tutor-gateway/internal/quota"
)

const secret = "test-secret"

type fakeReports struct {
	from, to time.Time
	rows     []models.UsageSummary
	err      error
}

func (f *fakeReports) UsageSummary(_ context.Context, from, to time.Time) ([]models.UsageSummary, error) {
	f.from, f.to = from, to
	return f.rows, f.err
}

type fakeCache struct{ flushed bool }

func (f *fakeCache) Stats(context.Context) (cache.Stats, error) {
	return cache.Stats{Hits: 4, Misses: 1, Entries: 2, TTL: "6h0m0s"}, nil
}

func (f *fakeCache) Flush(context.Context) (int64, error) {
	f.flushed = true
	return 2, nil
}

type fixture struct {
	router  *mux.Router
	reports *fakeReports
	store   *quota.MemoryStore
	ids     *identity.Hasher
	cache   *fakeCache
}

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	ids, err := identity.NewHasher("salt")
	require.NoError(t, err)

	f := &fixture{
		router:  mux.NewRouter(),
		reports: &fakeReports{rows: []models.UsageSummary{{Mode: models.ModeLearning, Outcome: "answered", Requests: 7, AvgMs: 900}}},
		store:   quota.NewMemoryStore(),
		ids:     ids,
	}
	ledger := quota.NewLedger(f.store).WithClock(func() time.Time { return fixedNow })

	var answers CacheAdmin
	if withCache {
		f.cache = &fakeCache{}
		answers = f.cache
	}
	h := NewAdminHandler(f.reports, ledger, answers, ids, zerolog.Nop())
	h.now = func() time.Time { return fixedNow }
	h.RegisterRoutes(f.router, auth.NewMiddleware(secret))
	return f
}

func (f *fixture) do(t *testing.T, method, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		tok, err := auth.GenerateToken("user-"+role, role, secret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, "GET", "/admin/cache/stats", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, "GET", "/admin/cache/stats", auth.RoleStudent).Code)
	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/admin/cache/stats", auth.RoleAdmin).Code)
}

func TestAdmin_UsageSummaryDefaultsToLastWeek(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, "GET", "/admin/usage/summary", auth.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), f.reports.from)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), f.reports.to)

	var body struct {
		From    string                `json:"from"`
		To      string                `json:"to"`
		Summary []models.UsageSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-03-04", body.From)
	assert.Equal(t, "2026-03-10", body.To)
	require.Len(t, body.Summary, 1)
	assert.Equal(t, int64(7), body.Summary[0].Requests)
}

func TestAdmin_UsageSummaryBadRange(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/admin/usage/summary?from=yesterday", auth.RoleAdmin).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/admin/usage/summary?from=2026-03-05&to=2026-03-01", auth.RoleAdmin).Code)

	f.reports.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, f.do(t, "GET", "/admin/usage/summary", auth.RoleAdmin).Code)
}

func TestAdmin_LearnerUsageAndReset(t *testing.T) {
	f := newFixture(t, false)
	key := f.ids.User("student-9")
	f.store.Seed(key, models.DailyUsageRecord{Date: "2026-03-10", Count: 2})

	rec := f.do(t, "GET", "/admin/usage/student-9", auth.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, key, body["identity"])
	assert.Equal(t, float64(2), body["count"])

	rec = f.do(t, "DELETE", "/admin/usage/"+key, auth.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/admin/usage/"+key, auth.RoleAdmin)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["count"])
}

func TestAdmin_Cache(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(t, "GET", "/admin/cache/stats", auth.RoleAdmin)
	assert.Contains(t, rec.Body.String(), `"hits":4`)

	rec = f.do(t, "DELETE", "/admin/cache", auth.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.cache.flushed)

	disabled := newFixture(t, false)
	rec = disabled.do(t, "GET", "/admin/cache/stats", auth.RoleAdmin)
	assert.JSONEq(t, `{"enabled":false}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, disabled.do(t, "DELETE", "/admin/cache", auth.RoleAdmin).Code)
}
