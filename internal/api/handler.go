// Package api is the HTTP host layer in front of the tutor gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/HanTheDev/tutor-gateway/internal/auth"
	"github.com/HanTheDev/tutor-gateway/internal/gateway"
	"github.com/HanTheDev/tutor-gateway/internal/identity"
	"github.com/HanTheDev/tutor-gateway/internal/models"
)

const maxBodyBytes = 64 << 10

type Tutor interface {
	Handle(ctx context.Context, req models.TutorRequest, p gateway.Principal) (gateway.Reply, error)
}

type PlanResolver interface {
	PlanFor(ctx context.Context, userID string) (*models.PlanLimits, error)
}

type Handler struct {
	tutor      Tutor
	plans      PlanResolver
	freePlan   models.PlanLimits
	validate   *validator.Validate
	trustProxy bool
	log        zerolog.Logger
}

func NewHandler(tutor Tutor, plans PlanResolver, freeDailyLimit int, trustProxy bool, log zerolog.Logger) *Handler {
	return &Handler{
		tutor: tutor,
		plans: plans,
		freePlan: models.PlanLimits{
			Plan:            "free",
			AIAccess:        freeDailyLimit > 0,
			TutorDailyLimit: models.Limited(freeDailyLimit),
		},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		trustProxy: trustProxy,
		log:        log,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router, authMiddleware *auth.Middleware) {
	router.Handle("/api/tutor", authMiddleware.Optional(http.HandlerFunc(h.Tutor))).Methods("POST")
	router.HandleFunc("/health", h.Health).Methods("GET")
}

func (h *Handler) Tutor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req models.TutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body is too large.")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	p := gateway.Principal{
		IP:        identity.ClientIP(r, h.trustProxy),
		RequestID: RequestIDFrom(r.Context()),
	}
	if claims, ok := auth.FromContext(r.Context()); ok {
		p.UserID = claims.UserID
		p.Role = claims.Role
	}
	if req.EffectiveMode() == models.ModeLearning && p.Role == gateway.RoleStudent {
		p.Plan = h.resolvePlan(r.Context(), p.UserID)
	}

	reply, err := h.tutor.Handle(r.Context(), req, p)
	if err != nil {
		gerr := gateway.AsError(err)
		writeError(w, gerr.Status(), gerr.Message)
		return
	}
	writeJSON(w, http.StatusOK, reply.Envelope())
}

// resolvePlan falls back to the free plan when the lookup fails.
func (h *Handler) resolvePlan(ctx context.Context, userID string) *models.PlanLimits {
	free := h.freePlan
	if h.plans == nil {
		return &free
	}
	plan, err := h.plans.PlanFor(ctx, userID)
	if err != nil || plan == nil {
		h.log.Warn().Err(err).
			Str("request_id", RequestIDFrom(ctx)).
			Msg("plan lookup failed, using free plan")
		return &free
	}
	return plan
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Prompt":
			return "A prompt is required."
		case "Mode":
			return "Mode must be learning or marketing."
		}
	}
	return "Invalid request body."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
