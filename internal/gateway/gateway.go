// Package gateway mediates tutor requests: throttling, plan and quota gates,
// learner grounding, safety screening and the upstream model call.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/HanTheDev/tutor-gateway/internal/cache"
	"github.com/HanTheDev/tutor-gateway/internal/identity"
	"github.com/HanTheDev/tutor-gateway/internal/llm"
	"github.com/HanTheDev/tutor-gateway/internal/models"
	"github.com/HanTheDev/tutor-gateway/internal/observability"
	"github.com/HanTheDev/tutor-gateway/internal/prompt"
	"github.com/HanTheDev/tutor-gateway/internal/quota"
	"github.com/HanTheDev/tutor-gateway/internal/ratelimit"
	"github.com/HanTheDev/tutor-gateway/internal/safety"
	"github.com/HanTheDev/tutor-gateway/internal/sanitize"
)

const RoleStudent = "student"

// Principal is the caller context derived by the host layer.
type Principal struct {
	UserID    string
	Role      string
	IP        string
	Plan      *models.PlanLimits
	RequestID string
}

type ContextBuilder interface {
	Build(ctx context.Context, studentID string) (*models.StudentContext, error)
}

type ModelClient interface {
	Configured() bool
	Complete(ctx context.Context, messages []models.ChatMessage) (llm.Result, error)
}

type AnswerCache interface {
	Get(ctx context.Context, key string) (cache.Entry, bool)
	Set(ctx context.Context, key string, e cache.Entry)
}

// UsageSink receives one event per terminal outcome. Log must not block.
type UsageSink interface {
	Log(ev models.UsageEvent)
}

type Deps struct {
	IPLimiter      *ratelimit.Limiter
	LearnerLimiter *ratelimit.Limiter
	Ledger         *quota.Ledger
	Identity       *identity.Hasher
	Context        ContextBuilder
	Classifier     *safety.Classifier
	Model          ModelClient

	// Optional.
	Cache   AnswerCache
	Usage   UsageSink
	Metrics *observability.Metrics
	Tracker observability.Tracker
	Log     zerolog.Logger
	Now     func() time.Time
}

type Gateway struct {
	ipLimiter      *ratelimit.Limiter
	learnerLimiter *ratelimit.Limiter
	ledger         *quota.Ledger
	ids            *identity.Hasher
	contexts       ContextBuilder
	classifier     *safety.Classifier
	model          ModelClient
	cache          AnswerCache
	usage          UsageSink
	metrics        *observability.Metrics
	tracker        observability.Tracker
	log            zerolog.Logger
	now            func() time.Time
}

func New(d Deps) (*Gateway, error) {
	switch {
	case d.IPLimiter == nil || d.LearnerLimiter == nil:
		return nil, errors.New("gateway: rate limiters are required")
	case d.Ledger == nil:
		return nil, errors.New("gateway: usage ledger is required")
	case d.Identity == nil:
		return nil, errors.New("gateway: identity hasher is required")
	case d.Context == nil:
		return nil, errors.New("gateway: context builder is required")
	case d.Classifier == nil:
		return nil, errors.New("gateway: safety classifier is required")
	case d.Model == nil:
		return nil, errors.New("gateway: model client is required")
	}

	g := &Gateway{
		ipLimiter:      d.IPLimiter,
		learnerLimiter: d.LearnerLimiter,
		ledger:         d.Ledger,
		ids:            d.Identity,
		contexts:       d.Context,
		classifier:     d.Classifier,
		model:          d.Model,
		cache:          d.Cache,
		usage:          d.Usage,
		metrics:        d.Metrics,
		tracker:        d.Tracker,
		log:            d.Log,
		now:            d.Now,
	}
	if g.tracker == nil {
		g.tracker = observability.NopTracker{}
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// request carries the per-call state between gates.
type request struct {
	body       models.TutorRequest
	mode       models.Mode
	principal  Principal
	learnerKey string
	model      string
}

// Handle runs one tutor request to a terminal Reply or *Error.
func (g *Gateway) Handle(ctx context.Context, body models.TutorRequest, p Principal) (Reply, error) {
	start := g.now()
	req := &request{
		body:       body,
		mode:       body.EffectiveMode(),
		principal:  p,
		learnerKey: g.ids.Learner(p.UserID, p.IP),
	}

	reply, err := g.handle(ctx, req)
	if err != nil {
		gerr := AsError(err)
		g.finishError(req, gerr, g.now().Sub(start))
		return nil, gerr
	}
	g.finishReply(req, reply, g.now().Sub(start))
	return reply, nil
}

func (g *Gateway) handle(ctx context.Context, req *request) (Reply, error) {
	if !g.model.Configured() {
		return nil, newError(KindConfiguration, "The AI tutor is not configured.", nil)
	}

	if err := g.throttle(ctx, g.ipLimiter, g.ids.IP(req.principal.IP)); err != nil {
		return nil, err
	}
	if err := g.throttle(ctx, g.learnerLimiter, req.learnerKey); err != nil {
		return nil, err
	}

	userPrompt := sanitize.Sanitize(req.body.Prompt, sanitize.MaxPromptLen)
	if userPrompt == "" {
		return nil, newError(KindValidation, "A prompt is required.", nil)
	}

	var (
		grounding prompt.Grounding
		sc        *models.StudentContext
		usage     *Usage
	)
	switch req.mode {
	case models.ModeLearning:
		var err error
		if usage, err = g.admitLearner(ctx, req); err != nil {
			return nil, err
		}
		sc, err = g.contexts.Build(ctx, req.principal.UserID)
		if err != nil {
			return nil, newError(KindContextUnavailable, "Unable to load your learning profile right now.", err)
		}
		grounding = prompt.Learning{Context: sc}
	case models.ModeMarketing:
		grounding = prompt.Marketing{Knowledge: req.body.Knowledge}
	default:
		return nil, newError(KindValidation, fmt.Sprintf("Unknown mode %q.", req.mode), nil)
	}

	messages := prompt.Compose(grounding, req.body.SystemPrompt, req.body.Prompt)

	// Classify exactly what the model would see. Redaction only replaces
	// values, so contact-request phrasing still matches.
	if req.mode == models.ModeLearning {
		if reason, hit := g.classifier.Classify(userPrompt, sc); hit {
			return Refusal{
				Reason:  reason,
				Message: safety.RefusalMessage(reason, sc),
				Usage:   usage,
			}, nil
		}
	}

	var cacheKey string
	if g.cache != nil && req.mode == models.ModeMarketing {
		cacheKey = cache.Key(req.body.SystemPrompt, req.body.Knowledge, userPrompt)
		e, ok := g.cache.Get(ctx, cacheKey)
		g.metrics.ObserveCache(ok)
		if ok {
			req.model = e.Model
			return Answer{Message: e.Message, Model: e.Model, Cached: true}, nil
		}
	}

	res, err := g.model.Complete(ctx, messages)
	if err != nil {
		return nil, newError(KindUpstreamUnavailable, unavailableMessage, err)
	}
	req.model = res.Model

	if cacheKey != "" {
		g.cache.Set(ctx, cacheKey, cache.Entry{Message: res.Message, Model: res.Model})
	}

	if usage != nil {
		remaining, err := g.ledger.Record(ctx, req.principal.Plan.TutorDailyLimit, req.learnerKey)
		if err != nil {
			g.log.Warn().Err(err).
				Str("identity", identity.Short(req.learnerKey)).
				Msg("usage ledger record failed")
		} else if remaining != nil {
			usage.Remaining = remaining
		}
	}

	return Answer{Message: res.Message, Model: res.Model, Usage: usage}, nil
}

// throttle fails open when the window store is unreachable.
func (g *Gateway) throttle(ctx context.Context, l *ratelimit.Limiter, key string) error {
	d, err := l.Check(ctx, key)
	if err != nil {
		g.log.Warn().Err(err).
			Str("limiter", l.Name()).
			Str("identity", identity.Short(key)).
			Msg("rate limit store unavailable, allowing request")
		return nil
	}
	if !d.Allowed {
		return newError(KindRateLimit, "Too many tutor requests. Please wait a few minutes and try again.", nil)
	}
	return nil
}

// admitLearner applies the role, plan and quota gates for learning mode.
func (g *Gateway) admitLearner(ctx context.Context, req *request) (*Usage, error) {
	p := req.principal
	if p.Role != RoleStudent || p.UserID == "" {
		return nil, newError(KindAuthorization, "The learning tutor is only available to signed-in students.", nil)
	}

	plan := p.Plan
	if plan == nil || !plan.AIAccess {
		msg := "Your plan does not include the AI tutor. Upgrade to continue."
		if plan != nil && plan.Plan != "" {
			msg = fmt.Sprintf("The %s plan does not include the AI tutor. Upgrade to continue.", plan.Plan)
		}
		return nil, newError(KindPaymentRequired, msg, nil)
	}

	remaining, err := g.ledger.Enforce(ctx, plan.TutorDailyLimit, req.learnerKey, plan.Plan)
	if err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			return nil, newError(KindPaymentRequired,
				fmt.Sprintf("You've used all %d tutor requests for today on the %s plan. Upgrade or come back tomorrow.", exceeded.Limit, plan.Plan),
				err)
		}
		g.log.Warn().Err(err).
			Str("identity", identity.Short(req.learnerKey)).
			Msg("usage ledger unavailable, allowing request")
	}

	return &Usage{Remaining: remaining, Limit: plan.TutorDailyLimit, Plan: plan.Plan}, nil
}

func (g *Gateway) finishReply(req *request, reply Reply, latency time.Duration) {
	outcome := reply.Outcome()
	model := reply.Envelope().Model
	g.log.Info().
		Str("request_id", req.principal.RequestID).
		Str("identity", identity.Short(req.learnerKey)).
		Str("mode", string(req.mode)).
		Str("outcome", outcome).
		Str("model", model).
		Int("status", 200).
		Dur("latency", latency).
		Msg("tutor request")
	g.record(req, outcome, model, 200, latency)
}

func (g *Gateway) finishError(req *request, gerr *Error, latency time.Duration) {
	status := gerr.Status()
	outcome := gerr.Kind.String()

	ev := g.log.Warn()
	if status >= 500 {
		ev = g.log.Error()
	}
	ev.Err(gerr.Err).
		Str("request_id", req.principal.RequestID).
		Str("identity", identity.Short(req.learnerKey)).
		Str("mode", string(req.mode)).
		Str("outcome", outcome).
		Int("status", status).
		Dur("latency", latency).
		Msg(gerr.Message)

	if status >= 500 {
		g.tracker.Report(gerr, map[string]interface{}{
			"request_id": req.principal.RequestID,
			"identity":   identity.Short(req.learnerKey),
			"mode":       string(req.mode),
			"outcome":    outcome,
		})
	}
	g.record(req, outcome, req.model, status, latency)
}

func (g *Gateway) record(req *request, outcome, model string, status int, latency time.Duration) {
	g.metrics.ObserveRequest(string(req.mode), outcome)
	if g.usage == nil {
		return
	}
	g.usage.Log(models.UsageEvent{
		IdentityKey: req.learnerKey,
		Mode:        req.mode,
		Outcome:     outcome,
		Model:       model,
		StatusCode:  status,
		Latency:     latency,
		Timestamp:   g.now(),
	})
}
