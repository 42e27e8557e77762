package gateway

import (
	"github.com/HanTheDev/tutor-gateway/internal/models"
	"github.com/HanTheDev/tutor-gateway/internal/safety"
)

// GuardrailModel is reported as the model for canned refusals.
const GuardrailModel = "guardrail"

// Usage is attached to learning-mode replies only.
type Usage struct {
	Remaining *int
	Limit     *models.DailyLimit
	Plan      string
}

// Reply is either an Answer or a Refusal.
type Reply interface {
	Envelope() models.TutorResponse
	Outcome() string
	reply()
}

type Answer struct {
	Message string
	Model   string
	Cached  bool
	Usage   *Usage
}

type Refusal struct {
	Reason  safety.Reason
	Message string
	Usage   *Usage
}

func (a Answer) Envelope() models.TutorResponse {
	return envelope(a.Message, a.Model, a.Usage)
}

func (a Answer) Outcome() string {
	if a.Cached {
		return "cached"
	}
	return "answered"
}

func (Answer) reply() {}

func (r Refusal) Envelope() models.TutorResponse {
	return envelope(r.Message, GuardrailModel, r.Usage)
}

func (r Refusal) Outcome() string { return "refused" }

func (Refusal) reply() {}

func envelope(msg, model string, u *Usage) models.TutorResponse {
	resp := models.TutorResponse{Message: msg, Model: model}
	if u != nil {
		plan := u.Plan
		resp.Remaining = u.Remaining
		resp.Limit = u.Limit
		resp.Plan = &plan
	}
	return resp
}
