package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Mode string

const (
	ModeLearning  Mode = "learning"
	ModeMarketing Mode = "marketing"
)

// TutorRequest is the POST body accepted by the tutor endpoint.
type TutorRequest struct {
	Prompt       string `json:"prompt" validate:"required"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Mode         Mode   `json:"mode,omitempty" validate:"omitempty,oneof=learning marketing"`
	Knowledge    string `json:"knowledge,omitempty"`
}

// EffectiveMode defaults an omitted mode to learning.
func (r TutorRequest) EffectiveMode() Mode {
	if r.Mode == "" {
		return ModeLearning
	}
	return r.Mode
}

// DailyLimit encodes number | "unlimited". A nil *DailyLimit is JSON null.
type DailyLimit struct {
	Value     int
	Unlimited bool
}

func Limited(n int) *DailyLimit {
	return &DailyLimit{Value: n}
}

func UnlimitedLimit() *DailyLimit {
	return &DailyLimit{Unlimited: true}
}

// Enforced reports the numeric cap, or false when the limit disables enforcement.
func (l *DailyLimit) Enforced() (int, bool) {
	if l == nil || l.Unlimited {
		return 0, false
	}
	return l.Value, true
}

func (l DailyLimit) MarshalJSON() ([]byte, error) {
	if l.Unlimited {
		return []byte(`"unlimited"`), nil
	}
	return json.Marshal(l.Value)
}

func (l *DailyLimit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != "unlimited" {
			return fmt.Errorf("invalid daily limit %q", s)
		}
		*l = DailyLimit{Unlimited: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = DailyLimit{Value: n}
	return nil
}

// PlanLimits is resolved by the billing collaborator for each learning request.
type PlanLimits struct {
	Plan            string      `json:"plan"`
	AIAccess        bool        `json:"aiAccess"`
	TutorDailyLimit *DailyLimit `json:"tutorDailyLimit"`
}

type DailyUsageRecord struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type LessonRef struct {
	Title   string `json:"title"`
	Subject string `json:"subject,omitempty"`
	Status  string `json:"status,omitempty"`
}

type SubjectMastery struct {
	Subject string  `json:"subject"`
	Percent float64 `json:"percent"`
}

// StudentContext is the anonymized grounding summary built per request.
type StudentContext struct {
	LearnerRef       string           `json:"learnerRef"`
	Grade            *int             `json:"grade,omitempty"`
	Level            string           `json:"level,omitempty"`
	Strengths        []string         `json:"strengths"`
	FocusAreas       []string         `json:"focusAreas"`
	ActiveLesson     *LessonRef       `json:"activeLesson,omitempty"`
	NextLesson       *LessonRef       `json:"nextLesson,omitempty"`
	MasteryBySubject []SubjectMastery `json:"masteryBySubject"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TutorResponse is the wire envelope. Usage fields are null outside learning mode.
type TutorResponse struct {
	Message   string      `json:"message"`
	Model     string      `json:"model"`
	Remaining *int        `json:"remaining"`
	Limit     *DailyLimit `json:"limit"`
	Plan      *string     `json:"plan"`
}

type UsageEvent struct {
	IdentityKey string        `json:"identity_key"`
	Mode        Mode          `json:"mode"`
	Outcome     string        `json:"outcome"`
	Model       string        `json:"model"`
	StatusCode  int           `json:"status_code"`
	Latency     time.Duration `json:"latency"`
	Timestamp   time.Time     `json:"timestamp"`
}

type UsageSummary struct {
	Mode     Mode   `json:"mode"`
	Outcome  string `json:"outcome"`
	Requests int64  `json:"requests"`
	AvgMs    int64  `json:"avg_ms"`
}
