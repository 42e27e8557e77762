// Package prompt assembles the ordered chat messages sent upstream.
package prompt

import (
	"fmt"
	"strings"

	"github.com/HanTheDev/tutor-gateway/internal/models"
	"github.com/HanTheDev/tutor-gateway/internal/sanitize"
)

const maxContextLen = 1200

const learningBase = "You are ElevatED's AI tutor for K-12 students. Be warm, encouraging, accurate and concise. " +
	"Teach by asking guiding questions and explaining one step at a time. Keep every reply age-appropriate, " +
	"stay on schoolwork, and never ask for or reveal personal information."

const marketingBase = "You are ElevatED's assistant for families exploring the platform. Answer questions about " +
	"the product, plans and how learning works on ElevatED. Be friendly and brief, and never invent prices, " +
	"features or policies."

// Grounding is the mode-specific input to Compose. Only Learning and
// Marketing implement it.
type Grounding interface {
	Mode() models.Mode
	grounding()
}

// Learning grounds a student request. Context may be nil when no learner
// profile was available.
type Learning struct {
	Context *models.StudentContext
}

func (Learning) Mode() models.Mode { return models.ModeLearning }
func (Learning) grounding()        {}

// Marketing grounds a product question with caller-supplied facts.
type Marketing struct {
	Knowledge string
}

func (Marketing) Mode() models.Mode { return models.ModeMarketing }
func (Marketing) grounding()        {}

// Compose returns messages in fixed order: system base plus override,
// knowledge or learner context, guardrails (learning only), user prompt.
func Compose(g Grounding, override, userPrompt string) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, 4)

	system := baseFor(g)
	if o := sanitize.Sanitize(override, sanitize.MaxOverrideLen); o != "" {
		system += "\n\n" + o
	}
	msgs = append(msgs, systemMsg(system))

	switch g := g.(type) {
	case Marketing:
		if k := sanitize.Sanitize(g.Knowledge, sanitize.MaxKnowledgeLen); k != "" {
			msgs = append(msgs, systemMsg("Use only the provided facts when answering product questions. "+
				"If the facts do not cover the question, say you are not sure and suggest contacting support.\n\nFacts:\n"+k))
		}
	case Learning:
		if g.Context != nil {
			msgs = append(msgs, systemMsg(learnerSummary(g.Context)))
		}
		msgs = append(msgs, systemMsg(Guardrails(g.Context)))
	}

	msgs = append(msgs, models.ChatMessage{Role: "user", Content: sanitize.Sanitize(userPrompt, sanitize.MaxPromptLen)})
	return msgs
}

func baseFor(g Grounding) string {
	if g.Mode() == models.ModeMarketing {
		return marketingBase
	}
	return learningBase
}

func systemMsg(content string) models.ChatMessage {
	return models.ChatMessage{Role: "system", Content: content}
}

func learnerSummary(sc *models.StudentContext) string {
	var b strings.Builder
	b.WriteString("Learner context (use for tailoring, never repeat sensitive data):\n")
	if sc.Grade != nil {
		fmt.Fprintf(&b, "- Grade: %s\n", gradeLabel(*sc.Grade))
	}
	if sc.Level != "" {
		fmt.Fprintf(&b, "- Level: %s\n", sc.Level)
	}
	if len(sc.Strengths) > 0 {
		fmt.Fprintf(&b, "- Strengths: %s\n", strings.Join(sc.Strengths, ", "))
	}
	if len(sc.FocusAreas) > 0 {
		fmt.Fprintf(&b, "- Focus areas: %s\n", strings.Join(sc.FocusAreas, ", "))
	}
	if len(sc.MasteryBySubject) > 0 {
		parts := make([]string, 0, len(sc.MasteryBySubject))
		for _, m := range sc.MasteryBySubject {
			parts = append(parts, fmt.Sprintf("%s %.0f%%", m.Subject, m.Percent))
		}
		fmt.Fprintf(&b, "- Recent mastery: %s\n", strings.Join(parts, ", "))
	}
	if l := sc.ActiveLesson; l != nil {
		fmt.Fprintf(&b, "- Active lesson: %s\n", lessonLabel(l))
	}
	if l := sc.NextLesson; l != nil {
		fmt.Fprintf(&b, "- Next lesson: %s\n", lessonLabel(l))
	}
	return sanitize.Sanitize(b.String(), maxContextLen)
}

func lessonLabel(l *models.LessonRef) string {
	if l.Subject == "" {
		return l.Title
	}
	return l.Title + " (" + l.Subject + ")"
}

func gradeLabel(g int) string {
	if g <= 0 {
		return "K"
	}
	return fmt.Sprintf("%d", g)
}
