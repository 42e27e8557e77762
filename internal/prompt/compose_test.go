package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

func intPtr(n int) *int { return &n }

func studentContext() *models.StudentContext {
	return &models.StudentContext{
		LearnerRef:       "u_abc",
		Grade:            intPtr(10),
		Level:            "advanced",
		Strengths:        []string{"proofs"},
		FocusAreas:       []string{"Chemistry"},
		ActiveLesson:     &models.LessonRef{Title: "Quadratics", Subject: "Math"},
		NextLesson:       &models.LessonRef{Title: "Stoichiometry", Subject: "Chemistry"},
		MasteryBySubject: []models.SubjectMastery{{Subject: "Math", Percent: 82.4}},
	}
}

func TestCompose_LearningOrder(t *testing.T) {
	msgs := Compose(Learning{Context: studentContext()}, "Be extra patient.", "Help me factor x^2 - 9")
	require.Len(t, msgs, 4)

	assert.Equal(t, "system", msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, learningBase))
	assert.True(t, strings.HasSuffix(msgs[0].Content, "Be extra patient."))

	assert.Contains(t, msgs[1].Content, "use for tailoring, never repeat sensitive data")
	assert.Contains(t, msgs[1].Content, "Grade: 10")
	assert.Contains(t, msgs[1].Content, "Math 82%")
	assert.Contains(t, msgs[1].Content, "Active lesson: Quadratics (Math)")
	assert.Contains(t, msgs[1].Content, "Next lesson: Stoichiometry (Chemistry)")
	assert.NotContains(t, msgs[1].Content, "u_abc")

	assert.Contains(t, msgs[2].Content, "grades 9-12")
	assert.Contains(t, msgs[2].Content, "For math")
	assert.Contains(t, msgs[2].Content, "hint")

	assert.Equal(t, models.ChatMessage{Role: "user", Content: "Help me factor x^2 - 9"}, msgs[3])
}

func TestCompose_LearningWithoutContext(t *testing.T) {
	msgs := Compose(Learning{}, "", "what is photosynthesis")
	require.Len(t, msgs, 3)
	assert.Equal(t, learningBase, msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "Tutoring guardrails")
	assert.Equal(t, "user", msgs[2].Role)
}

func TestCompose_MarketingKnowledge(t *testing.T) {
	msgs := Compose(Marketing{Knowledge: "ElevatED costs $9.99/month"}, "", "How much is it?")
	require.Len(t, msgs, 3)
	assert.Equal(t, marketingBase, msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "Use only the provided facts")
	assert.Contains(t, msgs[1].Content, "ElevatED costs $9.99/month")
	assert.Equal(t, "How much is it?", msgs[2].Content)

	for _, m := range msgs {
		assert.NotContains(t, m.Content, "Tutoring guardrails")
	}
}

func TestCompose_MarketingWithoutKnowledge(t *testing.T) {
	msgs := Compose(Marketing{}, "", "hi")
	require.Len(t, msgs, 2)
}

func TestCompose_OverrideAppendedAndCapped(t *testing.T) {
	override := strings.Repeat("x", 2000)
	msgs := Compose(Marketing{}, override, "hi")
	assert.True(t, strings.HasPrefix(msgs[0].Content, marketingBase))
	assert.Equal(t, len(marketingBase)+2+1400, len(msgs[0].Content))
}

func TestCompose_RedactsPIIFromContext(t *testing.T) {
	sc := studentContext()
	sc.Strengths = []string{"emails tutor at kid@example.com", "call 555-867-5309"}
	sc.FocusAreas = []string{"id 1234567890"}

	msgs := Compose(Learning{Context: sc}, "", "my email is me@example.org")
	joined := ""
	for _, m := range msgs {
		joined += m.Content + "\n"
	}
	assert.NotContains(t, joined, "kid@example.com")
	assert.NotContains(t, joined, "555-867-5309")
	assert.NotContains(t, joined, "1234567890")
	assert.NotContains(t, joined, "me@example.org")
	assert.Contains(t, joined, "[redacted]")
}

func TestGuardrails_BandsAndSubjects(t *testing.T) {
	k := Guardrails(&models.StudentContext{Grade: intPtr(0)})
	mid := Guardrails(&models.StudentContext{Grade: intPtr(6)})
	high := Guardrails(&models.StudentContext{Grade: intPtr(11)})
	assert.Contains(t, k, "grades K-3")
	assert.Contains(t, mid, "grades 4-8")
	assert.Contains(t, high, "grades 9-12")

	subjects := map[string]string{
		"English Language Arts": "reading and writing",
		"Life Science":          "For science",
		"Social Studies":        "social studies",
		"World History":         "social studies",
		"Math":                  "For math",
	}
	for name, want := range subjects {
		g := Guardrails(&models.StudentContext{NextLesson: &models.LessonRef{Title: "t", Subject: name}})
		assert.Contains(t, g, want, name)
	}

	none := Guardrails(nil)
	assert.Contains(t, none, hintFirst)
	assert.NotContains(t, none, "For math")
}
