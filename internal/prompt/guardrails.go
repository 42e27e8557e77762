package prompt

import (
	"strings"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

type gradeBand int

const (
	bandUnknown gradeBand = iota
	bandK3
	band48
	band912
)

type subject int

const (
	subjectUnknown subject = iota
	subjectMath
	subjectELA
	subjectScience
	subjectSocialStudies
)

const hintFirst = "Offer a hint or a guiding question before giving a full answer, and only show the complete " +
	"solution after the learner has tried or asks again."

var bandGuidance = map[gradeBand]string{
	bandUnknown: "Match vocabulary and pacing to the learner and check understanding often.",
	bandK3:      "The learner is in grades K-3: use short sentences, simple words, concrete examples and lots of encouragement.",
	band48:      "The learner is in grades 4-8: explain reasoning in clear steps, connect ideas to everyday examples and build independence.",
	band912:     "The learner is in grades 9-12: use precise academic language, encourage justification of each step and connect to real-world applications.",
}

var subjectGuidance = map[subject]string{
	subjectMath:          "For math, have the learner show each step, name the operation or property used and check the answer.",
	subjectELA:           "For reading and writing, point back to the text for evidence and model clear sentence structure.",
	subjectScience:       "For science, tie explanations to observations, cause and effect, and how an experiment would test an idea.",
	subjectSocialStudies: "For social studies, use sources and timelines, and separate facts from opinions.",
}

// Guardrails builds the learning-mode guidance message from the learner's
// grade band and current subject.
func Guardrails(sc *models.StudentContext) string {
	parts := []string{bandGuidance[bandFor(sc)]}
	if s := subjectFor(sc); s != subjectUnknown {
		parts = append(parts, subjectGuidance[s])
	}
	parts = append(parts, hintFirst)
	return "Tutoring guardrails: " + strings.Join(parts, " ")
}

func bandFor(sc *models.StudentContext) gradeBand {
	if sc == nil || sc.Grade == nil {
		return bandUnknown
	}
	switch g := *sc.Grade; {
	case g <= 3:
		return bandK3
	case g <= 8:
		return band48
	default:
		return band912
	}
}

func subjectFor(sc *models.StudentContext) subject {
	if sc == nil {
		return subjectUnknown
	}
	for _, l := range []*models.LessonRef{sc.ActiveLesson, sc.NextLesson} {
		if l == nil {
			continue
		}
		if s := classifySubject(l.Subject); s != subjectUnknown {
			return s
		}
	}
	return subjectUnknown
}

func classifySubject(name string) subject {
	n := strings.ToLower(name)
	switch {
	case n == "":
		return subjectUnknown
	case strings.Contains(n, "math") || strings.Contains(n, "algebra") || strings.Contains(n, "geometry"):
		return subjectMath
	case n == "ela" || strings.Contains(n, "english") || strings.Contains(n, "reading") ||
		strings.Contains(n, "writing") || strings.Contains(n, "language arts"):
		return subjectELA
	case strings.Contains(n, "science") && !strings.Contains(n, "social"):
		return subjectScience
	case strings.Contains(n, "biology") || strings.Contains(n, "chemistry") || strings.Contains(n, "physics"):
		return subjectScience
	case strings.Contains(n, "social") || strings.Contains(n, "history") ||
		strings.Contains(n, "civics") || strings.Contains(n, "geography"):
		return subjectSocialStudies
	}
	return subjectUnknown
}
