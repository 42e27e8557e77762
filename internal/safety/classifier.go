// Package safety screens learner prompts before they reach the model.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/HanTheDev/tutor-gateway/internal/models"
)

type Reason string

const (
	ReasonUnsafeKeyword    Reason = "unsafe_keyword"
	ReasonPersonalContact  Reason = "personal_contact"
	ReasonAgeInappropriate Reason = "age_inappropriate"
	ReasonPromptAttack     Reason = "prompt_attack"
)

type Classifier struct {
	unsafe    *regexp.Regexp
	contact   []*regexp.Regexp
	teenGrade int
	younger   *regexp.Regexp
	injection *regexp.Regexp
}

func NewClassifier(p Policy) (*Classifier, error) {
	c := &Classifier{
		unsafe:    wordList(p.UnsafeKeywords),
		teenGrade: p.TeenGradeThreshold,
		younger:   wordList(p.YoungerLearnerTerms),
		injection: wordList(p.InjectionPhrases),
	}
	for _, pattern := range p.ContactPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("contact pattern %q: %w", pattern, err)
		}
		c.contact = append(c.contact, re)
	}
	return c, nil
}

// Classify runs the checks in order and reports the first match. sc may be nil.
func (c *Classifier) Classify(prompt string, sc *models.StudentContext) (Reason, bool) {
	if matches(c.unsafe, prompt) {
		return ReasonUnsafeKeyword, true
	}
	for _, re := range c.contact {
		if re.MatchString(prompt) {
			return ReasonPersonalContact, true
		}
	}
	if sc != nil && sc.Grade != nil && *sc.Grade < c.teenGrade && matches(c.younger, prompt) {
		return ReasonAgeInappropriate, true
	}
	if matches(c.injection, prompt) {
		return ReasonPromptAttack, true
	}
	return "", false
}

func matches(re *regexp.Regexp, s string) bool {
	return re != nil && re.MatchString(s)
}

// wordList compiles terms into one case-insensitive alternation bounded by
// word edges, so "kill" does not fire on "skill".
func wordList(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
