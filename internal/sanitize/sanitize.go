// Package sanitize scrubs PII and normalizes text entering or leaving the gateway.
package sanitize

import (
	"regexp"
	"strings"
)

// Redacted replaces any scrubbed span. It contains no digits or '@' so it
// never matches a pattern on a second pass.
const Redacted = "[redacted]"

const (
	MaxPromptLen    = 1200
	MaxKnowledgeLen = 3200
	MaxOverrideLen  = 1400
	MaxOutputLen    = 1600
)

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	digitRunPattern = regexp.MustCompile(`\d{9,}`)
	phonePattern    = regexp.MustCompile(`\+?\(?\d{3}\)?[ \t.-]?\d{3}[ \t.-]?\d{4}`)
)

// Sanitize redacts email, digit-run and phone patterns, trims and collapses
// whitespace per line, drops blank lines and truncates to maxLen characters.
// A non-positive maxLen disables truncation.
func Sanitize(input string, maxLen int) string {
	out := normalize(input)
	out = emailPattern.ReplaceAllString(out, Redacted)
	out = digitRunPattern.ReplaceAllString(out, Redacted)
	out = phonePattern.ReplaceAllString(out, Redacted)

	if maxLen > 0 {
		if runes := []rune(out); len(runes) > maxLen {
			out = string(runes[:maxLen])
		}
	}
	return strings.TrimRightFunc(out, isSpace)
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
