package safety

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// Policy is the data behind the classifier. Keyword and phrase lists match
// case-insensitively on word boundaries; contact patterns are regular
// expressions.
type Policy struct {
	TeenGradeThreshold  int      `yaml:"teen_grade_threshold"`
	UnsafeKeywords      []string `yaml:"unsafe_keywords"`
	ContactPatterns     []string `yaml:"contact_patterns"`
	YoungerLearnerTerms []string `yaml:"younger_learner_terms"`
	InjectionPhrases    []string `yaml:"injection_phrases"`
}

func DefaultPolicy() Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded safety policy: %v", err))
	}
	return p
}

func ParsePolicy(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse safety policy: %w", err)
	}
	if p.TeenGradeThreshold <= 0 {
		p.TeenGradeThreshold = 13
	}
	return p, nil
}

// LoadPolicy reads a policy file, or returns the built-in policy when path is empty.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read safety policy: %w", err)
	}
	return ParsePolicy(data)
}
