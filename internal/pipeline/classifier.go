package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// Rule maps input keywords to a classification. All keywords must appear in
// the (lowercased) input for the rule to match.
type Rule struct {
	Keywords   []string
	Kind       string
	Tools      []string
	Parameters map[string]any
	Sequential bool
}

// RuleClassifier is a deterministic keyword classifier. It stands in for an
// external model during tests and local runs: first matching rule wins.
type RuleClassifier struct {
	rules []Rule
}

// NewRuleClassifier creates a classifier from an ordered rule list.
func NewRuleClassifier(rules ...Rule) *RuleClassifier {
	return &RuleClassifier{rules: rules}
}

// Classify matches input against the rule list.
func (c *RuleClassifier) Classify(_ context.Context, input string) (*Classification, error) {
	lowered := strings.ToLower(input)
	for _, rule := range c.rules {
		if matchesAll(lowered, rule.Keywords) {
			return &Classification{
				OperationKind: rule.Kind,
				Parameters:    rule.Parameters,
				RequiredTools: rule.Tools,
				Sequential:    rule.Sequential,
			}, nil
		}
	}
	return nil, fmt.Errorf("no rule matches input %q", input)
}

func matchesAll(input string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, kw := range keywords {
		if !strings.Contains(input, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

var _ Classifier = (*RuleClassifier)(nil)
