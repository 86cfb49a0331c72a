// Package trigger evaluates strategy review triggers and manages the reviews they create.
//
// Every condition type supplies one extractor that turns the evaluation context into an
// Observed value. Comparison is shared: Apply is the only place operators are interpreted.
package trigger

import (
	"fmt"
	"slices"
	"strings"

	"strategy-mcp/internal/portfolio"
)

// Observed is what an extractor saw. Numeric operators compare Number, text operands
// compare Labels. Missing marks an undefined observation, which never satisfies a condition.
type Observed struct {
	Number  float64
	Labels  []string
	Missing bool
}

// Apply compares an observation against a condition's operand.
func Apply(obs Observed, c portfolio.TriggerCondition) (bool, error) {
	if obs.Missing {
		return false, nil
	}

	switch c.Operator {
	case portfolio.OpEquals:
		if c.Text != "" {
			return slices.ContainsFunc(obs.Labels, func(l string) bool {
				return strings.EqualFold(l, c.Text)
			}), nil
		}
		return obs.Number == c.Value, nil

	case portfolio.OpGreaterThan:
		return obs.Number > c.Value, nil

	case portfolio.OpLessThan:
		return obs.Number < c.Value, nil

	case portfolio.OpBetween:
		if len(c.Values) != 2 {
			return false, fmt.Errorf("between needs exactly two values, got %d", len(c.Values))
		}
		return obs.Number >= c.Values[0] && obs.Number <= c.Values[1], nil

	case portfolio.OpContains:
		if c.Text != "" {
			needle := strings.ToLower(c.Text)
			return slices.ContainsFunc(obs.Labels, func(l string) bool {
				return strings.Contains(strings.ToLower(l), needle)
			}), nil
		}
		return slices.Contains(c.Values, obs.Number), nil
	}

	return false, fmt.Errorf("unknown operator %q", c.Operator)
}
