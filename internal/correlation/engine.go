// Package correlation scores how strongly a technical milestone moves a business goal.
package correlation

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/rules"
)

// MaxStrength bounds the absolute correlation strength.
const MaxStrength = 100.0

// Factor is one additive term of a correlation score.
type Factor struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// ProgressCorrelation links one milestone to one goal. It is always derived, never stored.
type ProgressCorrelation struct {
	MilestoneID         string   `json:"milestone_id"`
	GoalID              string   `json:"goal_id"`
	CorrelationStrength float64  `json:"correlation_strength"`
	ImpactDelay         int      `json:"impact_delay_days"`
	MultiplierEffect    float64  `json:"multiplier_effect"`
	DirectLink          bool     `json:"direct_link"`
	Factors             []Factor `json:"factors"`
}

// Engine computes correlations from a fixed rule set.
type Engine struct {
	rules rules.CorrelationRules
}

// NewEngine returns an engine using the correlation section of r.
func NewEngine(r *rules.Rules) *Engine {
	return &Engine{rules: r.Correlation}
}

// Meaningful reports whether c passes the retention threshold.
func (e *Engine) Meaningful(c ProgressCorrelation) bool {
	return math.Abs(c.CorrelationStrength) >= e.rules.MeaningfulThreshold
}

// Compute scores milestone m against goal g. history holds other milestones used for the
// historical success adjustment; nil skips that term.
func (e *Engine) Compute(m portfolio.Milestone, g portfolio.Goal, history []portfolio.Milestone) (ProgressCorrelation, error) {
	if err := checkInputs(m, g); err != nil {
		return ProgressCorrelation{}, err
	}

	c := ProgressCorrelation{
		MilestoneID:      m.ID,
		GoalID:           g.ID,
		ImpactDelay:      e.rules.DefaultDelayDays,
		MultiplierEffect: e.rules.DefaultMultiplier,
	}
	var strength float64
	add := func(name string, points float64) {
		strength += points
		c.Factors = append(c.Factors, Factor{Name: name, Points: points})
	}

	// 1. Direct link
	if m.LinksGoal(g.ID) {
		c.DirectLink = true
		c.ImpactDelay = e.rules.DirectLink.DelayDays
		c.MultiplierEffect = e.rules.DirectLink.Multiplier
		add("direct-link", e.rules.DirectLink.Points)
	}

	// 2. Category affinity
	affinity, ok := e.rules.AffinityPoints(m.Category, g.Category)
	if !ok {
		return ProgressCorrelation{}, fmt.Errorf("no affinity rule for %s -> %s", m.Category, g.Category)
	}
	add("category-affinity", affinity)

	// 3. Importance alignment
	gap := math.Abs(m.StrategicImportance - g.Confidence)
	add("importance-alignment", e.rules.ImportanceWeight*(100-gap)/100)

	// 4. Historical pattern
	if rate, n := e.completionRate(m, history); n > 0 {
		for _, band := range e.rules.HistoryBands {
			if band.Matches(rate) {
				c.ImpactDelay += band.DelayDays
				c.MultiplierEffect *= band.Multiplier
				add(fmt.Sprintf("history (%d similar, %.0f%% completed)", n, rate*100), band.Points)
				break
			}
		}
	}

	// 5. Domain keywords
	name := strings.ToLower(m.Name)
	for _, bonus := range e.rules.DomainBonuses {
		if bonus.GoalCategory == g.Category && strings.Contains(name, strings.ToLower(bonus.Keyword)) {
			add("keyword:"+bonus.Keyword, bonus.Points)
		}
	}

	c.CorrelationStrength = math.Max(-MaxStrength, math.Min(MaxStrength, strength))
	if c.ImpactDelay < 0 {
		c.ImpactDelay = 0
	}
	if c.MultiplierEffect < 0 {
		c.MultiplierEffect = 0
	}
	return c, nil
}

// completionRate returns the completed share of milestones similar to m and how many were found.
func (e *Engine) completionRate(m portfolio.Milestone, history []portfolio.Milestone) (float64, int) {
	var similar, completed int
	for _, h := range history {
		if h.ID == m.ID || h.Category != m.Category {
			continue
		}
		if math.Abs(h.StrategicImportance-m.StrategicImportance) > e.rules.HistoryImportanceWindow {
			continue
		}
		similar++
		if h.Status == portfolio.StatusCompleted {
			completed++
		}
	}
	if similar == 0 {
		return 0, 0
	}
	return float64(completed) / float64(similar), similar
}

// ComputeAll scores every milestone/goal pair, using milestones as their own history.
// Results are ordered by strength descending, then milestone id and goal id.
func (e *Engine) ComputeAll(milestones []portfolio.Milestone, goals []portfolio.Goal) ([]ProgressCorrelation, error) {
	out := make([]ProgressCorrelation, 0, len(milestones)*len(goals))
	for _, m := range milestones {
		for _, g := range goals {
			c, err := e.Compute(m, g, milestones)
			if err != nil {
				return nil, fmt.Errorf("correlate %s with %s: %w", m.ID, g.ID, err)
			}
			out = append(out, c)
		}
	}
	Sort(out)
	return out, nil
}

// FilterMeaningful keeps correlations whose absolute strength reaches the threshold.
func (e *Engine) FilterMeaningful(all []ProgressCorrelation) []ProgressCorrelation {
	var out []ProgressCorrelation
	for _, c := range all {
		if e.Meaningful(c) {
			out = append(out, c)
		}
	}
	return out
}

// Sort orders correlations deterministically in place.
func Sort(cs []ProgressCorrelation) {
	slices.SortStableFunc(cs, func(a, b ProgressCorrelation) int {
		if n := cmp.Compare(b.CorrelationStrength, a.CorrelationStrength); n != 0 {
			return n
		}
		if n := cmp.Compare(a.MilestoneID, b.MilestoneID); n != 0 {
			return n
		}
		return cmp.Compare(a.GoalID, b.GoalID)
	})
}

// ForGoal returns the correlations that target goalID.
func ForGoal(cs []ProgressCorrelation, goalID string) []ProgressCorrelation {
	var out []ProgressCorrelation
	for _, c := range cs {
		if c.GoalID == goalID {
			out = append(out, c)
		}
	}
	return out
}

// ForMilestone returns the correlations that originate at milestoneID.
func ForMilestone(cs []ProgressCorrelation, milestoneID string) []ProgressCorrelation {
	var out []ProgressCorrelation
	for _, c := range cs {
		if c.MilestoneID == milestoneID {
			out = append(out, c)
		}
	}
	return out
}

func checkInputs(m portfolio.Milestone, g portfolio.Goal) error {
	switch {
	case m.ID == "":
		return fmt.Errorf("milestone id is required")
	case g.ID == "":
		return fmt.Errorf("goal id is required")
	case !portfolio.ValidMilestoneCategory(m.Category):
		return fmt.Errorf("milestone %s: unknown category %q", m.ID, m.Category)
	case !portfolio.ValidGoalCategory(g.Category):
		return fmt.Errorf("goal %s: unknown category %q", g.ID, g.Category)
	case math.IsNaN(m.StrategicImportance) || m.StrategicImportance < 0 || m.StrategicImportance > 100:
		return fmt.Errorf("milestone %s: strategic importance must be within 0-100, got %v", m.ID, m.StrategicImportance)
	case math.IsNaN(g.Confidence) || g.Confidence < 0 || g.Confidence > 100:
		return fmt.Errorf("goal %s: confidence must be within 0-100, got %v", g.ID, g.Confidence)
	}
	return nil
}
