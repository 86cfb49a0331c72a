package forecast

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/portfolio"
)

// GapType distinguishes the rule that detected a gap.
type GapType string

const (
	GapCapability GapType = "capability"
	GapExecution  GapType = "execution"
)

// Competitive pressure levels of a MarketContext.
const (
	PressureLow    = "low"
	PressureMedium = "medium"
	PressureHigh   = "high"
)

// MarketSignal is an external event with an estimated probability (0-1) and impact (0-100).
type MarketSignal struct {
	Description string  `json:"description"`
	Probability float64 `json:"probability"`
	Impact      float64 `json:"impact"`
}

// Threat is the signal's expected impact.
func (s MarketSignal) Threat() float64 {
	return s.Probability * s.Impact
}

// MarketContext is optional external input to gap analysis and trigger evaluation.
type MarketContext struct {
	CompetitivePressure string         `json:"competitive_pressure,omitempty"`
	Signals             []MarketSignal `json:"signals,omitempty"`
}

// Validate checks pressure level and signal ranges.
func (mc *MarketContext) Validate() error {
	if mc == nil {
		return nil
	}
	var errs portfolio.ValidationErrors
	switch mc.CompetitivePressure {
	case "", PressureLow, PressureMedium, PressureHigh:
	default:
		errs = append(errs, portfolio.ValidationError{Entity: "market context", Field: "competitive_pressure",
			Message: fmt.Sprintf("unknown level %q", mc.CompetitivePressure)})
	}
	for i, s := range mc.Signals {
		if math.IsNaN(s.Probability) || s.Probability < 0 || s.Probability > 1 {
			errs = append(errs, portfolio.ValidationError{Entity: "market context", Field: "signals",
				Message: fmt.Sprintf("entry %d probability must be within 0-1", i)})
		}
		if math.IsNaN(s.Impact) || s.Impact < 0 || s.Impact > 100 {
			errs = append(errs, portfolio.ValidationError{Entity: "market context", Field: "signals",
				Message: fmt.Sprintf("entry %d impact must be within 0-100", i)})
		}
	}
	return errs.OrNil()
}

// EstimatedImpact quantifies what a gap puts at stake.
type EstimatedImpact struct {
	RevenueAtRisk   float64 `json:"revenue_at_risk"`
	OpportunityCost float64 `json:"opportunity_cost"`
}

// StrategyGap is a detected shortfall between what goals need and what is being delivered.
type StrategyGap struct {
	ID                 string                      `json:"id"`
	Type               GapType                     `json:"type"`
	Severity           portfolio.Severity          `json:"severity"`
	Description        string                      `json:"description"`
	Category           portfolio.MilestoneCategory `json:"category"`
	GoalIDs            []string                    `json:"goal_ids,omitempty"`
	MilestoneIDs       []string                    `json:"milestone_ids,omitempty"`
	EstimatedImpact    EstimatedImpact             `json:"estimated_impact"`
	RecommendedActions []string                    `json:"recommended_actions"`
}

// IdentifyStrategyGaps reports capability and execution gaps, most severe first.
func (e *Engine) IdentifyStrategyGaps(milestones []portfolio.Milestone, goals []portfolio.Goal,
	correlations []correlation.ProgressCorrelation, market *MarketContext) ([]StrategyGap, error) {
	if err := market.Validate(); err != nil {
		return nil, err
	}

	byID := make(map[string]portfolio.Milestone, len(milestones))
	for _, m := range milestones {
		byID[m.ID] = m
	}

	var gaps []StrategyGap
	gaps = append(gaps, e.capabilityGaps(milestones, goals, correlations, byID)...)
	gaps = append(gaps, e.executionGaps(milestones, goals, correlations)...)

	escalate := market != nil && market.CompetitivePressure == PressureHigh
	for i := range gaps {
		if escalate {
			gaps[i].Severity = gaps[i].Severity.Escalate()
		}
		e.applyImpact(&gaps[i], byID)
		gaps[i].RecommendedActions = recommend(gaps[i])
	}

	slices.SortFunc(gaps, func(a, b StrategyGap) int {
		if n := cmp.Compare(b.Severity.Rank(), a.Severity.Rank()); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return gaps, nil
}

func (e *Engine) capabilityGaps(milestones []portfolio.Milestone, goals []portfolio.Goal,
	correlations []correlation.ProgressCorrelation, byID map[string]portfolio.Milestone) []StrategyGap {
	threshold := e.rules.Gaps.CapabilityThreshold

	available := make(map[portfolio.MilestoneCategory]bool)
	for _, m := range milestones {
		if m.Status != portfolio.StatusCancelled {
			available[m.Category] = true
		}
	}

	var out []StrategyGap
	for _, g := range goals {
		if !g.Status.Open() {
			continue
		}
		for _, dep := range g.Dependencies {
			if dep.Type != portfolio.DependencyTechnical || dep.Capability == "" {
				continue
			}

			best := 0.0
			var related []string
			for _, c := range correlation.ForGoal(correlations, g.ID) {
				m, ok := byID[c.MilestoneID]
				if !ok || m.Category != dep.Capability || m.Status == portfolio.StatusCancelled {
					continue
				}
				best = math.Max(best, c.CorrelationStrength)
				related = append(related, m.ID)
			}
			if best >= threshold {
				continue
			}

			missing := !available[dep.Capability]
			var sev portfolio.Severity
			var desc string
			switch {
			case missing && dep.Critical:
				sev = portfolio.SeverityCritical
			case missing:
				sev = portfolio.SeveritySignificant
			case dep.Critical:
				sev = portfolio.SeveritySignificant
			default:
				sev = portfolio.SeverityModerate
			}
			if missing {
				desc = fmt.Sprintf("Goal %q depends on %s capability but no %s milestone is planned", g.Title, dep.Capability, dep.Capability)
			} else {
				desc = fmt.Sprintf("Goal %q depends on %s capability but the strongest %s correlation is %.0f (needs %.0f)",
					g.Title, dep.Capability, dep.Capability, best, threshold)
			}

			// Work explicitly linked to the goal is what stalls without the capability.
			for _, m := range milestones {
				if m.LinksGoal(g.ID) && m.Status != portfolio.StatusCancelled && !slices.Contains(related, m.ID) {
					related = append(related, m.ID)
				}
			}
			slices.Sort(related)

			out = append(out, StrategyGap{
				ID:           fmt.Sprintf("gap-capability-%s-%s", g.ID, dep.Capability),
				Type:         GapCapability,
				Severity:     sev,
				Description:  desc,
				Category:     dep.Capability,
				GoalIDs:      []string{g.ID},
				MilestoneIDs: related,
			})
		}
	}
	return out
}

func (e *Engine) executionGaps(milestones []portfolio.Milestone, goals []portfolio.Goal,
	correlations []correlation.ProgressCorrelation) []StrategyGap {
	gr := e.rules.Gaps

	type tally struct {
		total   int
		delayed []string
	}
	counts := make(map[portfolio.MilestoneCategory]*tally)
	for _, m := range milestones {
		if m.Status == portfolio.StatusCancelled {
			continue
		}
		t := counts[m.Category]
		if t == nil {
			t = &tally{}
			counts[m.Category] = t
		}
		t.total++
		if m.Status == portfolio.StatusDelayed {
			t.delayed = append(t.delayed, m.ID)
		}
	}

	openGoals := make(map[string]bool)
	for _, g := range goals {
		if g.Status.Open() {
			openGoals[g.ID] = true
		}
	}

	var out []StrategyGap
	for _, cat := range portfolio.MilestoneCategories {
		t := counts[cat]
		if t == nil || t.total < gr.MinCategorySample {
			continue
		}
		ratio := float64(len(t.delayed)) / float64(t.total)
		if ratio <= gr.DelayRatioThreshold {
			continue
		}

		sev := portfolio.SeverityModerate
		for _, band := range gr.ExecutionBands {
			if ratio >= band.AtLeast {
				sev = band.Severity
				break
			}
		}

		var goalIDs []string
		for _, id := range t.delayed {
			for _, c := range correlation.ForMilestone(correlations, id) {
				if openGoals[c.GoalID] && math.Abs(c.CorrelationStrength) >= e.rules.Correlation.MeaningfulThreshold &&
					!slices.Contains(goalIDs, c.GoalID) {
					goalIDs = append(goalIDs, c.GoalID)
				}
			}
		}
		slices.Sort(goalIDs)
		delayed := slices.Clone(t.delayed)
		slices.Sort(delayed)

		out = append(out, StrategyGap{
			ID:       fmt.Sprintf("gap-execution-%s", cat),
			Type:     GapExecution,
			Severity: sev,
			Description: fmt.Sprintf("%d of %d %s milestones are delayed (%.0f%%)",
				len(t.delayed), t.total, cat, ratio*100),
			Category:     cat,
			GoalIDs:      goalIDs,
			MilestoneIDs: delayed,
		})
	}
	return out
}

func (e *Engine) applyImpact(g *StrategyGap, byID map[string]portfolio.Milestone) {
	var revenue float64
	for _, id := range g.MilestoneIDs {
		revenue += byID[id].RevenueImplication
	}
	factor := e.rules.Gaps.ImpactFactor[string(g.Severity)]
	g.EstimatedImpact.RevenueAtRisk = revenue * factor
	g.EstimatedImpact.OpportunityCost = g.EstimatedImpact.RevenueAtRisk * e.rules.Gaps.OpportunityCostRatio
}

func recommend(g StrategyGap) []string {
	var out []string
	switch g.Type {
	case GapCapability:
		out = append(out,
			fmt.Sprintf("Plan a %s milestone that directly links to the affected goal", g.Category),
			fmt.Sprintf("Re-assess whether existing %s work can be re-scoped to cover the dependency", g.Category),
		)
		if g.Severity.AtLeast(portfolio.SeverityCritical) {
			out = append(out, "Escalate to the strategy owner: a critical dependency has no delivery coverage")
		}
	case GapExecution:
		out = append(out,
			fmt.Sprintf("Review delivery plans for the %d delayed %s milestones", len(g.MilestoneIDs), g.Category),
			"Re-sequence or de-scope delayed work before committing new milestones",
		)
		if g.Severity.AtLeast(portfolio.SeveritySignificant) {
			out = append(out, fmt.Sprintf("Add capacity to %s delivery or cut scope in dependent goals", g.Category))
		}
	}
	return out
}

// CountAtLeast returns how many gaps reach sev and which severities are present.
func CountAtLeast(gaps []StrategyGap, sev portfolio.Severity) (int, []string) {
	n := 0
	seen := make(map[portfolio.Severity]bool)
	var labels []string
	for _, g := range gaps {
		if !seen[g.Severity] {
			seen[g.Severity] = true
			labels = append(labels, string(g.Severity))
		}
		if g.Severity.AtLeast(sev) {
			n++
		}
	}
	return n, labels
}
