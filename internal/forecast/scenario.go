package forecast

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/rules"
	"strategy-mcp/internal/stats"
)

// Engine builds scenario forecasts and gap analyses from a rule set.
type Engine struct {
	rules *rules.Rules
}

// NewEngine returns a forecasting engine.
func NewEngine(r *rules.Rules) *Engine {
	return &Engine{rules: r}
}

// Request is the input to GenerateMultiScenario.
type Request struct {
	Milestones        []portfolio.Milestone
	Goals             []portfolio.Goal
	Correlations      []correlation.ProgressCorrelation
	Timeframe         Timeframe
	FocusArea         string // goal category; empty, "all" or unknown means no filtering
	IncludeDisruption bool
}

// contribution is one milestone's share of a scenario before scenario multipliers.
type contribution struct {
	milestone   portfolio.Milestone
	alignment   float64
	leverage    float64
	probability float64
	customers   float64
	marketShare float64
	correlated  bool
}

// GenerateMultiScenario projects the milestones planned inside the timeframe under every
// configured scenario. The disruption scenario is only produced on request.
func (e *Engine) GenerateMultiScenario(req Request) ([]ScenarioForecast, error) {
	if err := req.Timeframe.Validate(); err != nil {
		return nil, err
	}

	var warnings []string
	focus, focused := portfolio.GoalCategory(req.FocusArea), false
	switch {
	case req.FocusArea == "" || req.FocusArea == "all":
	case portfolio.ValidGoalCategory(focus):
		focused = true
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown focus area %q; forecasting across all goals.", req.FocusArea))
	}

	goalCategory := make(map[string]portfolio.GoalCategory, len(req.Goals))
	for _, g := range req.Goals {
		goalCategory[g.ID] = g.Category
	}

	// 1. Select qualifying milestones and their meaningful correlations
	threshold := e.rules.Correlation.MeaningfulThreshold
	byMilestone := make(map[string][]correlation.ProgressCorrelation)
	for _, c := range req.Correlations {
		if math.Abs(c.CorrelationStrength) < threshold {
			continue
		}
		if focused && goalCategory[c.GoalID] != focus {
			continue
		}
		byMilestone[c.MilestoneID] = append(byMilestone[c.MilestoneID], c)
	}

	var contribs []contribution
	var strengths []float64
	for _, m := range req.Milestones {
		if m.Status == portfolio.StatusCancelled || !req.Timeframe.Contains(m.PlannedDate) {
			continue
		}
		cs := byMilestone[m.ID]
		if focused && len(cs) == 0 {
			continue
		}
		contribs = append(contribs, e.contribute(m, cs))
		for _, c := range cs {
			strengths = append(strengths, math.Abs(c.CorrelationStrength))
		}
	}
	slices.SortFunc(contribs, func(a, b contribution) int {
		return cmp.Compare(a.milestone.ID, b.milestone.ID)
	})

	ids := make([]string, 0, len(contribs))
	for _, c := range contribs {
		ids = append(ids, c.milestone.ID)
	}
	risks := riskFactors(contribs)

	// 2. Apply each scenario
	var out []ScenarioForecast
	for _, sc := range e.rules.Forecast.Scenarios {
		if sc.Optional && !(sc.Key == ScenarioDisruption && req.IncludeDisruption) {
			continue
		}
		f := ScenarioForecast{
			Key:          sc.Key,
			Name:         sc.Name,
			Timeframe:    req.Timeframe,
			MilestoneIDs: slices.Clone(ids),
			RiskFactors:  slices.Clone(risks),
			Warnings:     slices.Clone(warnings),
		}
		if focused {
			f.FocusArea = string(focus)
		}
		for _, a := range sc.Assumptions {
			f.Assumptions = append(f.Assumptions, Assumption(a))
		}

		if len(contribs) == 0 {
			f.Degenerate = true
			f.Confidence = e.rules.Forecast.ConfidenceFloor
			f.Warnings = append(f.Warnings, "No milestones qualify for this timeframe; metrics are zero and confidence is floored.")
			out = append(out, f)
			continue
		}

		var revenue, customers, share, completed float64
		for _, c := range contribs {
			p := math.Min(1, c.probability*sc.Completion)
			revenue += c.milestone.RevenueImplication * sc.Revenue * c.leverage * p
			customers += c.customers * sc.Customers * p
			share += c.marketShare * sc.MarketShare * p
			completed += p
		}

		f.BusinessMetrics = BusinessMetrics{
			ProjectedRevenue:    spread(revenue, sc.Spread),
			CustomerAcquisition: spread(customers, sc.Spread),
			MarketShare:         spread(share, sc.Spread),
		}
		tech := spread(completed, sc.Spread)
		tech.Optimistic = math.Min(tech.Optimistic, float64(len(contribs)))
		f.TechnicalMetrics = TechnicalMetrics{MilestonesCompleted: tech}
		f.Confidence = e.confidence(len(contribs), stats.Mean(strengths), sc.ConfidenceOffset)
		out = append(out, f)
	}

	return out, nil
}

func (e *Engine) contribute(m portfolio.Milestone, cs []correlation.ProgressCorrelation) contribution {
	fr := e.rules.Forecast
	c := contribution{milestone: m, alignment: fr.UncorrelatedAlignment, leverage: fr.UncorrelatedAlignment}

	if len(cs) > 0 {
		c.correlated = true
		var strength, multiplier float64
		for _, pc := range cs {
			strength += pc.CorrelationStrength
			multiplier += pc.MultiplierEffect
		}
		n := float64(len(cs))
		c.alignment = stats.Clamp(strength/n/100, 0, 1)
		c.leverage = c.alignment * (multiplier / n)
	}

	c.probability = fr.CompletionProbability[string(m.Status)]

	c.customers = m.CustomerImpact
	if c.customers == 0 {
		c.customers = m.RevenueImplication / fr.RevenuePerCustomer
	}

	c.marketShare = m.MarketShareImpact
	if c.marketShare == 0 {
		timing, ok := fr.MarketTimingFactor[string(m.MarketTiming)]
		if !ok {
			timing = 1
		}
		c.marketShare = m.StrategicImportance / 100 * fr.MarketShareBase * timing
	}
	return c
}

func (e *Engine) confidence(qualifying int, avgStrength, offset float64) float64 {
	fr := e.rules.Forecast
	n := min(qualifying, fr.ConfidenceMilestoneLimit)
	score := fr.ConfidenceBase + fr.ConfidencePerMilestone*float64(n) + fr.ConfidenceStrengthWeight*avgStrength + offset
	return stats.Clamp(score, fr.ConfidenceFloor, fr.ConfidenceCap)
}

func riskFactors(contribs []contribution) []RiskFactor {
	n := float64(len(contribs))
	if n == 0 {
		return nil
	}

	var delayed, hard, late, uncorrelated int
	for _, c := range contribs {
		m := c.milestone
		if m.Status == portfolio.StatusDelayed {
			delayed++
		}
		if m.Complexity == portfolio.ComplexityHigh || m.Complexity == portfolio.ComplexityVeryHigh {
			hard++
		}
		if m.MarketTiming == portfolio.TimingLate {
			late++
		}
		if !c.correlated || c.alignment < 0.3 {
			uncorrelated++
		}
	}

	var out []RiskFactor
	if delayed > 0 {
		share := float64(delayed) / n
		impact := "medium"
		if share > 0.3 {
			impact = "high"
		}
		out = append(out, RiskFactor{
			Description: fmt.Sprintf("%d of %d milestones in the window are already delayed", delayed, len(contribs)),
			Probability: share,
			Impact:      impact,
		})
	}
	if hard > 0 {
		out = append(out, RiskFactor{
			Description: fmt.Sprintf("%d milestones carry high delivery complexity", hard),
			Probability: 0.5 * float64(hard) / n,
			Impact:      "medium",
		})
	}
	if late > 0 {
		out = append(out, RiskFactor{
			Description: fmt.Sprintf("%d milestones land late to market", late),
			Probability: float64(late) / n,
			Impact:      "high",
		})
	}
	if uncorrelated > 0 {
		out = append(out, RiskFactor{
			Description: fmt.Sprintf("%d milestones have weak or no goal alignment, so their revenue is discounted", uncorrelated),
			Probability: float64(uncorrelated) / n,
			Impact:      "low",
		})
	}
	return out
}
