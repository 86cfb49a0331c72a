package forecast

import (
	"fmt"

	"strategy-mcp/internal/rules"
	"strategy-mcp/internal/stats"
)

// WeightedForecast is the blended point forecast across the scenario triad.
type WeightedForecast struct {
	Revenue             float64       `json:"revenue"`
	Customers           float64       `json:"customers"`
	MarketShare         float64       `json:"market_share"`
	MilestonesCompleted float64       `json:"milestones_completed"`
	Weights             rules.Weights `json:"weights"`
	MissingScenarios    []string      `json:"missing_scenarios,omitempty"`
	Degenerate          bool          `json:"degenerate,omitempty"`
	Warnings            []string      `json:"warnings,omitempty"`
}

// Weighted blends the realistic sub-values of the conservative, realistic and optimistic
// scenarios. A missing scenario contributes nothing, so the result under-counts; the gap
// is reported in MissingScenarios rather than as an error.
func Weighted(scenarios []ScenarioForecast, w rules.Weights) WeightedForecast {
	out := WeightedForecast{Weights: w}

	byKey := make(map[string]ScenarioForecast, len(scenarios))
	for _, s := range scenarios {
		byKey[s.Key] = s
	}

	for _, part := range []struct {
		key    string
		weight float64
	}{
		{ScenarioConservative, w.Conservative},
		{ScenarioRealistic, w.Realistic},
		{ScenarioOptimistic, w.Optimistic},
	} {
		s, ok := byKey[part.key]
		if !ok {
			out.MissingScenarios = append(out.MissingScenarios, part.key)
			continue
		}
		out.Revenue += part.weight * s.BusinessMetrics.ProjectedRevenue.Realistic
		out.Customers += part.weight * s.BusinessMetrics.CustomerAcquisition.Realistic
		out.MarketShare += part.weight * s.BusinessMetrics.MarketShare.Realistic
		out.MilestonesCompleted += part.weight * s.TechnicalMetrics.MilestonesCompleted.Realistic
		if s.Degenerate {
			out.Degenerate = true
		}
	}

	if len(out.MissingScenarios) > 0 {
		out.Degenerate = true
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("Missing scenarios %v contribute zero weight; the blend under-counts.", out.MissingScenarios))
	}
	return out
}

// MetricIntervals holds one confidence interval per business metric.
type MetricIntervals struct {
	Revenue     stats.Interval `json:"revenue"`
	Customers   stats.Interval `json:"customers"`
	MarketShare stats.Interval `json:"market_share"`
}

// Intervals computes percentile intervals over every sub-value of every scenario.
func Intervals(scenarios []ScenarioForecast, level float64) (MetricIntervals, error) {
	var revenue, customers, share []float64
	for _, s := range scenarios {
		if s.Degenerate {
			continue
		}
		bm := s.BusinessMetrics
		revenue = append(revenue, bm.ProjectedRevenue.Conservative, bm.ProjectedRevenue.Realistic, bm.ProjectedRevenue.Optimistic)
		customers = append(customers, bm.CustomerAcquisition.Conservative, bm.CustomerAcquisition.Realistic, bm.CustomerAcquisition.Optimistic)
		share = append(share, bm.MarketShare.Conservative, bm.MarketShare.Realistic, bm.MarketShare.Optimistic)
	}

	var out MetricIntervals
	var err error
	if out.Revenue, err = stats.ConfidenceInterval(revenue, level); err != nil {
		return MetricIntervals{}, fmt.Errorf("revenue interval: %w", err)
	}
	if out.Customers, err = stats.ConfidenceInterval(customers, level); err != nil {
		return MetricIntervals{}, fmt.Errorf("customer interval: %w", err)
	}
	if out.MarketShare, err = stats.ConfidenceInterval(share, level); err != nil {
		return MetricIntervals{}, fmt.Errorf("market share interval: %w", err)
	}
	return out, nil
}
