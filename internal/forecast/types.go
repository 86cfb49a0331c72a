// Package forecast projects business outcomes of the milestone portfolio under named
// scenarios and detects gaps between goal requirements and planned technical work.
//
// All confidence figures are heuristic scores on a 0-100 scale, not probabilities.
package forecast

import (
	"fmt"
	"time"
)

// Scenario keys used by the weighted blend.
const (
	ScenarioConservative = "conservative"
	ScenarioRealistic    = "realistic"
	ScenarioOptimistic   = "optimistic"
	ScenarioDisruption   = "disruption"
)

// Triple holds the conservative/realistic/optimistic sub-values of one metric.
type Triple struct {
	Conservative float64 `json:"conservative"`
	Realistic    float64 `json:"realistic"`
	Optimistic   float64 `json:"optimistic"`
}

func spread(realistic, width float64) Triple {
	return Triple{
		Conservative: realistic * (1 - width),
		Realistic:    realistic,
		Optimistic:   realistic * (1 + width),
	}
}

// BusinessMetrics are the projected commercial outcomes of a scenario.
type BusinessMetrics struct {
	ProjectedRevenue    Triple `json:"projected_revenue"`
	CustomerAcquisition Triple `json:"customer_acquisition"`
	MarketShare         Triple `json:"market_share"` // percentage points
}

// TechnicalMetrics are the projected delivery outcomes of a scenario.
type TechnicalMetrics struct {
	MilestonesCompleted Triple `json:"milestones_completed"`
}

// Assumption is a qualitative driver of a projection.
type Assumption struct {
	Description   string  `json:"description"`
	Confidence    float64 `json:"confidence"`
	ImpactIfWrong string  `json:"impact_if_wrong"` // low, medium, high, critical
}

// RiskFactor is an observed weakness in the forecast window.
type RiskFactor struct {
	Description string  `json:"description"`
	Probability float64 `json:"probability"` // 0-1
	Impact      string  `json:"impact"`      // low, medium, high, critical
}

// ScenarioForecast is one named what-if projection.
type ScenarioForecast struct {
	Key              string           `json:"key"`
	Name             string           `json:"name"`
	Timeframe        Timeframe        `json:"timeframe"`
	FocusArea        string           `json:"focus_area,omitempty"`
	BusinessMetrics  BusinessMetrics  `json:"business_metrics"`
	TechnicalMetrics TechnicalMetrics `json:"technical_metrics"`
	Confidence       float64          `json:"confidence"`
	RiskFactors      []RiskFactor     `json:"risk_factors"`
	Assumptions      []Assumption     `json:"assumptions"`
	MilestoneIDs     []string         `json:"milestone_ids"`
	Degenerate       bool             `json:"degenerate,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// Timeframe is an inclusive planning window.
type Timeframe struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the window, bounds included.
func (tf Timeframe) Contains(t time.Time) bool {
	return !t.Before(tf.Start) && !t.After(tf.End)
}

// Validate rejects empty or reversed windows.
func (tf Timeframe) Validate() error {
	if tf.Start.IsZero() || tf.End.IsZero() {
		return fmt.Errorf("timeframe needs both start and end")
	}
	if tf.End.Before(tf.Start) {
		return fmt.Errorf("timeframe end %s is before start %s", tf.End.Format(time.DateOnly), tf.Start.Format(time.DateOnly))
	}
	return nil
}

// ParseTimeframe reads a window from YYYY-MM-DD dates. The end date is inclusive of its whole day.
func ParseTimeframe(start, end string) (Timeframe, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return Timeframe{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return Timeframe{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	tf := Timeframe{Start: s, End: e.Add(24*time.Hour - time.Nanosecond)}
	if err := tf.Validate(); err != nil {
		return Timeframe{}, err
	}
	return tf, nil
}
