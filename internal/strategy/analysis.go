package strategy

import (
	"context"
	"fmt"
	"time"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/portfolio"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultHorizonDays is the forecast window used when no end date is given.
const DefaultHorizonDays = 90

// CorrelationQuery narrows AnalyzeCorrelations.
type CorrelationQuery struct {
	MilestoneID string `json:"milestone_id,omitempty"`
	GoalID      string `json:"goal_id,omitempty"`
	IncludeWeak bool   `json:"include_weak,omitempty"`
}

// CorrelationReport lists correlations for one snapshot state.
type CorrelationReport struct {
	Fingerprint  string                            `json:"fingerprint"`
	Total        int                               `json:"total_pairs"`
	Meaningful   int                               `json:"meaningful"`
	Correlations []correlation.ProgressCorrelation `json:"correlations"`
}

// AnalyzeCorrelations scores every milestone-goal pair. Weak pairs (|strength| < 30)
// are dropped unless IncludeWeak is set.
func (s *Service) AnalyzeCorrelations(ctx context.Context, q CorrelationQuery) (CorrelationReport, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return CorrelationReport{}, err
	}
	if q.MilestoneID != "" {
		if _, err := snap.Milestone(q.MilestoneID); err != nil {
			return CorrelationReport{}, err
		}
	}
	if q.GoalID != "" {
		if _, err := snap.Goal(q.GoalID); err != nil {
			return CorrelationReport{}, err
		}
	}

	all, key, err := s.correlations(snap)
	if err != nil {
		return CorrelationReport{}, err
	}
	meaningful := s.corr.FilterMeaningful(all)

	selected := meaningful
	if q.IncludeWeak {
		selected = all
	}
	if q.MilestoneID != "" {
		selected = correlation.ForMilestone(selected, q.MilestoneID)
	}
	if q.GoalID != "" {
		selected = correlation.ForGoal(selected, q.GoalID)
	}
	if selected == nil {
		selected = []correlation.ProgressCorrelation{}
	}

	return CorrelationReport{
		Fingerprint:  key,
		Total:        len(all),
		Meaningful:   len(meaningful),
		Correlations: selected,
	}, nil
}

// ForecastQuery selects the forecast window and scope. Dates are YYYY-MM-DD; an empty
// start means today and an empty end means DefaultHorizonDays after start.
type ForecastQuery struct {
	Start             string `json:"start,omitempty"`
	End               string `json:"end,omitempty"`
	FocusArea         string `json:"focus_area,omitempty"`
	IncludeDisruption bool   `json:"include_disruption,omitempty"`
}

// ForecastReport carries the scenarios, their weighted blend and percentile intervals.
type ForecastReport struct {
	Timeframe forecast.Timeframe          `json:"timeframe"`
	Scenarios []forecast.ScenarioForecast `json:"scenarios"`
	Weighted  forecast.WeightedForecast   `json:"weighted"`
	Intervals forecast.MetricIntervals    `json:"intervals"`
	Warnings  []string                    `json:"warnings,omitempty"`
}

// GenerateForecast projects business outcomes over the requested window.
func (s *Service) GenerateForecast(ctx context.Context, q ForecastQuery) (ForecastReport, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return ForecastReport{}, err
	}
	all, _, err := s.correlations(snap)
	if err != nil {
		return ForecastReport{}, err
	}
	return s.forecastFrom(snap, all, q)
}

func (s *Service) forecastFrom(snap *portfolio.Snapshot, all []correlation.ProgressCorrelation, q ForecastQuery) (ForecastReport, error) {
	tf, err := s.timeframe(q.Start, q.End)
	if err != nil {
		return ForecastReport{}, err
	}

	scenarios, err := s.forecast.GenerateMultiScenario(forecast.Request{
		Milestones:        snap.Milestones,
		Goals:             snap.Goals,
		Correlations:      all,
		Timeframe:         tf,
		FocusArea:         q.FocusArea,
		IncludeDisruption: q.IncludeDisruption,
	})
	if err != nil {
		return ForecastReport{}, err
	}

	report := ForecastReport{
		Timeframe: tf,
		Scenarios: scenarios,
		Weighted:  forecast.Weighted(scenarios, s.rules.Forecast.BlendWeights),
	}
	if report.Intervals, err = forecast.Intervals(scenarios, s.level); err != nil {
		return ForecastReport{}, err
	}

	for _, sc := range scenarios {
		if sc.Key == forecast.ScenarioRealistic {
			report.Warnings = append(report.Warnings, sc.Warnings...)
		}
	}
	report.Warnings = append(report.Warnings, report.Weighted.Warnings...)

	log.Info().
		Str("start", tf.Start.Format(time.DateOnly)).
		Str("end", tf.End.Format(time.DateOnly)).
		Int("scenarios", len(scenarios)).
		Float64("weighted_revenue", report.Weighted.Revenue).
		Msg("Forecast generated")
	return report, nil
}

func (s *Service) timeframe(start, end string) (forecast.Timeframe, error) {
	if start == "" {
		start = s.timestamp().Format(time.DateOnly)
	}
	if end == "" {
		st, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return forecast.Timeframe{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		end = st.AddDate(0, 0, DefaultHorizonDays).Format(time.DateOnly)
	}
	return forecast.ParseTimeframe(start, end)
}

// IdentifyGaps reports capability and execution gaps, most severe first.
func (s *Service) IdentifyGaps(ctx context.Context, market *forecast.MarketContext) ([]forecast.StrategyGap, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	all, _, err := s.correlations(snap)
	if err != nil {
		return nil, err
	}
	return s.gapsFrom(snap, all, market)
}

func (s *Service) gapsFrom(snap *portfolio.Snapshot, all []correlation.ProgressCorrelation, market *forecast.MarketContext) ([]forecast.StrategyGap, error) {
	gaps, err := s.forecast.IdentifyStrategyGaps(snap.Milestones, snap.Goals, all, market)
	if err != nil {
		return nil, err
	}
	if gaps == nil {
		gaps = []forecast.StrategyGap{}
	}
	log.Info().Int("gaps", len(gaps)).Msg("Strategy gaps identified")
	return gaps, nil
}

// AnalyzeQuery combines the inputs of a full analysis.
type AnalyzeQuery struct {
	Forecast ForecastQuery           `json:"forecast"`
	Market   *forecast.MarketContext `json:"market,omitempty"`
}

// GoalHealth summarises one open goal.
type GoalHealth struct {
	GoalID       string  `json:"goal_id"`
	Title        string  `json:"title"`
	Health       float64 `json:"health"`
	Correlations int     `json:"meaningful_correlations"`
}

// Analysis is the combined result of Analyze.
type Analysis struct {
	Fingerprint  string                            `json:"fingerprint"`
	Correlations []correlation.ProgressCorrelation `json:"correlations"`
	Forecast     ForecastReport                    `json:"forecast"`
	Gaps         []forecast.StrategyGap            `json:"gaps"`
	GoalHealth   []GoalHealth                      `json:"goal_health"`
}

// Analyze computes correlations once, then runs forecasting, gap detection and the
// goal health summary concurrently over the same read-only snapshot.
func (s *Service) Analyze(ctx context.Context, q AnalyzeQuery) (Analysis, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Analysis{}, err
	}
	all, key, err := s.correlations(snap)
	if err != nil {
		return Analysis{}, err
	}
	meaningful := s.corr.FilterMeaningful(all)

	out := Analysis{Fingerprint: key, Correlations: meaningful}
	if out.Correlations == nil {
		out.Correlations = []correlation.ProgressCorrelation{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		report, err := s.forecastFrom(snap, all, q.Forecast)
		if err != nil {
			return fmt.Errorf("forecast: %w", err)
		}
		out.Forecast = report
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		gaps, err := s.gapsFrom(snap, all, q.Market)
		if err != nil {
			return fmt.Errorf("gaps: %w", err)
		}
		out.Gaps = gaps
		return nil
	})
	g.Go(func() error {
		out.GoalHealth = goalHealth(snap.Goals, meaningful)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Analysis{}, err
	}
	return out, nil
}

func goalHealth(goals []portfolio.Goal, meaningful []correlation.ProgressCorrelation) []GoalHealth {
	out := []GoalHealth{}
	for _, g := range goals {
		if !g.Status.Open() {
			continue
		}
		out = append(out, GoalHealth{
			GoalID:       g.ID,
			Title:        g.Title,
			Health:       g.Health(),
			Correlations: len(correlation.ForGoal(meaningful, g.ID)),
		})
	}
	return out
}
