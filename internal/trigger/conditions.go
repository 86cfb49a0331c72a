package trigger

import (
	"fmt"
	"math"
	"time"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/stats"
)

// Defaults for milestone-completion conditions that leave their parameters unset.
const (
	DefaultCompletionWindowDays = 7
	DefaultMinImportance        = 70.0
)

// EvaluationContext is the read-only state triggers are evaluated against.
// Correlations should already be filtered to meaningful ones.
type EvaluationContext struct {
	Snapshot     *portfolio.Snapshot
	Correlations []correlation.ProgressCorrelation
	Gaps         []forecast.StrategyGap
	Signals      []forecast.MarketSignal
	Now          time.Time
}

// Extractor reads the value a condition type inspects.
type Extractor func(ec *EvaluationContext, t *portfolio.StrategyReviewTrigger, c portfolio.TriggerCondition) (Observed, error)

var extractors = map[portfolio.ConditionType]Extractor{
	portfolio.ConditionMilestoneCompletion: milestoneCompletion,
	portfolio.ConditionTimeElapsed:         timeElapsed,
	portfolio.ConditionGoalHealth:          goalHealth,
	portfolio.ConditionCorrelationStrength: correlationStrength,
	portfolio.ConditionCompetitiveThreat:   competitiveThreat,
	portfolio.ConditionStrategyGap:         strategyGap,
}

// Extract dispatches to the extractor registered for the condition type.
func Extract(ec *EvaluationContext, t *portfolio.StrategyReviewTrigger, c portfolio.TriggerCondition) (Observed, error) {
	fn, ok := extractors[c.Type]
	if !ok {
		return Observed{}, fmt.Errorf("no extractor for condition type %q", c.Type)
	}
	return fn(ec, t, c)
}

// milestoneCompletion counts important milestones completed within the window.
func milestoneCompletion(ec *EvaluationContext, _ *portfolio.StrategyReviewTrigger, c portfolio.TriggerCondition) (Observed, error) {
	days := c.WithinDays
	if days == 0 {
		days = DefaultCompletionWindowDays
	}
	minImportance := c.MinImportance
	if minImportance == 0 {
		minImportance = DefaultMinImportance
	}
	since := ec.Now.AddDate(0, 0, -days)

	var obs Observed
	for _, m := range ec.Snapshot.Milestones {
		if m.Status != portfolio.StatusCompleted || m.CompletedDate == nil {
			continue
		}
		if m.CompletedDate.Before(since) || m.CompletedDate.After(ec.Now) || m.StrategicImportance < minImportance {
			continue
		}
		obs.Number++
		obs.Labels = append(obs.Labels, string(m.Category))
	}
	return obs, nil
}

// timeElapsed measures days since the last matching conversation, or since the trigger was created.
func timeElapsed(ec *EvaluationContext, t *portfolio.StrategyReviewTrigger, c portfolio.TriggerCondition) (Observed, error) {
	var last time.Time
	for _, conv := range ec.Snapshot.Conversations {
		if c.ConversationType != "" && conv.Type != c.ConversationType {
			continue
		}
		if conv.Timestamp.After(last) {
			last = conv.Timestamp
		}
	}
	if last.IsZero() {
		last = t.CreatedAt
	}
	if last.IsZero() {
		return Observed{Missing: true}, nil
	}

	obs := Observed{Number: ec.Now.Sub(last).Hours() / 24}
	if c.ConversationType != "" {
		obs.Labels = []string{string(c.ConversationType)}
	}
	return obs, nil
}

// goalHealth scores one goal, or averages every open goal. Labels list goals below 50.
func goalHealth(ec *EvaluationContext, _ *portfolio.StrategyReviewTrigger, c portfolio.TriggerCondition) (Observed, error) {
	if c.GoalID != "" {
		i, err := ec.Snapshot.Goal(c.GoalID)
		if err != nil {
			return Observed{}, err
		}
		g := ec.Snapshot.Goals[i]
		return Observed{Number: g.Health(), Labels: []string{string(g.Status)}}, nil
	}

	var scores []float64
	var obs Observed
	for _, g := range ec.Snapshot.Goals {
		if !g.Status.Open() {
			continue
		}
		h := g.Health()
		scores = append(scores, h)
		if h < 50 {
			obs.Labels = append(obs.Labels, g.ID)
		}
	}
	if len(scores) == 0 {
		return Observed{Missing: true}, nil
	}
	obs.Number = stats.Mean(scores)
	return obs, nil
}

// correlationStrength averages absolute strength, optionally for a single goal.
func correlationStrength(ec *EvaluationContext, _ *portfolio.StrategyReviewTrigger, c portfolio.TriggerCondition) (Observed, error) {
	cs := ec.Correlations
	if c.GoalID != "" {
		cs = correlation.ForGoal(cs, c.GoalID)
	}
	if len(cs) == 0 {
		return Observed{Missing: true}, nil
	}
	values := make([]float64, len(cs))
	for i, pc := range cs {
		values[i] = math.Abs(pc.CorrelationStrength)
	}
	return Observed{Number: stats.Mean(values)}, nil
}

// competitiveThreat is the largest probability*impact among market signals.
func competitiveThreat(ec *EvaluationContext, _ *portfolio.StrategyReviewTrigger, _ portfolio.TriggerCondition) (Observed, error) {
	var obs Observed
	for _, s := range ec.Signals {
		obs.Number = math.Max(obs.Number, s.Threat())
		obs.Labels = append(obs.Labels, s.Description)
	}
	return obs, nil
}

// strategyGap counts gaps at or above the condition's severity (minor when unset).
func strategyGap(ec *EvaluationContext, _ *portfolio.StrategyReviewTrigger, c portfolio.TriggerCondition) (Observed, error) {
	sev := c.Severity
	if sev == "" {
		sev = portfolio.SeverityMinor
	}
	n, labels := forecast.CountAtLeast(ec.Gaps, sev)
	return Observed{Number: float64(n), Labels: labels}, nil
}
