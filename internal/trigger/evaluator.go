package trigger

import (
	"cmp"
	"fmt"
	"slices"

	"strategy-mcp/internal/portfolio"

	"github.com/rs/zerolog/log"
)

// Result is the outcome of evaluating one trigger.
type Result struct {
	TriggerID string                       `json:"trigger_id"`
	Fired     bool                         `json:"fired"`
	Outcomes  []portfolio.ConditionOutcome `json:"outcomes"`
	// Trigger is the updated copy when the trigger fired.
	Trigger *portfolio.StrategyReviewTrigger `json:"trigger,omitempty"`
	Review  *portfolio.StrategyReview        `json:"review,omitempty"`
}

var priorityRank = map[portfolio.Priority]int{
	portfolio.PriorityCritical: 0,
	portfolio.PriorityHigh:     1,
	portfolio.PriorityMedium:   2,
	portfolio.PriorityLow:      3,
}

// Evaluate checks every condition of t. A disabled trigger, or one without conditions,
// never fires. The input trigger is not modified.
func Evaluate(ec *EvaluationContext, t portfolio.StrategyReviewTrigger) (Result, error) {
	res := Result{TriggerID: t.ID}
	if !t.Enabled || len(t.Conditions) == 0 {
		return res, nil
	}

	passed := true
	for i, c := range t.Conditions {
		obs, err := Extract(ec, &t, c)
		if err != nil {
			return Result{}, fmt.Errorf("trigger %s condition %d (%s): %w", t.ID, i, c.Type, err)
		}
		ok, err := Apply(obs, c)
		if err != nil {
			return Result{}, fmt.Errorf("trigger %s condition %d (%s): %w", t.ID, i, c.Type, err)
		}
		res.Outcomes = append(res.Outcomes, portfolio.ConditionOutcome{
			Type:     c.Type,
			Operator: c.Operator,
			Observed: obs.Number,
			Labels:   obs.Labels,
			Passed:   ok,
		})
		if !ok {
			passed = false
		}
	}
	if !passed {
		return res, nil
	}

	fired := t
	now := ec.Now
	fired.LastTriggered = &now
	fired.TriggerCount++
	fired.UpdatedAt = now

	review := NewReview(ec, fired, res.Outcomes)
	res.Fired = true
	res.Trigger = &fired
	res.Review = &review

	log.Info().
		Str("trigger", t.ID).
		Str("review", review.ID).
		Str("priority", string(t.Priority)).
		Int("count", fired.TriggerCount).
		Msg("Strategy review trigger fired")
	return res, nil
}

// EvaluateAll evaluates triggers in priority order, then by id.
func EvaluateAll(ec *EvaluationContext, triggers []portfolio.StrategyReviewTrigger) ([]Result, error) {
	ordered := slices.Clone(triggers)
	slices.SortStableFunc(ordered, func(a, b portfolio.StrategyReviewTrigger) int {
		if n := cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority]); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})

	results := make([]Result, 0, len(ordered))
	for _, t := range ordered {
		res, err := Evaluate(ec, t)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
