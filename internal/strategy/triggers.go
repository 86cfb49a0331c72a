package strategy

import (
	"cmp"
	"context"
	"slices"
	"time"

	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/trigger"

	"github.com/rs/zerolog/log"
)

// ConfigureTrigger creates a trigger, or replaces the configuration of an existing one
// while keeping its firing history. A missing priority defaults to medium.
func (s *Service) ConfigureTrigger(ctx context.Context, t portfolio.StrategyReviewTrigger) (portfolio.StrategyReviewTrigger, error) {
	now := s.timestamp()
	if t.ID == "" {
		t.ID = portfolio.NewID("trigger")
	}
	if t.Priority == "" {
		t.Priority = portfolio.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return portfolio.StrategyReviewTrigger{}, err
	}

	created := false
	err := s.mutate(ctx, "configure trigger", func(snap *portfolio.Snapshot) error {
		for _, c := range t.Conditions {
			if c.GoalID == "" {
				continue
			}
			if _, err := snap.Goal(c.GoalID); err != nil {
				return err
			}
		}

		t.UpdatedAt = now
		i, err := snap.Trigger(t.ID)
		if err != nil {
			created = true
			t.CreatedAt = now
			t.LastTriggered = nil
			t.TriggerCount = 0
			snap.Triggers = append(snap.Triggers, t)
			return nil
		}
		prev := snap.Triggers[i]
		t.CreatedAt = prev.CreatedAt
		t.LastTriggered = prev.LastTriggered
		t.TriggerCount = prev.TriggerCount
		snap.Triggers[i] = t
		return nil
	})
	if err != nil {
		return portfolio.StrategyReviewTrigger{}, err
	}

	log.Info().Str("trigger", t.ID).Bool("created", created).Int("conditions", len(t.Conditions)).Msg("Trigger configured")
	return t, nil
}

// SetTriggerEnabled switches a trigger on or off.
func (s *Service) SetTriggerEnabled(ctx context.Context, id string, enabled bool) (portfolio.StrategyReviewTrigger, error) {
	var out portfolio.StrategyReviewTrigger
	err := s.mutate(ctx, "toggle trigger", func(snap *portfolio.Snapshot) error {
		i, err := snap.Trigger(id)
		if err != nil {
			return err
		}
		snap.Triggers[i].Enabled = enabled
		snap.Triggers[i].UpdatedAt = s.timestamp()
		out = snap.Triggers[i]
		return nil
	})
	if err != nil {
		return portfolio.StrategyReviewTrigger{}, err
	}
	return out, nil
}

// ListTriggers returns all triggers ordered by id.
func (s *Service) ListTriggers(ctx context.Context) ([]portfolio.StrategyReviewTrigger, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(snap.Triggers)
	if out == nil {
		out = []portfolio.StrategyReviewTrigger{}
	}
	slices.SortFunc(out, func(a, b portfolio.StrategyReviewTrigger) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// EvaluateQuery parameterises a trigger evaluation run.
type EvaluateQuery struct {
	Market *forecast.MarketContext `json:"market,omitempty"`
	// DryRun reports what would fire without persisting triggers or reviews.
	DryRun bool `json:"dry_run,omitempty"`
}

// EvaluationReport lists every trigger outcome and the reviews created.
type EvaluationReport struct {
	EvaluatedAt time.Time                  `json:"evaluated_at"`
	Results     []trigger.Result           `json:"results"`
	Reviews     []portfolio.StrategyReview `json:"reviews"`
	DryRun      bool                       `json:"dry_run,omitempty"`
}

// EvaluateTriggers evaluates every trigger against the current portfolio. Fired triggers
// and their new reviews are saved in one snapshot write.
func (s *Service) EvaluateTriggers(ctx context.Context, q EvaluateQuery) (EvaluationReport, error) {
	if err := q.Market.Validate(); err != nil {
		return EvaluationReport{}, err
	}

	report := EvaluationReport{DryRun: q.DryRun, Reviews: []portfolio.StrategyReview{}}
	evaluate := func(snap *portfolio.Snapshot) error {
		all, _, err := s.correlations(snap)
		if err != nil {
			return err
		}
		gaps, err := s.forecast.IdentifyStrategyGaps(snap.Milestones, snap.Goals, all, q.Market)
		if err != nil {
			return err
		}

		ec := &trigger.EvaluationContext{
			Snapshot:     snap,
			Correlations: s.corr.FilterMeaningful(all),
			Gaps:         gaps,
			Now:          s.timestamp(),
		}
		if q.Market != nil {
			ec.Signals = q.Market.Signals
		}

		results, err := trigger.EvaluateAll(ec, snap.Triggers)
		if err != nil {
			return err
		}
		report.EvaluatedAt = ec.Now
		report.Results = results

		for _, res := range results {
			if !res.Fired {
				continue
			}
			i, err := snap.Trigger(res.TriggerID)
			if err != nil {
				return err
			}
			snap.Triggers[i] = *res.Trigger
			snap.Reviews = append(snap.Reviews, *res.Review)
			report.Reviews = append(report.Reviews, *res.Review)
		}
		return nil
	}

	if q.DryRun {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return EvaluationReport{}, err
		}
		if err := evaluate(snap); err != nil {
			return EvaluationReport{}, err
		}
		return report, nil
	}

	if err := s.mutate(ctx, "evaluate triggers", evaluate); err != nil {
		return EvaluationReport{}, err
	}
	log.Info().Int("triggers", len(report.Results)).Int("reviews", len(report.Reviews)).Msg("Triggers evaluated")
	return report, nil
}

// ListReviews returns reviews, newest first, optionally filtered by status.
func (s *Service) ListReviews(ctx context.Context, status portfolio.ReviewStatus) ([]portfolio.StrategyReview, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := []portfolio.StrategyReview{}
	for _, r := range snap.Reviews {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b portfolio.StrategyReview) int {
		if n := b.CreatedAt.Compare(a.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// StartReview moves a pending review to in-progress.
func (s *Service) StartReview(ctx context.Context, id string) (portfolio.StrategyReview, error) {
	return s.updateReview(ctx, "start review", id, func(r *portfolio.StrategyReview, now time.Time) error {
		return trigger.StartReview(r, now)
	})
}

// ReviewCompletion is the outcome recorded when a review closes.
type ReviewCompletion struct {
	ID        string               `json:"id"`
	Decisions []portfolio.Decision `json:"decisions,omitempty"`
	NextSteps []portfolio.NextStep `json:"next_steps,omitempty"`
	Notes     string               `json:"notes,omitempty"`
}

// CompleteReview records decisions and next steps. Closed reviews cannot be completed again.
func (s *Service) CompleteReview(ctx context.Context, c ReviewCompletion) (portfolio.StrategyReview, error) {
	return s.updateReview(ctx, "complete review", c.ID, func(r *portfolio.StrategyReview, now time.Time) error {
		return trigger.CompleteReview(r, c.Decisions, c.NextSteps, c.Notes, now)
	})
}

// CancelReview closes an open review without decisions.
func (s *Service) CancelReview(ctx context.Context, id, reason string) (portfolio.StrategyReview, error) {
	return s.updateReview(ctx, "cancel review", id, func(r *portfolio.StrategyReview, now time.Time) error {
		return trigger.CancelReview(r, reason, now)
	})
}

func (s *Service) updateReview(ctx context.Context, op, id string, fn func(r *portfolio.StrategyReview, now time.Time) error) (portfolio.StrategyReview, error) {
	var out portfolio.StrategyReview
	err := s.mutate(ctx, op, func(snap *portfolio.Snapshot) error {
		i, err := snap.Review(id)
		if err != nil {
			return err
		}
		r := snap.Reviews[i]
		if err := fn(&r, s.timestamp()); err != nil {
			return err
		}
		snap.Reviews[i] = r
		out = r
		return nil
	})
	if err != nil {
		return portfolio.StrategyReview{}, err
	}

	log.Info().Str("review", out.ID).Str("operation", op).Str("status", string(out.Status)).Msg("Review updated")
	return out, nil
}
