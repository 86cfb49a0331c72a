package mcp

import (
	"context"
	"fmt"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/strategy"
)

func (s *Server) handleConfigureTrigger(ctx context.Context, a configureTriggerArgs) (ResponseEnvelope, error) {
	enabled := true
	if a.Enabled != nil {
		enabled = *a.Enabled
	}

	t, err := s.svc.ConfigureTrigger(ctx, portfolio.StrategyReviewTrigger{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Type:        portfolio.TriggerType(a.Type),
		Enabled:     enabled,
		Priority:    portfolio.Priority(a.Priority),
		Conditions:  a.Conditions,
		Actions:     a.Actions,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	guidance := []string{"Run 'evaluate_triggers' with dry_run to preview whether the trigger fires on the current portfolio."}
	if !t.Enabled {
		guidance = append(guidance, "The trigger is disabled and will be skipped until re-enabled with 'set_trigger_enabled'.")
	}
	return WrapResponse(t, nil, guidance), nil
}

func (s *Server) handleSetTriggerEnabled(ctx context.Context, a setTriggerEnabledArgs) (ResponseEnvelope, error) {
	t, err := s.svc.SetTriggerEnabled(ctx, a.ID, a.Enabled)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(t, nil, nil), nil
}

func (s *Server) handleListTriggers(ctx context.Context, _ emptyArgs) (ResponseEnvelope, error) {
	ts, err := s.svc.ListTriggers(ctx)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	if len(ts) == 0 {
		guidance = append(guidance, "No triggers are configured. Use 'configure_trigger' to schedule reviews automatically.")
	}
	return WrapResponse(ts, nil, guidance), nil
}

func (s *Server) handleEvaluateTriggers(ctx context.Context, a evaluateArgs) (ResponseEnvelope, error) {
	report, err := s.svc.EvaluateTriggers(ctx, strategy.EvaluateQuery{Market: a.Market, DryRun: a.DryRun})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	switch {
	case len(report.Reviews) == 0:
		guidance = append(guidance, "No trigger fired.")
	case report.DryRun:
		guidance = append(guidance, fmt.Sprintf("%d review(s) would be scheduled. Re-run without dry_run to persist them.", len(report.Reviews)))
	default:
		guidance = append(guidance, fmt.Sprintf("%d review(s) scheduled. Use 'start_review' when the review begins.", len(report.Reviews)))
	}
	return WrapResponse(report, nil, guidance), nil
}

func (s *Server) handleListReviews(ctx context.Context, a listReviewsArgs) (ResponseEnvelope, error) {
	rs, err := s.svc.ListReviews(ctx, portfolio.ReviewStatus(a.Status))
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var warnings []string
	now := s.svc.Now()
	for _, r := range rs {
		if !r.Status.Closed() && r.Scheduled.Before(now) {
			warnings = append(warnings, fmt.Sprintf("Review %s (%s) is past its deadline.", r.ID, r.Priority))
		}
	}
	return WrapResponse(rs, warnings, nil), nil
}

func (s *Server) handleStartReview(ctx context.Context, a reviewIDArgs) (ResponseEnvelope, error) {
	r, err := s.svc.StartReview(ctx, a.ID)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(r, nil, []string{"Work through the review questions, then close it with 'complete_review'."}), nil
}

func (s *Server) handleCompleteReview(ctx context.Context, a completeReviewArgs) (ResponseEnvelope, error) {
	c := strategy.ReviewCompletion{ID: a.ID, Notes: a.Notes}
	for _, d := range a.Decisions {
		c.Decisions = append(c.Decisions, portfolio.Decision{Description: d.Description, Rationale: d.Rationale, Owner: d.Owner})
	}
	for i, n := range a.NextSteps {
		due, err := parseOptionalDate(fmt.Sprintf("next_steps[%d].due_date", i), n.DueDate)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		c.NextSteps = append(c.NextSteps, portfolio.NextStep{Description: n.Description, Owner: n.Owner, DueDate: due})
	}

	r, err := s.svc.CompleteReview(ctx, c)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(r, nil, nil), nil
}

func (s *Server) handleCancelReview(ctx context.Context, a cancelReviewArgs) (ResponseEnvelope, error) {
	r, err := s.svc.CancelReview(ctx, a.ID, a.Reason)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(r, nil, nil), nil
}
