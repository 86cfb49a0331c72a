package mcp

import (
	"context"
	"fmt"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/strategy"
)

func (s *Server) handleCreateMilestone(ctx context.Context, a createMilestoneArgs) (ResponseEnvelope, error) {
	planned, err := parseDate("planned_date", a.PlannedDate)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	completed, err := parseOptionalDate("completed_date", a.CompletedDate)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	m, err := s.svc.CreateMilestone(ctx, portfolio.Milestone{
		ID:                  a.ID,
		Name:                a.Name,
		Description:         a.Description,
		Category:            portfolio.MilestoneCategory(a.Category),
		Status:              portfolio.MilestoneStatus(a.Status),
		Complexity:          portfolio.Complexity(a.Complexity),
		PlannedDate:         planned,
		CompletedDate:       completed,
		StrategicImportance: a.StrategicImportance,
		RevenueImplication:  a.RevenueImplication,
		CustomerImpact:      a.CustomerImpact,
		MarketShareImpact:   a.MarketShareImpact,
		MarketTiming:        portfolio.MarketTiming(a.MarketTiming),
		LinkedGoals:         a.LinkedGoals,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	if len(m.LinkedGoals) == 0 {
		guidance = append(guidance, "The milestone is not linked to any goal. Correlations will rely on category alignment alone.")
	}
	guidance = append(guidance, "Run 'analyze_correlations' to see which goals this milestone moves.")
	return WrapResponse(m, nil, guidance), nil
}

func (s *Server) handleUpdateMilestone(ctx context.Context, a updateMilestoneArgs) (ResponseEnvelope, error) {
	completed, err := parseOptionalDate("completed_date", a.CompletedDate)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	planned, err := parseOptionalDate("planned_date", a.PlannedDate)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	m, err := s.svc.UpdateMilestoneProgress(ctx, strategy.MilestoneUpdate{
		ID:                  a.ID,
		Status:              portfolio.MilestoneStatus(a.Status),
		CompletedDate:       completed,
		PlannedDate:         planned,
		StrategicImportance: a.StrategicImportance,
		RevenueImplication:  a.RevenueImplication,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	switch m.Status {
	case portfolio.StatusCompleted:
		guidance = append(guidance, "Milestone completed. Run 'evaluate_triggers' so milestone-completion triggers can schedule reviews.")
	case portfolio.StatusDelayed:
		guidance = append(guidance, "Delays feed execution gap detection. Run 'identify_strategy_gaps' to check the affected category.")
	}
	return WrapResponse(m, nil, guidance), nil
}

func (s *Server) handleCreateGoal(ctx context.Context, a createGoalArgs) (ResponseEnvelope, error) {
	target, err := parseDate("target_date", a.TargetDate)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	g := portfolio.Goal{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		Category:     portfolio.GoalCategory(a.Category),
		Status:       portfolio.GoalStatus(a.Status),
		Confidence:   a.Confidence,
		TargetDate:   target,
		Metrics:      a.Metrics,
		Dependencies: a.Dependencies,
	}
	for i, gm := range a.Milestones {
		due, err := parseDate(fmt.Sprintf("milestones[%d].due_date", i), gm.DueDate)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		g.Milestones = append(g.Milestones, portfolio.GoalMilestone{ID: gm.ID, Title: gm.Title, DueDate: due, Completed: gm.Completed})
	}

	if a.InitialProgress != nil {
		g.ProgressHistory = []portfolio.ProgressSnapshot{{
			Progress:   *a.InitialProgress,
			Confidence: a.Confidence,
			Note:       "initial progress",
		}}
	}

	created, err := s.svc.CreateGoal(ctx, g)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	return WrapResponse(created, nil, []string{
		"Link milestones to this goal with 'create_milestone' (linked_goals) to strengthen correlations.",
	}), nil
}

func (s *Server) handleUpdateGoal(ctx context.Context, a updateGoalArgs) (ResponseEnvelope, error) {
	g, err := s.svc.UpdateGoalProgress(ctx, strategy.GoalProgress{
		ID:         a.ID,
		Progress:   a.Progress,
		Confidence: a.Confidence,
		Status:     portfolio.GoalStatus(a.Status),
		Note:       a.Note,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	view := strategy.GoalView{Goal: g, HealthScore: g.Health()}
	var guidance []string
	if view.HealthScore < 50 {
		guidance = append(guidance, fmt.Sprintf("Goal health is %.0f. Goal-health triggers may fire on the next 'evaluate_triggers'.", view.HealthScore))
	}
	return WrapResponse(view, nil, guidance), nil
}

func (s *Server) handleRecordConversation(ctx context.Context, a recordConversationArgs) (ResponseEnvelope, error) {
	ts, err := parseDate("timestamp", a.Timestamp)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	c, err := s.svc.RecordConversation(ctx, portfolio.Conversation{
		Type:             portfolio.ConversationType(a.Type),
		Title:            a.Title,
		Summary:          a.Summary,
		Participants:     a.Participants,
		Timestamp:        ts,
		LinkedMilestones: a.LinkedMilestones,
		LinkedGoals:      a.LinkedGoals,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(c, nil, nil), nil
}

func (s *Server) handleListMilestones(ctx context.Context, a listMilestonesArgs) (ResponseEnvelope, error) {
	ms, err := s.svc.ListMilestones(ctx, strategy.MilestoneFilter{
		Status:   portfolio.MilestoneStatus(a.Status),
		Category: portfolio.MilestoneCategory(a.Category),
		GoalID:   a.GoalID,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	if len(ms) == 0 {
		guidance = append(guidance, "No milestones match. Use 'create_milestone' to add technical work to the portfolio.")
	}
	return WrapResponse(ms, nil, guidance), nil
}

func (s *Server) handleListGoals(ctx context.Context, a listGoalsArgs) (ResponseEnvelope, error) {
	gs, err := s.svc.ListGoals(ctx, strategy.GoalFilter{
		Status:   portfolio.GoalStatus(a.Status),
		Category: portfolio.GoalCategory(a.Category),
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	if len(gs) == 0 {
		guidance = append(guidance, "No goals match. Use 'create_goal' to add business objectives.")
	}
	return WrapResponse(gs, nil, guidance), nil
}
