package mcp

import (
	"context"
	"fmt"
	"slices"
)

// WorkflowStep is one tool call in a recommended sequence.
type WorkflowStep struct {
	Tool    string `json:"tool"`
	Purpose string `json:"purpose"`
}

// Workflow is a named, ordered tool sequence.
type Workflow struct {
	Goal        string         `json:"goal"`
	Description string         `json:"description"`
	Steps       []WorkflowStep `json:"steps"`
}

var workflows = map[string]Workflow{
	"portfolio_setup": {
		Goal:        "portfolio_setup",
		Description: "Capture business goals and the technical milestones that serve them.",
		Steps: []WorkflowStep{
			{"create_goal", "Add each business objective with confidence and technical dependencies."},
			{"create_milestone", "Add technical work, linking the goals it serves."},
			{"list_goals", "Check goal health before any analysis."},
			{"analyze_correlations", "Confirm that milestones move the intended goals."},
		},
	},
	"forecasting": {
		Goal:        "forecasting",
		Description: "Project business outcomes of planned work over a time window.",
		Steps: []WorkflowStep{
			{"list_milestones", "Verify planned dates fall inside the intended window."},
			{"analyze_correlations", "Inspect which pairs drive the projection."},
			{"generate_forecast", "Produce scenarios, the weighted blend and intervals."},
			{"generate_report", "Share the result with charts."},
		},
	},
	"gap_analysis": {
		Goal:        "gap_analysis",
		Description: "Find capabilities goals depend on that no milestone delivers, and categories that keep slipping.",
		Steps: []WorkflowStep{
			{"identify_strategy_gaps", "Rank capability and execution gaps, optionally under market pressure."},
			{"create_milestone", "Plan work that closes critical capability gaps."},
			{"configure_trigger", "Watch remaining gaps with a strategy-gap trigger."},
		},
	},
	"review_cycle": {
		Goal:        "review_cycle",
		Description: "Schedule and run strategy reviews when conditions change.",
		Steps: []WorkflowStep{
			{"configure_trigger", "Define when a review is needed."},
			{"evaluate_triggers", "Evaluate triggers; use dry_run first."},
			{"list_reviews", "See pending reviews and their deadlines."},
			{"start_review", "Mark a review as in progress."},
			{"complete_review", "Record decisions and next steps."},
		},
	},
	"progress_tracking": {
		Goal:        "progress_tracking",
		Description: "Keep the portfolio current as work lands.",
		Steps: []WorkflowStep{
			{"update_milestone_progress", "Move milestones through their lifecycle."},
			{"update_goal_progress", "Append progress and revised confidence."},
			{"record_conversation", "Capture decisions made outside reviews."},
			{"analyze_strategy", "Re-run the combined analysis."},
		},
	},
}

func workflowGoals() []string {
	out := make([]string, 0, len(workflows))
	for goal := range workflows {
		out = append(out, goal)
	}
	slices.Sort(out)
	return out
}

func workflowGoalNames() []any {
	goals := workflowGoals()
	out := make([]any, len(goals))
	for i, g := range goals {
		out[i] = g
	}
	return out
}

func (s *Server) handleWorkflowGuide(_ context.Context, a workflowGuideArgs) (ResponseEnvelope, error) {
	if a.Goal == "" {
		all := make([]Workflow, 0, len(workflows))
		for _, goal := range workflowGoals() {
			all = append(all, workflows[goal])
		}
		return WrapResponse(all, nil, []string{"Pick the workflow matching the user's intent and follow its steps in order."}), nil
	}

	w, ok := workflows[a.Goal]
	if !ok {
		return ResponseEnvelope{}, fmt.Errorf("unknown workflow %q, expected one of %v", a.Goal, workflowGoals())
	}
	return WrapResponse(w, nil, nil), nil
}
