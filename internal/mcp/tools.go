package mcp

import (
	"context"
	"fmt"
	"strings"

	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/portfolio"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

func enumOf[T ~string](values ...T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

var (
	milestoneCategories = enumOf(portfolio.MilestoneCategories...)
	milestoneStatuses   = enumOf(portfolio.StatusPlanned, portfolio.StatusInProgress, portfolio.StatusCompleted, portfolio.StatusDelayed, portfolio.StatusCancelled)
	complexities        = enumOf(portfolio.ComplexityLow, portfolio.ComplexityMedium, portfolio.ComplexityHigh, portfolio.ComplexityVeryHigh)
	marketTimings       = enumOf(portfolio.TimingEarly, portfolio.TimingCompetitive, portfolio.TimingLate, portfolio.TimingCritical)
	goalCategories      = enumOf(portfolio.GoalCategories...)
	goalStatuses        = enumOf(portfolio.GoalActive, portfolio.GoalBlocked, portfolio.GoalAchieved, portfolio.GoalAbandoned)
	dependencyTypes     = enumOf(portfolio.DependencyTechnical, portfolio.DependencyBusiness, portfolio.DependencyExternal)
	conversationTypes   = enumOf(portfolio.ConversationStrategyReview, portfolio.ConversationPlanning, portfolio.ConversationRetrospective, portfolio.ConversationTechnical, portfolio.ConversationBusiness)
	triggerTypes        = enumOf(portfolio.TriggerMilestoneBased, portfolio.TriggerTimeBased, portfolio.TriggerMetricBased, portfolio.TriggerEventBased, portfolio.TriggerThresholdBased)
	conditionTypes      = enumOf(portfolio.ConditionMilestoneCompletion, portfolio.ConditionTimeElapsed, portfolio.ConditionGoalHealth, portfolio.ConditionCorrelationStrength, portfolio.ConditionCompetitiveThreat, portfolio.ConditionStrategyGap)
	operators           = enumOf(portfolio.OpEquals, portfolio.OpGreaterThan, portfolio.OpLessThan, portfolio.OpBetween, portfolio.OpContains)
	priorities          = enumOf(portfolio.PriorityCritical, portfolio.PriorityHigh, portfolio.PriorityMedium, portfolio.PriorityLow)
	actionTypes         = enumOf(portfolio.ActionScheduleReview, portfolio.ActionNotify, portfolio.ActionGenerateReport)
	severities          = enumOf(portfolio.SeverityMinor, portfolio.SeverityModerate, portfolio.SeveritySignificant, portfolio.SeverityCritical)
	reviewStatuses      = enumOf(portfolio.ReviewPending, portfolio.ReviewInProgress, portfolio.ReviewCompleted, portfolio.ReviewCancelled)
	pressures           = []any{forecast.PressureLow, forecast.PressureMedium, forecast.PressureHigh}
)

type createMilestoneArgs struct {
	ID                  string   `json:"id,omitempty" jsonschema:"Optional id, generated when empty"`
	Name                string   `json:"name" jsonschema:"Short milestone name, matched against domain keywords when scoring correlations"`
	Description         string   `json:"description,omitempty" jsonschema:"Free-text description"`
	Category            string   `json:"category" jsonschema:"Kind of technical work delivered"`
	Status              string   `json:"status,omitempty" jsonschema:"Initial status, defaults to planned"`
	Complexity          string   `json:"complexity" jsonschema:"Delivery complexity"`
	PlannedDate         string   `json:"planned_date" jsonschema:"Planned delivery date (YYYY-MM-DD)"`
	CompletedDate       string   `json:"completed_date,omitempty" jsonschema:"Completion date (YYYY-MM-DD) for milestones created as completed"`
	StrategicImportance float64  `json:"strategic_importance" jsonschema:"Strategic importance 0-100"`
	RevenueImplication  float64  `json:"revenue_implication" jsonschema:"Expected revenue impact in currency units"`
	CustomerImpact      float64  `json:"customer_impact,omitempty" jsonschema:"Expected number of customers affected"`
	MarketShareImpact   float64  `json:"market_share_impact,omitempty" jsonschema:"Expected market share change in percentage points"`
	MarketTiming        string   `json:"market_timing" jsonschema:"Timing relative to the market"`
	LinkedGoals         []string `json:"linked_goals,omitempty" jsonschema:"Ids of goals this milestone explicitly serves"`
}

type updateMilestoneArgs struct {
	ID                  string   `json:"id" jsonschema:"Milestone id"`
	Status              string   `json:"status,omitempty" jsonschema:"New status; completed and cancelled are final"`
	CompletedDate       string   `json:"completed_date,omitempty" jsonschema:"Completion date (YYYY-MM-DD), defaults to today when completing"`
	PlannedDate         string   `json:"planned_date,omitempty" jsonschema:"Re-planned delivery date (YYYY-MM-DD)"`
	StrategicImportance *float64 `json:"strategic_importance,omitempty" jsonschema:"Revised strategic importance 0-100"`
	RevenueImplication  *float64 `json:"revenue_implication,omitempty" jsonschema:"Revised revenue impact"`
}

type goalMilestoneArgs struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	DueDate   string `json:"due_date,omitempty" jsonschema:"YYYY-MM-DD"`
	Completed bool   `json:"completed,omitempty"`
}

type createGoalArgs struct {
	ID              string                 `json:"id,omitempty" jsonschema:"Optional id, generated when empty"`
	Title           string                 `json:"title" jsonschema:"Goal title"`
	Description     string                 `json:"description,omitempty"`
	Category        string                 `json:"category" jsonschema:"Business area of the goal"`
	Status          string                 `json:"status,omitempty" jsonschema:"Initial status, defaults to active"`
	Confidence      float64                `json:"confidence" jsonschema:"Confidence 0-100 that the goal will be met"`
	TargetDate      string                 `json:"target_date,omitempty" jsonschema:"Target date (YYYY-MM-DD)"`
	InitialProgress *float64               `json:"initial_progress,omitempty" jsonschema:"Progress 0-100 already achieved"`
	Metrics         []portfolio.GoalMetric `json:"metrics,omitempty" jsonschema:"Measurable targets"`
	Milestones      []goalMilestoneArgs    `json:"milestones,omitempty" jsonschema:"Business checkpoints inside the goal"`
	Dependencies    []portfolio.Dependency `json:"dependencies,omitempty" jsonschema:"What the goal depends on; technical dependencies name a capability"`
}

type updateGoalArgs struct {
	ID         string   `json:"id" jsonschema:"Goal id"`
	Progress   float64  `json:"progress" jsonschema:"Current progress 0-100"`
	Confidence *float64 `json:"confidence,omitempty" jsonschema:"Revised confidence 0-100"`
	Status     string   `json:"status,omitempty" jsonschema:"New goal status"`
	Note       string   `json:"note,omitempty" jsonschema:"Short note stored with the progress record"`
}

type recordConversationArgs struct {
	Type             string   `json:"type" jsonschema:"Kind of conversation"`
	Title            string   `json:"title"`
	Summary          string   `json:"summary,omitempty"`
	Participants     []string `json:"participants,omitempty"`
	Timestamp        string   `json:"timestamp,omitempty" jsonschema:"When it happened (YYYY-MM-DD or RFC 3339), defaults to now"`
	LinkedMilestones []string `json:"linked_milestones,omitempty"`
	LinkedGoals      []string `json:"linked_goals,omitempty"`
}

type listMilestonesArgs struct {
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
	GoalID   string `json:"goal_id,omitempty" jsonschema:"Only milestones explicitly linked to this goal"`
}

type listGoalsArgs struct {
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
}

type correlationArgs struct {
	MilestoneID string `json:"milestone_id,omitempty" jsonschema:"Restrict to one milestone"`
	GoalID      string `json:"goal_id,omitempty" jsonschema:"Restrict to one goal"`
	IncludeWeak bool   `json:"include_weak,omitempty" jsonschema:"Also return pairs with absolute strength below 30"`
}

type forecastArgs struct {
	StartDate         string `json:"start_date,omitempty" jsonschema:"Window start (YYYY-MM-DD), defaults to today"`
	EndDate           string `json:"end_date,omitempty" jsonschema:"Window end (YYYY-MM-DD), defaults to 90 days after start"`
	FocusArea         string `json:"focus_area,omitempty" jsonschema:"Optional goal category (revenue, product, market, technical, operational); other values forecast across all goals"`
	IncludeDisruption bool   `json:"include_disruption,omitempty" jsonschema:"Add the market disruption scenario"`
}

type gapArgs struct {
	Market *forecast.MarketContext `json:"market,omitempty" jsonschema:"Optional competitive pressure and market signals"`
}

type analyzeArgs struct {
	StartDate         string                  `json:"start_date,omitempty" jsonschema:"Window start (YYYY-MM-DD), defaults to today"`
	EndDate           string                  `json:"end_date,omitempty" jsonschema:"Window end (YYYY-MM-DD), defaults to 90 days after start"`
	FocusArea         string                  `json:"focus_area,omitempty" jsonschema:"Optional goal category (revenue, product, market, technical, operational); other values forecast across all goals"`
	IncludeDisruption bool                    `json:"include_disruption,omitempty" jsonschema:"Add the market disruption scenario"`
	Market            *forecast.MarketContext `json:"market,omitempty" jsonschema:"Optional competitive pressure and market signals"`
}

type reportArgs struct {
	StartDate         string                  `json:"start_date,omitempty" jsonschema:"Window start (YYYY-MM-DD), defaults to today"`
	EndDate           string                  `json:"end_date,omitempty" jsonschema:"Window end (YYYY-MM-DD), defaults to 90 days after start"`
	FocusArea         string                  `json:"focus_area,omitempty" jsonschema:"Optional goal category (revenue, product, market, technical, operational); other values forecast across all goals"`
	IncludeDisruption bool                    `json:"include_disruption,omitempty" jsonschema:"Add the market disruption scenario"`
	Market            *forecast.MarketContext `json:"market,omitempty" jsonschema:"Optional competitive pressure and market signals"`
	Title             string                  `json:"title,omitempty" jsonschema:"Report title"`
	HTML              bool                    `json:"html,omitempty" jsonschema:"Write a standalone HTML file to the report directory instead of returning Markdown"`
	IncludeCharts     *bool                   `json:"include_charts,omitempty" jsonschema:"Render Mermaid charts; defaults to the server setting"`
}

type configureTriggerArgs struct {
	ID          string                       `json:"id,omitempty" jsonschema:"Existing trigger id to reconfigure; generated when empty"`
	Name        string                       `json:"name"`
	Description string                       `json:"description,omitempty"`
	Type        string                       `json:"type" jsonschema:"How the scheduled review is scoped"`
	Enabled     *bool                        `json:"enabled,omitempty" jsonschema:"Defaults to true"`
	Priority    string                       `json:"priority,omitempty" jsonschema:"Defaults to medium; sets the review deadline"`
	Conditions  []portfolio.TriggerCondition `json:"conditions" jsonschema:"All conditions must hold for the trigger to fire"`
	Actions     []portfolio.TriggerAction    `json:"actions,omitempty"`
}

type setTriggerEnabledArgs struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

type emptyArgs struct{}

type evaluateArgs struct {
	Market *forecast.MarketContext `json:"market,omitempty" jsonschema:"Optional competitive pressure and market signals"`
	DryRun bool                    `json:"dry_run,omitempty" jsonschema:"Report what would fire without saving reviews"`
}

type listReviewsArgs struct {
	Status string `json:"status,omitempty"`
}

type reviewIDArgs struct {
	ID string `json:"id" jsonschema:"Review id"`
}

type decisionArgs struct {
	Description string `json:"description"`
	Rationale   string `json:"rationale,omitempty"`
	Owner       string `json:"owner,omitempty"`
}

type nextStepArgs struct {
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
	DueDate     string `json:"due_date,omitempty" jsonschema:"YYYY-MM-DD"`
}

type completeReviewArgs struct {
	ID        string         `json:"id" jsonschema:"Review id"`
	Decisions []decisionArgs `json:"decisions,omitempty"`
	NextSteps []nextStepArgs `json:"next_steps,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}

type cancelReviewArgs struct {
	ID     string `json:"id" jsonschema:"Review id"`
	Reason string `json:"reason,omitempty"`
}

type workflowGuideArgs struct {
	Goal string `json:"goal,omitempty" jsonschema:"Workflow to describe; omit to list all"`
}

// schemaFor infers the input schema of T and attaches enums. Paths are dot-separated
// property names; array levels are descended implicitly.
func schemaFor[T any](enums map[string][]any) (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	for path, values := range enums {
		prop, err := lookupProperty(schema, path)
		if err != nil {
			return nil, err
		}
		prop.Enum = values
	}
	return schema, nil
}

func lookupProperty(schema *jsonschema.Schema, path string) (*jsonschema.Schema, error) {
	cur := schema
	for _, name := range strings.Split(path, ".") {
		if cur.Items != nil {
			cur = cur.Items
		}
		next, ok := cur.Properties[name]
		if !ok {
			return nil, fmt.Errorf("schema has no property %q", path)
		}
		cur = next
	}
	if cur.Items != nil {
		cur = cur.Items
	}
	return cur, nil
}

type toolHandler[In any] func(ctx context.Context, in In) (ResponseEnvelope, error)

func addTool[In any](s *Server, name, description string, enums map[string][]any, h toolHandler[In]) error {
	schema, err := schemaFor[In](enums)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	mcp.AddTool(s.server, &mcp.Tool{Name: name, Description: description, InputSchema: schema},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			log.Debug().Str("tool", name).Msg("Tool called")
			env, err := h(ctx, in)
			if err != nil {
				return errorResult(name, err), nil, nil
			}
			res, err := s.formatResult(env)
			return res, nil, err
		})
	return nil
}

func (s *Server) registerTools() error {
	market := map[string][]any{"market.competitive_pressure": pressures}

	regs := []func() error{
		func() error {
			return addTool(s, "create_milestone",
				"Create a technical milestone with its business assessment. Guidance: link the goals it serves via 'linked_goals' so correlations pick up the explicit link.",
				map[string][]any{"category": milestoneCategories, "status": milestoneStatuses, "complexity": complexities, "market_timing": marketTimings},
				s.handleCreateMilestone)
		},
		func() error {
			return addTool(s, "update_milestone_progress",
				"Move a milestone through its lifecycle (planned, in-progress, delayed, completed, cancelled) or re-estimate it. Completed and cancelled milestones are final.",
				map[string][]any{"status": milestoneStatuses},
				s.handleUpdateMilestone)
		},
		func() error {
			return addTool(s, "create_goal",
				"Create a business goal. Technical dependencies should name the capability (milestone category) they need, which drives capability gap detection.",
				map[string][]any{"category": goalCategories, "status": goalStatuses, "dependencies.type": dependencyTypes, "dependencies.capability": milestoneCategories},
				s.handleCreateGoal)
		},
		func() error {
			return addTool(s, "update_goal_progress",
				"Append a progress record to a goal and optionally revise its confidence or status. History is append-only.",
				map[string][]any{"status": goalStatuses},
				s.handleUpdateGoal)
		},
		func() error {
			return addTool(s, "record_conversation",
				"Capture a strategy conversation linked to milestones and goals. The latest conversation (optionally of a given type) resets the clock of time-elapsed trigger conditions.",
				map[string][]any{"type": conversationTypes},
				s.handleRecordConversation)
		},
		func() error {
			return addTool(s, "list_milestones", "List milestones ordered by planned date, optionally filtered.",
				map[string][]any{"status": milestoneStatuses, "category": milestoneCategories},
				s.handleListMilestones)
		},
		func() error {
			return addTool(s, "list_goals", "List goals with their derived health score, optionally filtered.",
				map[string][]any{"status": goalStatuses, "category": goalCategories},
				s.handleListGoals)
		},
		func() error {
			return addTool(s, "analyze_correlations",
				"Score every milestone-goal pair by correlation strength (-100..100), impact delay and multiplier. Only meaningful pairs (|strength| >= 30) are returned unless include_weak is set.",
				nil, s.handleAnalyzeCorrelations)
		},
		func() error {
			return addTool(s, "generate_forecast",
				"Project revenue, customers and market share over a window under conservative, realistic and optimistic scenarios (plus disruption on request). Returns the probability-weighted blend and percentile intervals.\n\n"+
					"STRICT GUARDRAIL: the figures are heuristic projections, not statistical estimates. Do not present them as probabilities of outcomes.",
				nil, s.handleGenerateForecast)
		},
		func() error {
			return addTool(s, "identify_strategy_gaps",
				"Detect capability gaps (goals depending on capabilities no milestone delivers) and execution gaps (categories with high delay rates), ranked by severity.",
				market, s.handleIdentifyGaps)
		},
		func() error {
			return addTool(s, "analyze_strategy",
				"Run correlations, forecast, gap detection and goal health in one pass over the same portfolio state.",
				market, s.handleAnalyze)
		},
		func() error {
			return addTool(s, "generate_report",
				"Render a strategy report (Markdown, or a standalone HTML file) with optional Mermaid charts of scenarios, correlations and goal health.",
				market, s.handleGenerateReport)
		},
		func() error {
			return addTool(s, "configure_trigger",
				"Create or reconfigure a strategy review trigger. All conditions must hold for it to fire; reconfiguring keeps the firing history.",
				map[string][]any{
					"type": triggerTypes, "priority": priorities,
					"conditions.type": conditionTypes, "conditions.operator": operators,
					"conditions.conversation_type": conversationTypes, "conditions.severity": severities,
					"actions.type": actionTypes,
				},
				s.handleConfigureTrigger)
		},
		func() error {
			return addTool(s, "set_trigger_enabled", "Enable or disable a review trigger.", nil, s.handleSetTriggerEnabled)
		},
		func() error {
			return addTool(s, "list_triggers", "List all review triggers with their firing history.", nil, s.handleListTriggers)
		},
		func() error {
			return addTool(s, "evaluate_triggers",
				"Evaluate every enabled trigger against the current portfolio. Fired triggers schedule strategy reviews with a priority-based deadline. Use dry_run to preview.",
				market, s.handleEvaluateTriggers)
		},
		func() error {
			return addTool(s, "list_reviews", "List strategy reviews, newest first.",
				map[string][]any{"status": reviewStatuses}, s.handleListReviews)
		},
		func() error {
			return addTool(s, "start_review", "Mark a pending strategy review as in progress.", nil, s.handleStartReview)
		},
		func() error {
			return addTool(s, "complete_review", "Close a strategy review with its decisions and next steps.", nil, s.handleCompleteReview)
		},
		func() error {
			return addTool(s, "cancel_review", "Cancel an open strategy review.", nil, s.handleCancelReview)
		},
		func() error {
			return addTool(s, "get_workflow_guide",
				"Describe the recommended tool sequence for a strategy workflow. Call this first when unsure where to start.",
				map[string][]any{"goal": workflowGoalNames()}, s.handleWorkflowGuide)
		},
	}

	for _, reg := range regs {
		if err := reg(); err != nil {
			return err
		}
	}
	log.Debug().Int("tools", len(regs)).Msg("MCP tools registered")
	return nil
}
