package portfolio

import "time"

// TriggerType selects how a fired trigger scopes its review.
type TriggerType string

const (
	TriggerMilestoneBased TriggerType = "milestone-based"
	TriggerTimeBased      TriggerType = "time-based"
	TriggerMetricBased    TriggerType = "metric-based"
	TriggerEventBased     TriggerType = "event-based"
	TriggerThresholdBased TriggerType = "threshold-based"
)

// ConditionType names the value a condition inspects.
type ConditionType string

const (
	ConditionMilestoneCompletion ConditionType = "milestone-completion"
	ConditionTimeElapsed         ConditionType = "time-elapsed"
	ConditionGoalHealth          ConditionType = "goal-health"
	ConditionCorrelationStrength ConditionType = "correlation-strength"
	ConditionCompetitiveThreat   ConditionType = "competitive-threat"
	ConditionStrategyGap         ConditionType = "strategy-gap"
)

// Operator is the comparison applied to an extracted condition value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpGreaterThan Operator = "greater-than"
	OpLessThan    Operator = "less-than"
	OpBetween     Operator = "between"
	OpContains    Operator = "contains"
)

// Priority orders triggers and sets review deadlines.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// TriggerCondition is one conjunct of a trigger.
//
// Value is the numeric operand, Values holds the [low, high] bounds for between or the
// accepted set for numeric contains, Text is the operand for label comparisons.
// The remaining fields parameterise value extraction for specific condition types.
type TriggerCondition struct {
	Type             ConditionType    `json:"type"`
	Operator         Operator         `json:"operator"`
	Value            float64          `json:"value,omitempty"`
	Values           []float64        `json:"values,omitempty"`
	Text             string           `json:"text,omitempty"`
	WithinDays       int              `json:"within_days,omitempty"`
	MinImportance    float64          `json:"min_importance,omitempty"`
	ConversationType ConversationType `json:"conversation_type,omitempty"`
	GoalID           string           `json:"goal_id,omitempty"`
	Severity         Severity         `json:"severity,omitempty"`
}

// ActionType names what should happen once a review is scheduled.
type ActionType string

const (
	ActionScheduleReview ActionType = "schedule-review"
	ActionNotify         ActionType = "notify"
	ActionGenerateReport ActionType = "generate-report"
)

// TriggerAction is carried onto every review the trigger creates.
type TriggerAction struct {
	Type       ActionType        `json:"type"`
	Target     string            `json:"target,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// StrategyReviewTrigger is a persistent rule that schedules strategy reviews.
type StrategyReviewTrigger struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Type          TriggerType        `json:"type"`
	Enabled       bool               `json:"enabled"`
	Conditions    []TriggerCondition `json:"conditions"`
	Actions       []TriggerAction    `json:"actions,omitempty"`
	Priority      Priority           `json:"priority"`
	LastTriggered *time.Time         `json:"last_triggered,omitempty"`
	TriggerCount  int                `json:"trigger_count"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ReviewStatus is the lifecycle state of a strategy review.
type ReviewStatus string

const (
	ReviewPending    ReviewStatus = "pending"
	ReviewInProgress ReviewStatus = "in-progress"
	ReviewCompleted  ReviewStatus = "completed"
	ReviewCancelled  ReviewStatus = "cancelled"
)

// Closed reports whether the review can no longer change.
func (s ReviewStatus) Closed() bool {
	return s == ReviewCompleted || s == ReviewCancelled
}

// ReviewScope is the subset of the portfolio a review covers.
type ReviewScope struct {
	MilestoneIDs []string `json:"milestone_ids"`
	GoalIDs      []string `json:"goal_ids"`
	Rationale    string   `json:"rationale"`
}

// ConditionOutcome records what a condition observed when its trigger fired.
type ConditionOutcome struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Observed float64       `json:"observed"`
	Labels   []string      `json:"labels,omitempty"`
	Passed   bool          `json:"passed"`
}

// Decision is a recorded outcome of a completed review.
type Decision struct {
	Description string    `json:"description"`
	Rationale   string    `json:"rationale,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	MadeAt      time.Time `json:"made_at"`
}

// NextStep is a follow-up action agreed during a review.
type NextStep struct {
	Description string     `json:"description"`
	Owner       string     `json:"owner,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// StrategyReview is produced when a trigger fires.
type StrategyReview struct {
	ID              string             `json:"id"`
	TriggerID       string             `json:"trigger_id"`
	TriggerName     string             `json:"trigger_name"`
	TriggerType     TriggerType        `json:"trigger_type"`
	Priority        Priority           `json:"priority"`
	Status          ReviewStatus       `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	Scheduled       time.Time          `json:"scheduled"`
	ReviewScope     ReviewScope        `json:"review_scope"`
	ReviewQuestions []string           `json:"review_questions"`
	Conditions      []ConditionOutcome `json:"conditions,omitempty"`
	Actions         []TriggerAction    `json:"actions,omitempty"`
	Decisions       []Decision         `json:"decisions,omitempty"`
	NextSteps       []NextStep         `json:"next_steps,omitempty"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Notes           string             `json:"notes,omitempty"`
}
