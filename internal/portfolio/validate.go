package portfolio

import (
	"math"
	"strings"
)

// Validate checks required fields, enums and ranges of a milestone.
func (m *Milestone) Validate() error {
	var errs ValidationErrors
	entity := entityName("milestone", m.ID)

	if strings.TrimSpace(m.ID) == "" {
		errs.add(entity, "id", "is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		errs.add(entity, "name", "is required")
	}
	if !ValidMilestoneCategory(m.Category) {
		errs.add(entity, "category", "unknown category %q", m.Category)
	}
	if !validMilestoneStatus(m.Status) {
		errs.add(entity, "status", "unknown status %q", m.Status)
	}
	if !validComplexity(m.Complexity) {
		errs.add(entity, "complexity", "unknown complexity %q", m.Complexity)
	}
	if !validMarketTiming(m.MarketTiming) {
		errs.add(entity, "market_timing", "unknown market timing %q", m.MarketTiming)
	}
	if m.PlannedDate.IsZero() {
		errs.add(entity, "planned_date", "is required")
	}
	if !inPercentRange(m.StrategicImportance) {
		errs.add(entity, "strategic_importance", "must be within 0-100, got %v", m.StrategicImportance)
	}
	if !finiteNonNegative(m.RevenueImplication) {
		errs.add(entity, "revenue_implication", "must be a non-negative amount, got %v", m.RevenueImplication)
	}
	if !finiteNonNegative(m.CustomerImpact) {
		errs.add(entity, "customer_impact", "must be non-negative, got %v", m.CustomerImpact)
	}
	if !finiteNonNegative(m.MarketShareImpact) {
		errs.add(entity, "market_share_impact", "must be non-negative, got %v", m.MarketShareImpact)
	}
	if m.Status == StatusCompleted && m.CompletedDate == nil {
		errs.add(entity, "completed_date", "is required for completed milestones")
	}
	for i, id := range m.LinkedGoals {
		if strings.TrimSpace(id) == "" {
			errs.add(entity, "linked_goals", "entry %d is empty", i)
		}
	}

	return errs.OrNil()
}

// Validate checks required fields, enums and ranges of a goal.
func (g *Goal) Validate() error {
	var errs ValidationErrors
	entity := entityName("goal", g.ID)

	if strings.TrimSpace(g.ID) == "" {
		errs.add(entity, "id", "is required")
	}
	if strings.TrimSpace(g.Title) == "" {
		errs.add(entity, "title", "is required")
	}
	if !ValidGoalCategory(g.Category) {
		errs.add(entity, "category", "unknown category %q", g.Category)
	}
	switch g.Status {
	case GoalActive, GoalBlocked, GoalAchieved, GoalAbandoned:
	default:
		errs.add(entity, "status", "unknown status %q", g.Status)
	}
	if !inPercentRange(g.Confidence) {
		errs.add(entity, "confidence", "must be within 0-100, got %v", g.Confidence)
	}
	for i, snap := range g.ProgressHistory {
		if !inPercentRange(snap.Progress) {
			errs.add(entity, "progress_history", "entry %d progress must be within 0-100, got %v", i, snap.Progress)
		}
		if i > 0 && snap.Timestamp.Before(g.ProgressHistory[i-1].Timestamp) {
			errs.add(entity, "progress_history", "entry %d is older than its predecessor", i)
		}
	}
	for i, dep := range g.Dependencies {
		switch dep.Type {
		case DependencyTechnical:
			if dep.Capability != "" && !ValidMilestoneCategory(dep.Capability) {
				errs.add(entity, "dependencies", "entry %d names unknown capability %q", i, dep.Capability)
			}
		case DependencyBusiness, DependencyExternal:
		default:
			errs.add(entity, "dependencies", "entry %d has unknown type %q", i, dep.Type)
		}
	}

	return errs.OrNil()
}

// Validate checks required fields of a conversation.
func (c *Conversation) Validate() error {
	var errs ValidationErrors
	entity := entityName("conversation", c.ID)

	if strings.TrimSpace(c.ID) == "" {
		errs.add(entity, "id", "is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		errs.add(entity, "title", "is required")
	}
	switch c.Type {
	case ConversationStrategyReview, ConversationPlanning, ConversationRetrospective, ConversationTechnical, ConversationBusiness:
	default:
		errs.add(entity, "type", "unknown conversation type %q", c.Type)
	}
	if c.Timestamp.IsZero() {
		errs.add(entity, "timestamp", "is required")
	}

	return errs.OrNil()
}

// Validate checks a trigger configuration. A trigger needs at least one condition,
// and every condition must be evaluable without further checks.
func (t *StrategyReviewTrigger) Validate() error {
	var errs ValidationErrors
	entity := entityName("trigger", t.ID)

	if strings.TrimSpace(t.ID) == "" {
		errs.add(entity, "id", "is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		errs.add(entity, "name", "is required")
	}
	switch t.Type {
	case TriggerMilestoneBased, TriggerTimeBased, TriggerMetricBased, TriggerEventBased, TriggerThresholdBased:
	default:
		errs.add(entity, "type", "unknown trigger type %q", t.Type)
	}
	if !ValidPriority(t.Priority) {
		errs.add(entity, "priority", "unknown priority %q", t.Priority)
	}
	if len(t.Conditions) == 0 {
		errs.add(entity, "conditions", "at least one condition is required")
	}
	for i, c := range t.Conditions {
		validateCondition(&errs, entity, i, c)
	}
	for i, a := range t.Actions {
		switch a.Type {
		case ActionScheduleReview, ActionNotify, ActionGenerateReport:
		default:
			errs.add(entity, "actions", "entry %d has unknown type %q", i, a.Type)
		}
	}

	return errs.OrNil()
}

// Validate checks the identity, enums and lifecycle timestamps of a review.
func (r *StrategyReview) Validate() error {
	var errs ValidationErrors
	entity := entityName("review", r.ID)

	if strings.TrimSpace(r.ID) == "" {
		errs.add(entity, "id", "is required")
	}
	if strings.TrimSpace(r.TriggerID) == "" {
		errs.add(entity, "trigger_id", "is required")
	}
	switch r.TriggerType {
	case "", TriggerMilestoneBased, TriggerTimeBased, TriggerMetricBased, TriggerEventBased, TriggerThresholdBased:
	default:
		errs.add(entity, "trigger_type", "unknown trigger type %q", r.TriggerType)
	}
	if !ValidPriority(r.Priority) {
		errs.add(entity, "priority", "unknown priority %q", r.Priority)
	}
	switch r.Status {
	case ReviewPending:
	case ReviewInProgress:
		if r.StartedAt == nil {
			errs.add(entity, "started_at", "is required once the review is in progress")
		}
	case ReviewCompleted, ReviewCancelled:
		if r.CompletedAt == nil {
			errs.add(entity, "completed_at", "is required once the review is %s", r.Status)
		}
	default:
		errs.add(entity, "status", "unknown status %q", r.Status)
	}
	for i, d := range r.Decisions {
		if strings.TrimSpace(d.Description) == "" {
			errs.add(entity, "decisions", "entry %d has no description", i)
		}
	}

	return errs.OrNil()
}

func validateCondition(errs *ValidationErrors, entity string, i int, c TriggerCondition) {
	switch c.Type {
	case ConditionMilestoneCompletion, ConditionTimeElapsed, ConditionGoalHealth,
		ConditionCorrelationStrength, ConditionCompetitiveThreat, ConditionStrategyGap:
	default:
		errs.add(entity, "conditions", "entry %d has unknown type %q", i, c.Type)
	}

	switch c.Operator {
	case OpEquals, OpGreaterThan, OpLessThan:
	case OpBetween:
		if len(c.Values) != 2 {
			errs.add(entity, "conditions", "entry %d: between needs exactly two values", i)
		} else if c.Values[0] > c.Values[1] {
			errs.add(entity, "conditions", "entry %d: between bounds are reversed", i)
		}
	case OpContains:
		if c.Text == "" && len(c.Values) == 0 {
			errs.add(entity, "conditions", "entry %d: contains needs text or values", i)
		}
	default:
		errs.add(entity, "conditions", "entry %d has unknown operator %q", i, c.Operator)
	}

	if c.WithinDays < 0 {
		errs.add(entity, "conditions", "entry %d: within_days must not be negative", i)
	}
	if !inPercentRange(c.MinImportance) {
		errs.add(entity, "conditions", "entry %d: min_importance must be within 0-100", i)
	}
	if c.Severity != "" && c.Severity.Rank() == 0 {
		errs.add(entity, "conditions", "entry %d: unknown severity %q", i, c.Severity)
	}
}

// ValidMilestoneCategory reports whether c is a known milestone category.
func ValidMilestoneCategory(c MilestoneCategory) bool {
	for _, known := range MilestoneCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidGoalCategory reports whether c is a known goal category.
func ValidGoalCategory(c GoalCategory) bool {
	for _, known := range GoalCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func validMilestoneStatus(s MilestoneStatus) bool {
	_, ok := milestoneTransitions[s]
	return ok
}

func validComplexity(c Complexity) bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh, ComplexityVeryHigh:
		return true
	}
	return false
}

func validMarketTiming(t MarketTiming) bool {
	switch t {
	case TimingEarly, TimingCompetitive, TimingLate, TimingCritical:
		return true
	}
	return false
}

func inPercentRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func entityName(kind, id string) string {
	if id == "" {
		return kind
	}
	return kind + " " + id
}
