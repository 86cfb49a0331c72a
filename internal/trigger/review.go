package trigger

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/portfolio"
)

// ErrReviewClosed is returned when a completed or cancelled review is changed.
var ErrReviewClosed = errors.New("review is closed")

// ScopeMilestoneLimit caps the milestones pulled into a milestone-based review.
const ScopeMilestoneLimit = 5

var deadlines = map[portfolio.Priority]time.Duration{
	portfolio.PriorityCritical: 24 * time.Hour,
	portfolio.PriorityHigh:     3 * 24 * time.Hour,
	portfolio.PriorityMedium:   7 * 24 * time.Hour,
	portfolio.PriorityLow:      14 * 24 * time.Hour,
}

// Deadline returns how long a review of the given priority may wait.
func Deadline(p portfolio.Priority) time.Duration {
	if d, ok := deadlines[p]; ok {
		return d
	}
	return deadlines[portfolio.PriorityMedium]
}

var typeQuestions = map[portfolio.TriggerType][]string{
	portfolio.TriggerMilestoneBased: {
		"Did the recently completed milestones deliver the business impact we expected?",
		"Which goals should now be re-forecast given these completions?",
		"Are there follow-up milestones that should be pulled forward?",
	},
	portfolio.TriggerTimeBased: {
		"Are active goals still the right priorities for this period?",
		"Which blocked goals need an explicit decision to unblock or abandon?",
		"Has the market moved since the last strategy conversation?",
	},
	portfolio.TriggerMetricBased: {
		"What is driving the low health of the goals in scope?",
		"Should targets or confidence for these goals be revised?",
		"Which milestones would most improve goal health if accelerated?",
	},
	portfolio.TriggerEventBased: {
		"What caused the delays or timing pressure on the milestones in scope?",
		"What is the revenue exposure if these milestones slip further?",
		"Should scope be cut to protect market timing?",
	},
	portfolio.TriggerThresholdBased: {
		"Which strategy gaps need investment and which can be accepted?",
		"Do the recommended actions fit current capacity?",
		"Which dependencies should be re-negotiated with goal owners?",
	},
}

var standardQuestions = []string{
	"How do these findings change our strategic priorities for the next planning cycle?",
	"What decisions, owners and resources are needed before the next review?",
}

// Questions returns the type-specific questions followed by the standard ones.
func Questions(t portfolio.TriggerType) []string {
	out := slices.Clone(typeQuestions[t])
	return append(out, standardQuestions...)
}

// NewReview builds a pending review for a fired trigger.
func NewReview(ec *EvaluationContext, t portfolio.StrategyReviewTrigger, outcomes []portfolio.ConditionOutcome) portfolio.StrategyReview {
	return portfolio.StrategyReview{
		ID:              portfolio.NewID("review"),
		TriggerID:       t.ID,
		TriggerName:     t.Name,
		TriggerType:     t.Type,
		Priority:        t.Priority,
		Status:          portfolio.ReviewPending,
		CreatedAt:       ec.Now,
		Scheduled:       ec.Now.Add(Deadline(t.Priority)),
		ReviewScope:     Scope(ec, t.Type),
		ReviewQuestions: Questions(t.Type),
		Conditions:      outcomes,
		Actions:         slices.Clone(t.Actions),
	}
}

// Scope selects the milestones and goals a review of the given type covers.
func Scope(ec *EvaluationContext, tt portfolio.TriggerType) portfolio.ReviewScope {
	s := ec.Snapshot
	var scope portfolio.ReviewScope

	switch tt {
	case portfolio.TriggerMilestoneBased:
		var done []portfolio.Milestone
		for _, m := range s.Milestones {
			if m.Status == portfolio.StatusCompleted && m.CompletedDate != nil && m.StrategicImportance >= DefaultMinImportance {
				done = append(done, m)
			}
		}
		slices.SortFunc(done, func(a, b portfolio.Milestone) int {
			if n := b.CompletedDate.Compare(*a.CompletedDate); n != 0 {
				return n
			}
			return cmp.Compare(a.ID, b.ID)
		})
		if len(done) > ScopeMilestoneLimit {
			done = done[:ScopeMilestoneLimit]
		}
		for _, m := range done {
			scope.MilestoneIDs = append(scope.MilestoneIDs, m.ID)
			scope.GoalIDs = appendLinkedGoals(scope.GoalIDs, ec, m)
		}
		scope.Rationale = fmt.Sprintf("The %d most recent high-importance completed milestones and the goals they serve", len(done))

	case portfolio.TriggerTimeBased:
		for _, g := range s.Goals {
			if g.Status.Open() {
				scope.GoalIDs = append(scope.GoalIDs, g.ID)
			}
		}
		scope.MilestoneIDs = openMilestonesFor(ec, scope.GoalIDs)
		scope.Rationale = "All active and blocked goals with their open milestones"

	case portfolio.TriggerMetricBased:
		for _, g := range s.Goals {
			if g.Status.Open() && g.Health() < 50 {
				scope.GoalIDs = append(scope.GoalIDs, g.ID)
			}
		}
		scope.MilestoneIDs = openMilestonesFor(ec, scope.GoalIDs)
		scope.Rationale = "Goals with a health score below 50 and the milestones serving them"

	case portfolio.TriggerEventBased:
		for _, m := range s.Milestones {
			if m.Status.Terminal() {
				continue
			}
			if m.Status == portfolio.StatusDelayed || m.MarketTiming == portfolio.TimingCritical {
				scope.MilestoneIDs = append(scope.MilestoneIDs, m.ID)
				scope.GoalIDs = appendLinkedGoals(scope.GoalIDs, ec, m)
			}
		}
		scope.Rationale = "Delayed milestones and milestones with critical market timing"

	case portfolio.TriggerThresholdBased:
		for _, g := range ec.Gaps {
			for _, id := range g.MilestoneIDs {
				if !slices.Contains(scope.MilestoneIDs, id) {
					scope.MilestoneIDs = append(scope.MilestoneIDs, id)
				}
			}
			for _, id := range g.GoalIDs {
				if !slices.Contains(scope.GoalIDs, id) {
					scope.GoalIDs = append(scope.GoalIDs, id)
				}
			}
		}
		scope.Rationale = fmt.Sprintf("Entities referenced by %d detected strategy gaps", len(ec.Gaps))
	}

	if tt != portfolio.TriggerMilestoneBased {
		slices.Sort(scope.MilestoneIDs)
	}
	slices.Sort(scope.GoalIDs)
	return scope
}

// appendLinkedGoals adds the goals m links to or meaningfully correlates with.
func appendLinkedGoals(ids []string, ec *EvaluationContext, m portfolio.Milestone) []string {
	add := func(id string) {
		if _, err := ec.Snapshot.Goal(id); err != nil {
			return
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, id := range m.LinkedGoals {
		add(id)
	}
	for _, c := range ec.Correlations {
		if c.MilestoneID == m.ID {
			add(c.GoalID)
		}
	}
	return ids
}

// openMilestonesFor returns non-terminal milestones linked or correlated to any of goalIDs.
func openMilestonesFor(ec *EvaluationContext, goalIDs []string) []string {
	var out []string
	for _, m := range ec.Snapshot.Milestones {
		if m.Status.Terminal() {
			continue
		}
		related := slices.ContainsFunc(goalIDs, m.LinksGoal)
		if !related {
			related = slices.ContainsFunc(ec.Correlations, func(c correlation.ProgressCorrelation) bool {
				return c.MilestoneID == m.ID && slices.Contains(goalIDs, c.GoalID)
			})
		}
		if related {
			out = append(out, m.ID)
		}
	}
	return out
}

// StartReview moves a pending review to in-progress.
func StartReview(r *portfolio.StrategyReview, now time.Time) error {
	switch r.Status {
	case portfolio.ReviewPending:
	case portfolio.ReviewInProgress:
		return nil
	default:
		return fmt.Errorf("start review %s: %w (status %s)", r.ID, ErrReviewClosed, r.Status)
	}
	r.Status = portfolio.ReviewInProgress
	r.StartedAt = &now
	return nil
}

// CompleteReview records decisions and next steps and closes the review for good.
// A pending review passes through in-progress implicitly.
func CompleteReview(r *portfolio.StrategyReview, decisions []portfolio.Decision, next []portfolio.NextStep, notes string, now time.Time) error {
	if r.Status.Closed() {
		return fmt.Errorf("complete review %s: %w (status %s)", r.ID, ErrReviewClosed, r.Status)
	}
	for i, d := range decisions {
		if d.Description == "" {
			return fmt.Errorf("complete review %s: decision %d has no description", r.ID, i)
		}
	}
	for i, n := range next {
		if n.Description == "" {
			return fmt.Errorf("complete review %s: next step %d has no description", r.ID, i)
		}
	}

	if r.StartedAt == nil {
		r.StartedAt = &now
	}
	for _, d := range decisions {
		if d.MadeAt.IsZero() {
			d.MadeAt = now
		}
		r.Decisions = append(r.Decisions, d)
	}
	r.NextSteps = append(r.NextSteps, next...)
	if notes != "" {
		r.Notes = notes
	}
	r.Status = portfolio.ReviewCompleted
	r.CompletedAt = &now
	return nil
}

// CancelReview closes an open review without decisions.
func CancelReview(r *portfolio.StrategyReview, reason string, now time.Time) error {
	if r.Status.Closed() {
		return fmt.Errorf("cancel review %s: %w (status %s)", r.ID, ErrReviewClosed, r.Status)
	}
	r.Status = portfolio.ReviewCancelled
	r.CompletedAt = &now
	if reason != "" {
		r.Notes = reason
	}
	return nil
}
