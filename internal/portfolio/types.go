package portfolio

import (
	"time"
)

// MilestoneCategory classifies the kind of technical work a milestone delivers.
type MilestoneCategory string

const (
	CategoryArchitecture   MilestoneCategory = "architecture"
	CategoryFeature        MilestoneCategory = "feature"
	CategoryPerformance    MilestoneCategory = "performance"
	CategorySecurity       MilestoneCategory = "security"
	CategoryIntegration    MilestoneCategory = "integration"
	CategoryInfrastructure MilestoneCategory = "infrastructure"
)

// MilestoneCategories lists every category in matrix order.
var MilestoneCategories = []MilestoneCategory{
	CategoryArchitecture,
	CategoryFeature,
	CategoryPerformance,
	CategorySecurity,
	CategoryIntegration,
	CategoryInfrastructure,
}

// MilestoneStatus is the delivery state of a milestone.
type MilestoneStatus string

const (
	StatusPlanned    MilestoneStatus = "planned"
	StatusInProgress MilestoneStatus = "in-progress"
	StatusCompleted  MilestoneStatus = "completed"
	StatusDelayed    MilestoneStatus = "delayed"
	StatusCancelled  MilestoneStatus = "cancelled"
)

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	StatusPlanned:    {StatusInProgress, StatusDelayed, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusDelayed, StatusCancelled},
	StatusDelayed:    {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
}

// CanTransition reports whether a milestone may move from s to next.
func (s MilestoneStatus) CanTransition(next MilestoneStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range milestoneTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s MilestoneStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Complexity is the assessed delivery complexity of a milestone.
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityVeryHigh Complexity = "very-high"
)

// MarketTiming describes how the milestone lands relative to the market.
type MarketTiming string

const (
	TimingEarly       MarketTiming = "early"
	TimingCompetitive MarketTiming = "competitive"
	TimingLate        MarketTiming = "late"
	TimingCritical    MarketTiming = "critical"
)

// Milestone is a discrete unit of technical work with assessed business importance.
type Milestone struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Category            MilestoneCategory `json:"category"`
	Status              MilestoneStatus   `json:"status"`
	Complexity          Complexity        `json:"complexity"`
	PlannedDate         time.Time         `json:"planned_date"`
	CompletedDate       *time.Time        `json:"completed_date,omitempty"`
	StrategicImportance float64           `json:"strategic_importance"`
	RevenueImplication  float64           `json:"revenue_implication"`
	CustomerImpact      float64           `json:"customer_impact,omitempty"`
	MarketShareImpact   float64           `json:"market_share_impact,omitempty"` // percentage points
	MarketTiming        MarketTiming      `json:"market_timing"`
	LinkedGoals         []string          `json:"linked_goals,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// LinksGoal reports whether the milestone is explicitly linked to goalID.
func (m *Milestone) LinksGoal(goalID string) bool {
	for _, id := range m.LinkedGoals {
		if id == goalID {
			return true
		}
	}
	return false
}

// GoalCategory classifies a business objective.
type GoalCategory string

const (
	GoalRevenue     GoalCategory = "revenue"
	GoalProduct     GoalCategory = "product"
	GoalMarket      GoalCategory = "market"
	GoalTechnical   GoalCategory = "technical"
	GoalOperational GoalCategory = "operational"
)

// GoalCategories lists every goal category in matrix order.
var GoalCategories = []GoalCategory{
	GoalRevenue,
	GoalProduct,
	GoalMarket,
	GoalTechnical,
	GoalOperational,
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalBlocked   GoalStatus = "blocked"
	GoalAchieved  GoalStatus = "achieved"
	GoalAbandoned GoalStatus = "abandoned"
)

// Open reports whether the goal is still being pursued.
func (s GoalStatus) Open() bool {
	return s == GoalActive || s == GoalBlocked
}

// DependencyType distinguishes what a goal depends on.
type DependencyType string

const (
	DependencyTechnical DependencyType = "technical"
	DependencyBusiness  DependencyType = "business"
	DependencyExternal  DependencyType = "external"
)

// Dependency is something a goal needs in order to be achieved.
// Technical dependencies name the required capability as a milestone category.
type Dependency struct {
	Type        DependencyType    `json:"type"`
	Description string            `json:"description"`
	Capability  MilestoneCategory `json:"capability,omitempty"`
	Critical    bool              `json:"critical,omitempty"`
}

// GoalMetric is a measurable target attached to a goal.
type GoalMetric struct {
	Name    string  `json:"name"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Unit    string  `json:"unit,omitempty"`
}

// ProgressSnapshot is one append-only progress record.
type ProgressSnapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Progress   float64   `json:"progress"` // 0-100
	Confidence float64   `json:"confidence"`
	Note       string    `json:"note,omitempty"`
}

// GoalMilestone is a business checkpoint inside a goal. It is not a technical Milestone.
type GoalMilestone struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"due_date"`
	Completed bool      `json:"completed"`
}

// Goal is a business objective tracked through progress snapshots.
type Goal struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description,omitempty"`
	Category        GoalCategory       `json:"category"`
	Status          GoalStatus         `json:"status"`
	Confidence      float64            `json:"confidence"` // author-supplied health proxy
	TargetDate      time.Time          `json:"target_date"`
	Metrics         []GoalMetric       `json:"metrics,omitempty"`
	ProgressHistory []ProgressSnapshot `json:"progress_history,omitempty"`
	Milestones      []GoalMilestone    `json:"milestones,omitempty"`
	Dependencies    []Dependency       `json:"dependencies,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// LatestProgress returns the most recent progress value, or 0 without history.
func (g *Goal) LatestProgress() float64 {
	if len(g.ProgressHistory) == 0 {
		return 0
	}
	return g.ProgressHistory[len(g.ProgressHistory)-1].Progress
}

// Health is a heuristic 0-100 score blending confidence and latest progress.
func (g *Goal) Health() float64 {
	return 0.6*g.Confidence + 0.4*g.LatestProgress()
}

// ConversationType classifies captured strategy conversations.
type ConversationType string

const (
	ConversationStrategyReview ConversationType = "strategy-review"
	ConversationPlanning       ConversationType = "planning"
	ConversationRetrospective  ConversationType = "retrospective"
	ConversationTechnical      ConversationType = "technical"
	ConversationBusiness       ConversationType = "business"
)

// Conversation is a captured discussion relevant to strategy.
type Conversation struct {
	ID               string           `json:"id"`
	Type             ConversationType `json:"type"`
	Title            string           `json:"title"`
	Summary          string           `json:"summary,omitempty"`
	Participants     []string         `json:"participants,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	LinkedMilestones []string         `json:"linked_milestones,omitempty"`
	LinkedGoals      []string         `json:"linked_goals,omitempty"`
}
