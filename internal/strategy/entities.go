package strategy

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"strategy-mcp/internal/portfolio"

	"github.com/rs/zerolog/log"
)

// CreateMilestone stores a new milestone. Missing ids are generated and a missing
// status defaults to planned. Linked goals must exist.
func (s *Service) CreateMilestone(ctx context.Context, m portfolio.Milestone) (portfolio.Milestone, error) {
	now := s.timestamp()
	if m.ID == "" {
		m.ID = portfolio.NewID("ms")
	}
	if m.Status == "" {
		m.Status = portfolio.StatusPlanned
	}
	if m.Status == portfolio.StatusCompleted && m.CompletedDate == nil {
		m.CompletedDate = &now
	}
	m.CreatedAt, m.UpdatedAt = now, now
	if err := m.Validate(); err != nil {
		return portfolio.Milestone{}, err
	}

	err := s.mutate(ctx, "create milestone", func(snap *portfolio.Snapshot) error {
		if _, err := snap.Milestone(m.ID); err == nil {
			return duplicate("milestone", m.ID)
		}
		for _, id := range m.LinkedGoals {
			if _, err := snap.Goal(id); err != nil {
				return err
			}
		}
		snap.Milestones = append(snap.Milestones, m)
		return nil
	})
	if err != nil {
		return portfolio.Milestone{}, err
	}

	log.Info().Str("milestone", m.ID).Str("category", string(m.Category)).Msg("Milestone created")
	return m, nil
}

// MilestoneUpdate changes the delivery state of a milestone. Nil fields are left as is.
type MilestoneUpdate struct {
	ID                  string                    `json:"id"`
	Status              portfolio.MilestoneStatus `json:"status,omitempty"`
	CompletedDate       *time.Time                `json:"completed_date,omitempty"`
	PlannedDate         *time.Time                `json:"planned_date,omitempty"`
	StrategicImportance *float64                  `json:"strategic_importance,omitempty"`
	RevenueImplication  *float64                  `json:"revenue_implication,omitempty"`
}

// UpdateMilestoneProgress applies a status transition and optional re-estimates.
// Completed and cancelled milestones accept no further transitions.
func (s *Service) UpdateMilestoneProgress(ctx context.Context, u MilestoneUpdate) (portfolio.Milestone, error) {
	var out portfolio.Milestone
	err := s.mutate(ctx, "update milestone", func(snap *portfolio.Snapshot) error {
		i, err := snap.Milestone(u.ID)
		if err != nil {
			return err
		}
		m := snap.Milestones[i]
		now := s.timestamp()

		if u.Status != "" && u.Status != m.Status {
			if !m.Status.CanTransition(u.Status) {
				return portfolio.ValidationErrors{{
					Entity:  "milestone " + m.ID,
					Field:   "status",
					Message: fmt.Sprintf("cannot move from %s to %s", m.Status, u.Status),
				}}
			}
			m.Status = u.Status
		}
		if u.PlannedDate != nil {
			m.PlannedDate = *u.PlannedDate
		}
		if u.StrategicImportance != nil {
			m.StrategicImportance = *u.StrategicImportance
		}
		if u.RevenueImplication != nil {
			m.RevenueImplication = *u.RevenueImplication
		}
		if u.CompletedDate != nil {
			m.CompletedDate = u.CompletedDate
		}
		if m.Status == portfolio.StatusCompleted && m.CompletedDate == nil {
			m.CompletedDate = &now
		}
		m.UpdatedAt = now

		if err := m.Validate(); err != nil {
			return err
		}
		snap.Milestones[i] = m
		out = m
		return nil
	})
	if err != nil {
		return portfolio.Milestone{}, err
	}

	log.Info().Str("milestone", out.ID).Str("status", string(out.Status)).Msg("Milestone updated")
	return out, nil
}

// CreateGoal stores a new goal. Missing ids are generated, a missing status
// defaults to active and undated progress entries take the creation time.
func (s *Service) CreateGoal(ctx context.Context, g portfolio.Goal) (portfolio.Goal, error) {
	now := s.timestamp()
	if g.ID == "" {
		g.ID = portfolio.NewID("goal")
	}
	if g.Status == "" {
		g.Status = portfolio.GoalActive
	}
	g.CreatedAt, g.UpdatedAt = now, now
	g.ProgressHistory = slices.Clone(g.ProgressHistory)
	for i := range g.ProgressHistory {
		if g.ProgressHistory[i].Timestamp.IsZero() {
			g.ProgressHistory[i].Timestamp = now
		}
	}
	if err := g.Validate(); err != nil {
		return portfolio.Goal{}, err
	}

	err := s.mutate(ctx, "create goal", func(snap *portfolio.Snapshot) error {
		if _, err := snap.Goal(g.ID); err == nil {
			return duplicate("goal", g.ID)
		}
		snap.Goals = append(snap.Goals, g)
		return nil
	})
	if err != nil {
		return portfolio.Goal{}, err
	}

	log.Info().Str("goal", g.ID).Str("category", string(g.Category)).Msg("Goal created")
	return g, nil
}

// GoalProgress is one progress report for a goal.
type GoalProgress struct {
	ID         string               `json:"id"`
	Progress   float64              `json:"progress"`
	Confidence *float64             `json:"confidence,omitempty"`
	Status     portfolio.GoalStatus `json:"status,omitempty"`
	Note       string               `json:"note,omitempty"`
}

// UpdateGoalProgress appends a progress snapshot and optionally revises confidence
// and status. History is never rewritten.
func (s *Service) UpdateGoalProgress(ctx context.Context, p GoalProgress) (portfolio.Goal, error) {
	var out portfolio.Goal
	err := s.mutate(ctx, "update goal", func(snap *portfolio.Snapshot) error {
		i, err := snap.Goal(p.ID)
		if err != nil {
			return err
		}
		g := snap.Goals[i]
		now := s.timestamp()

		if p.Confidence != nil {
			g.Confidence = *p.Confidence
		}
		if p.Status != "" {
			g.Status = p.Status
		}
		g.ProgressHistory = append(slices.Clone(g.ProgressHistory), portfolio.ProgressSnapshot{
			Timestamp:  now,
			Progress:   p.Progress,
			Confidence: g.Confidence,
			Note:       p.Note,
		})
		g.UpdatedAt = now

		if err := g.Validate(); err != nil {
			return err
		}
		snap.Goals[i] = g
		out = g
		return nil
	})
	if err != nil {
		return portfolio.Goal{}, err
	}

	log.Info().Str("goal", out.ID).Float64("progress", p.Progress).Float64("health", out.Health()).Msg("Goal progress recorded")
	return out, nil
}

// RecordConversation stores a strategy conversation. Linked entities must exist.
func (s *Service) RecordConversation(ctx context.Context, c portfolio.Conversation) (portfolio.Conversation, error) {
	if c.ID == "" {
		c.ID = portfolio.NewID("conv")
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.timestamp()
	}
	if err := c.Validate(); err != nil {
		return portfolio.Conversation{}, err
	}

	err := s.mutate(ctx, "record conversation", func(snap *portfolio.Snapshot) error {
		if slices.ContainsFunc(snap.Conversations, func(x portfolio.Conversation) bool { return x.ID == c.ID }) {
			return duplicate("conversation", c.ID)
		}
		for _, id := range c.LinkedMilestones {
			if _, err := snap.Milestone(id); err != nil {
				return err
			}
		}
		for _, id := range c.LinkedGoals {
			if _, err := snap.Goal(id); err != nil {
				return err
			}
		}
		snap.Conversations = append(snap.Conversations, c)
		return nil
	})
	if err != nil {
		return portfolio.Conversation{}, err
	}

	log.Info().Str("conversation", c.ID).Str("type", string(c.Type)).Msg("Conversation recorded")
	return c, nil
}

// MilestoneFilter narrows ListMilestones. Empty fields match everything.
type MilestoneFilter struct {
	Status   portfolio.MilestoneStatus   `json:"status,omitempty"`
	Category portfolio.MilestoneCategory `json:"category,omitempty"`
	GoalID   string                      `json:"goal_id,omitempty"`
}

// ListMilestones returns matching milestones ordered by planned date, then id.
func (s *Service) ListMilestones(ctx context.Context, f MilestoneFilter) ([]portfolio.Milestone, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if f.GoalID != "" {
		if _, err := snap.Goal(f.GoalID); err != nil {
			return nil, err
		}
	}

	out := []portfolio.Milestone{}
	for _, m := range snap.Milestones {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if f.GoalID != "" && !m.LinksGoal(f.GoalID) {
			continue
		}
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b portfolio.Milestone) int {
		if n := a.PlannedDate.Compare(b.PlannedDate); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GoalFilter narrows ListGoals. Empty fields match everything.
type GoalFilter struct {
	Status   portfolio.GoalStatus   `json:"status,omitempty"`
	Category portfolio.GoalCategory `json:"category,omitempty"`
}

// GoalView is a goal with its derived health score.
type GoalView struct {
	portfolio.Goal
	HealthScore float64 `json:"health"`
}

// ListGoals returns matching goals ordered by id.
func (s *Service) ListGoals(ctx context.Context, f GoalFilter) ([]GoalView, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := []GoalView{}
	for _, g := range snap.Goals {
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if f.Category != "" && g.Category != f.Category {
			continue
		}
		out = append(out, GoalView{Goal: g, HealthScore: g.Health()})
	}
	slices.SortFunc(out, func(a, b GoalView) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func duplicate(kind, id string) error {
	return portfolio.ValidationErrors{{
		Entity:  kind + " " + id,
		Field:   "id",
		Message: "already exists",
	}}
}
