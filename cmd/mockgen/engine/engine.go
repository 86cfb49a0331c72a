package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/store"
)

// Scenarios understood by Generate.
const (
	ScenarioHealthy  = "healthy"
	ScenarioSlipping = "slipping"
	ScenarioGapped   = "gapped"
)

type GeneratorConfig struct {
	Scenario string
	Count    int // milestones
	Seed     int64
	Now      time.Time
}

var goalTemplates = []struct {
	id       string
	title    string
	category portfolio.GoalCategory
	needs    portfolio.MilestoneCategory
}{
	{"goal-revenue", "Grow recurring revenue", portfolio.GoalRevenue, portfolio.CategoryFeature},
	{"goal-product", "Ship the self-service product tier", portfolio.GoalProduct, portfolio.CategoryIntegration},
	{"goal-market", "Win mid-market accounts", portfolio.GoalMarket, portfolio.CategorySecurity},
	{"goal-technical", "Halve page latency", portfolio.GoalTechnical, portfolio.CategoryPerformance},
	{"goal-operational", "Cut on-call load", portfolio.GoalOperational, portfolio.CategoryInfrastructure},
}

var milestoneNames = map[portfolio.MilestoneCategory][]string{
	portfolio.CategoryArchitecture:   {"Split billing service", "Event bus rollout", "Tenant isolation"},
	portfolio.CategoryFeature:        {"Usage-based pricing", "Team workspaces", "Customer dashboard revenue view"},
	portfolio.CategoryPerformance:    {"Query cache", "CDN migration", "Search index rebuild"},
	portfolio.CategorySecurity:       {"SSO for enterprise customers", "Audit log", "SOC 2 controls"},
	portfolio.CategoryIntegration:    {"CRM sync", "Public API v2", "Webhook delivery"},
	portfolio.CategoryInfrastructure: {"Kubernetes upgrade", "Multi-region failover", "Observability stack"},
}

// Generate builds a synthetic portfolio. The same config always yields the same snapshot.
func Generate(cfg GeneratorConfig) *portfolio.Snapshot {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	cfg.Now = cfg.Now.UTC()
	if cfg.Count <= 0 {
		cfg.Count = 12
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	created := cfg.Now.AddDate(0, 0, -90)

	snap := portfolio.NewSnapshot()
	for _, tpl := range goalTemplates {
		g := portfolio.Goal{
			ID:         tpl.id,
			Title:      tpl.title,
			Category:   tpl.category,
			Status:     portfolio.GoalActive,
			Confidence: 40 + rng.Float64()*50,
			TargetDate: cfg.Now.AddDate(0, 6, 0),
			Dependencies: []portfolio.Dependency{{
				Type:        portfolio.DependencyTechnical,
				Description: fmt.Sprintf("Needs %s work", tpl.needs),
				Capability:  tpl.needs,
				Critical:    rng.Float64() < 0.5,
			}},
			CreatedAt: created,
			UpdatedAt: created,
		}
		progress := 0.0
		for i := 0; i < 3; i++ {
			progress = math.Min(100, progress+5+rng.Float64()*20)
			g.ProgressHistory = append(g.ProgressHistory, portfolio.ProgressSnapshot{
				Timestamp:  created.AddDate(0, 0, 30*i),
				Progress:   math.Round(progress),
				Confidence: g.Confidence,
			})
		}
		snap.Goals = append(snap.Goals, g)
	}

	categories := portfolio.MilestoneCategories
	if cfg.Scenario == ScenarioGapped {
		// Leave security and infrastructure unserved so dependent goals show capability gaps.
		categories = []portfolio.MilestoneCategory{
			portfolio.CategoryArchitecture, portfolio.CategoryFeature,
			portfolio.CategoryPerformance, portfolio.CategoryIntegration,
		}
	}

	for i := 0; i < cfg.Count; i++ {
		cat := categories[rng.Intn(len(categories))]
		names := milestoneNames[cat]
		offset := -60 + rng.Intn(240)
		planned := cfg.Now.AddDate(0, 0, offset)

		m := portfolio.Milestone{
			ID:                  fmt.Sprintf("ms-%03d", i+1),
			Name:                names[rng.Intn(len(names))],
			Category:            cat,
			Complexity:          []portfolio.Complexity{portfolio.ComplexityLow, portfolio.ComplexityMedium, portfolio.ComplexityHigh, portfolio.ComplexityVeryHigh}[rng.Intn(4)],
			PlannedDate:         planned,
			StrategicImportance: math.Round(30 + rng.Float64()*70),
			RevenueImplication:  math.Round(rng.Float64()*200) * 1000,
			CustomerImpact:      math.Round(rng.Float64() * 50),
			MarketShareImpact:   math.Round(rng.Float64()*20) / 10,
			MarketTiming:        []portfolio.MarketTiming{portfolio.TimingEarly, portfolio.TimingCompetitive, portfolio.TimingLate, portfolio.TimingCritical}[rng.Intn(4)],
			CreatedAt:           created,
			UpdatedAt:           created,
		}
		for _, tpl := range goalTemplates {
			if tpl.needs == cat {
				m.LinkedGoals = []string{tpl.id}
			}
		}

		m.Status = status(rng, cfg, planned)
		if m.Status == portfolio.StatusCompleted {
			done := planned
			if cfg.Scenario == ScenarioSlipping {
				done = planned.AddDate(0, 0, int(weibullSample(rng, 0.8, 12)))
			}
			if done.After(cfg.Now) {
				done = cfg.Now
			}
			m.CompletedDate = &done
		}
		snap.Milestones = append(snap.Milestones, m)
	}

	snap.Triggers = []portfolio.StrategyReviewTrigger{
		{
			ID: "trigger-goal-health", Name: "Goal health drop", Type: portfolio.TriggerThresholdBased,
			Enabled: true, Priority: portfolio.PriorityHigh,
			Conditions: []portfolio.TriggerCondition{{Type: portfolio.ConditionGoalHealth, Operator: portfolio.OpLessThan, Value: 50}},
			CreatedAt:  created, UpdatedAt: created,
		},
		{
			ID: "trigger-critical-gap", Name: "Critical strategy gap", Type: portfolio.TriggerEventBased,
			Enabled: true, Priority: portfolio.PriorityCritical,
			Conditions: []portfolio.TriggerCondition{{Type: portfolio.ConditionStrategyGap, Operator: portfolio.OpGreaterThan, Value: 0, Severity: portfolio.SeverityCritical}},
			CreatedAt:  created, UpdatedAt: created,
		},
	}
	return snap
}

func status(rng *rand.Rand, cfg GeneratorConfig, planned time.Time) portfolio.MilestoneStatus {
	delayRate := 0.1
	if cfg.Scenario == ScenarioSlipping {
		delayRate = 0.6
	}
	if planned.Before(cfg.Now) {
		if rng.Float64() < delayRate {
			return portfolio.StatusDelayed
		}
		return portfolio.StatusCompleted
	}
	if planned.Sub(cfg.Now) < 30*24*time.Hour {
		return portfolio.StatusInProgress
	}
	return portfolio.StatusPlanned
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save validates the snapshot and writes it through the store.
func Save(ctx context.Context, st store.Store, snap *portfolio.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("generated portfolio is invalid: %w", err)
	}
	return st.Save(ctx, snap)
}
