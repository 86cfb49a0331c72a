package forecast

import (
	"fmt"
	"testing"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/rules"
)

func depGoal(id string, capability portfolio.MilestoneCategory, critical bool) portfolio.Goal {
	return portfolio.Goal{
		ID:       id,
		Title:    "Goal " + id,
		Category: portfolio.GoalRevenue,
		Status:   portfolio.GoalActive,
		Dependencies: []portfolio.Dependency{
			{Type: portfolio.DependencyTechnical, Description: "needs it", Capability: capability, Critical: critical},
		},
	}
}

func simpleMilestone(id string, cat portfolio.MilestoneCategory, status portfolio.MilestoneStatus, revenue float64, links ...string) portfolio.Milestone {
	return portfolio.Milestone{ID: id, Name: id, Category: cat, Status: status, RevenueImplication: revenue, LinkedGoals: links}
}

func TestIdentifyStrategyGaps_Capability(t *testing.T) {
	e := NewEngine(rules.Default())

	linked := simpleMilestone("m-linked", portfolio.CategoryFeature, portfolio.StatusInProgress, 200000, "g1")
	weakSec := simpleMilestone("m-sec", portfolio.CategorySecurity, portfolio.StatusPlanned, 40000)

	tests := []struct {
		name       string
		capability portfolio.MilestoneCategory
		critical   bool
		strength   float64
		market     *MarketContext
		expected   portfolio.Severity // empty means no gap
	}{
		{"MissingCritical", portfolio.CategoryIntegration, true, 0, nil, portfolio.SeverityCritical},
		{"Missing", portfolio.CategoryIntegration, false, 0, nil, portfolio.SeveritySignificant},
		{"MissingHighPressure", portfolio.CategoryIntegration, false, 0, &MarketContext{CompetitivePressure: PressureHigh}, portfolio.SeverityCritical},
		{"WeakCritical", portfolio.CategorySecurity, true, 40, nil, portfolio.SeveritySignificant},
		{"Weak", portfolio.CategorySecurity, false, 40, nil, portfolio.SeverityModerate},
		{"WeakLowPressure", portfolio.CategorySecurity, false, 40, &MarketContext{CompetitivePressure: PressureLow}, portfolio.SeverityModerate},
		{"Covered", portfolio.CategorySecurity, true, 50, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goals := []portfolio.Goal{depGoal("g1", tt.capability, tt.critical)}
			cs := []correlation.ProgressCorrelation{
				{MilestoneID: "m-sec", GoalID: "g1", CorrelationStrength: tt.strength},
				{MilestoneID: "m-linked", GoalID: "g1", CorrelationStrength: 90},
			}

			gaps, err := e.IdentifyStrategyGaps([]portfolio.Milestone{linked, weakSec}, goals, cs, tt.market)
			if err != nil {
				t.Fatalf("IdentifyStrategyGaps() error = %v", err)
			}
			if tt.expected == "" {
				if len(gaps) != 0 {
					t.Errorf("gaps = %+v, want none", gaps)
				}
				return
			}
			if len(gaps) != 1 {
				t.Fatalf("len(gaps) = %d, want 1: %+v", len(gaps), gaps)
			}
			g := gaps[0]
			if g.Type != GapCapability || g.Severity != tt.expected {
				t.Errorf("gap = %s/%s, want capability/%s", g.Type, g.Severity, tt.expected)
			}
			if len(g.RecommendedActions) < 2 {
				t.Errorf("RecommendedActions = %v, want at least 2", g.RecommendedActions)
			}

			var related float64
			for _, id := range g.MilestoneIDs {
				switch id {
				case "m-linked":
					related += 200000
				case "m-sec":
					related += 40000
				}
			}
			factor := rules.Default().Gaps.ImpactFactor[string(tt.expected)]
			if want := related * factor; !approx(g.EstimatedImpact.RevenueAtRisk, want) {
				t.Errorf("RevenueAtRisk = %v, want %v", g.EstimatedImpact.RevenueAtRisk, want)
			}
			if want := g.EstimatedImpact.RevenueAtRisk * 0.5; !approx(g.EstimatedImpact.OpportunityCost, want) {
				t.Errorf("OpportunityCost = %v, want %v", g.EstimatedImpact.OpportunityCost, want)
			}
		})
	}
}

func TestIdentifyStrategyGaps_ClosedGoalsIgnored(t *testing.T) {
	e := NewEngine(rules.Default())
	g := depGoal("g1", portfolio.CategoryIntegration, true)
	g.Status = portfolio.GoalAchieved

	gaps, err := e.IdentifyStrategyGaps(nil, []portfolio.Goal{g}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(gaps) != 0 {
		t.Errorf("gaps = %+v, want none for achieved goal", gaps)
	}
}

func TestIdentifyStrategyGaps_Execution(t *testing.T) {
	e := NewEngine(rules.Default())

	build := func(delayed, total int) []portfolio.Milestone {
		var out []portfolio.Milestone
		for i := 0; i < total; i++ {
			status := portfolio.StatusInProgress
			if i < delayed {
				status = portfolio.StatusDelayed
			}
			out = append(out, simpleMilestone(fmt.Sprintf("p%d", i), portfolio.CategoryPerformance, status, 10000))
		}
		// Cancelled work does not count towards the ratio.
		out = append(out, simpleMilestone("p-cancelled", portfolio.CategoryPerformance, portfolio.StatusCancelled, 10000))
		return out
	}

	tests := []struct {
		name     string
		delayed  int
		total    int
		expected portfolio.Severity
	}{
		{"Critical", 3, 5, portfolio.SeverityCritical},
		{"Significant", 1, 2, portfolio.SeveritySignificant},
		{"Moderate", 2, 5, portfolio.SeverityModerate},
		{"AtThreshold", 3, 10, ""},
		{"Healthy", 1, 4, ""},
		{"TooFewSamples", 1, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gaps, err := e.IdentifyStrategyGaps(build(tt.delayed, tt.total), nil, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.expected == "" {
				if len(gaps) != 0 {
					t.Errorf("gaps = %+v, want none", gaps)
				}
				return
			}
			if len(gaps) != 1 {
				t.Fatalf("len(gaps) = %d, want 1", len(gaps))
			}
			g := gaps[0]
			if g.Type != GapExecution || g.Severity != tt.expected {
				t.Errorf("gap = %s/%s, want execution/%s", g.Type, g.Severity, tt.expected)
			}
			if len(g.MilestoneIDs) != tt.delayed {
				t.Errorf("MilestoneIDs = %v, want %d delayed", g.MilestoneIDs, tt.delayed)
			}
			factor := rules.Default().Gaps.ImpactFactor[string(tt.expected)]
			if want := float64(tt.delayed) * 10000 * factor; !approx(g.EstimatedImpact.RevenueAtRisk, want) {
				t.Errorf("RevenueAtRisk = %v, want %v", g.EstimatedImpact.RevenueAtRisk, want)
			}
		})
	}
}

func TestIdentifyStrategyGaps_OrderAndValidation(t *testing.T) {
	e := NewEngine(rules.Default())
	milestones := []portfolio.Milestone{
		simpleMilestone("a1", portfolio.CategoryArchitecture, portfolio.StatusDelayed, 0),
		simpleMilestone("a2", portfolio.CategoryArchitecture, portfolio.StatusPlanned, 0),
		simpleMilestone("a3", portfolio.CategoryArchitecture, portfolio.StatusPlanned, 0),
	}
	goals := []portfolio.Goal{depGoal("g1", portfolio.CategoryIntegration, true)}

	gaps, err := e.IdentifyStrategyGaps(milestones, goals, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(gaps) != 2 {
		t.Fatalf("len(gaps) = %d, want 2", len(gaps))
	}
	if gaps[0].Severity.Rank() < gaps[1].Severity.Rank() {
		t.Errorf("gaps not ordered by severity: %s before %s", gaps[0].Severity, gaps[1].Severity)
	}

	bad := &MarketContext{CompetitivePressure: "extreme", Signals: []MarketSignal{{Probability: 2, Impact: 50}}}
	if _, err := e.IdentifyStrategyGaps(milestones, goals, nil, bad); err == nil {
		t.Error("IdentifyStrategyGaps() with invalid market context expected error")
	}
}

func TestCountAtLeast(t *testing.T) {
	gaps := []StrategyGap{
		{Severity: portfolio.SeverityCritical},
		{Severity: portfolio.SeverityModerate},
		{Severity: portfolio.SeveritySignificant},
		{Severity: portfolio.SeverityModerate},
	}

	n, labels := CountAtLeast(gaps, portfolio.SeveritySignificant)
	if n != 2 {
		t.Errorf("CountAtLeast() = %d, want 2", n)
	}
	if len(labels) != 3 {
		t.Errorf("labels = %v, want 3 distinct severities", labels)
	}
}
