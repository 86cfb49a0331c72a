package forecast

import (
	"testing"

	"strategy-mcp/internal/rules"
)

func scenarioWithRevenue(key string, revenue float64) ScenarioForecast {
	return ScenarioForecast{
		Key: key,
		BusinessMetrics: BusinessMetrics{
			ProjectedRevenue:    Triple{Conservative: revenue * 0.9, Realistic: revenue, Optimistic: revenue * 1.1},
			CustomerAcquisition: Triple{Realistic: revenue / 1000},
			MarketShare:         Triple{Realistic: revenue / 100000},
		},
		TechnicalMetrics: TechnicalMetrics{MilestonesCompleted: Triple{Realistic: revenue / 40000}},
	}
}

func TestWeighted(t *testing.T) {
	w := rules.Default().Forecast.BlendWeights
	scenarios := []ScenarioForecast{
		scenarioWithRevenue(ScenarioRealistic, 120000),
		scenarioWithRevenue(ScenarioConservative, 80000),
		scenarioWithRevenue(ScenarioOptimistic, 160000),
		scenarioWithRevenue(ScenarioDisruption, 5000),
	}

	got := Weighted(scenarios, w)
	if got.Revenue != 120000 {
		t.Errorf("Revenue = %v, want 120000", got.Revenue)
	}
	if got.Customers != 120 {
		t.Errorf("Customers = %v, want 120", got.Customers)
	}
	if got.MilestonesCompleted != 3 {
		t.Errorf("MilestonesCompleted = %v, want 3", got.MilestonesCompleted)
	}
	if got.Degenerate || len(got.MissingScenarios) != 0 {
		t.Errorf("unexpected degenerate result: %+v", got)
	}
}

func TestWeighted_MatchesBlendFormula(t *testing.T) {
	w := rules.Default().Forecast.BlendWeights
	sets := [][3]float64{
		{0, 0, 0},
		{1, 2, 3},
		{12345.67, 23456.78, 34567.89},
		{-500, 1000, 2500},
	}

	for _, v := range sets {
		scenarios := []ScenarioForecast{
			scenarioWithRevenue(ScenarioConservative, v[0]),
			scenarioWithRevenue(ScenarioRealistic, v[1]),
			scenarioWithRevenue(ScenarioOptimistic, v[2]),
		}
		want := 0.25*v[0] + 0.5*v[1] + 0.25*v[2]
		if got := Weighted(scenarios, w).Revenue; !approx(got, want) {
			t.Errorf("Weighted(%v).Revenue = %v, want %v", v, got, want)
		}
	}
}

func TestWeighted_MissingScenario(t *testing.T) {
	w := rules.Default().Forecast.BlendWeights
	got := Weighted([]ScenarioForecast{scenarioWithRevenue(ScenarioRealistic, 120000)}, w)

	if got.Revenue != 60000 {
		t.Errorf("Revenue = %v, want 60000 (realistic weight only)", got.Revenue)
	}
	if !got.Degenerate {
		t.Error("Degenerate = false, want true")
	}
	if len(got.MissingScenarios) != 2 {
		t.Errorf("MissingScenarios = %v, want conservative and optimistic", got.MissingScenarios)
	}
	if len(got.Warnings) == 0 {
		t.Error("expected a warning")
	}
}

func TestIntervals(t *testing.T) {
	scenarios := []ScenarioForecast{
		scenarioWithRevenue(ScenarioConservative, 80000),
		scenarioWithRevenue(ScenarioRealistic, 120000),
		scenarioWithRevenue(ScenarioOptimistic, 160000),
		{Key: ScenarioDisruption, Degenerate: true},
	}

	got, err := Intervals(scenarios, 80)
	if err != nil {
		t.Fatalf("Intervals() error = %v", err)
	}
	if got.Revenue.Samples != 9 {
		t.Errorf("Revenue.Samples = %d, want 9", got.Revenue.Samples)
	}
	if got.Revenue.Median != 120000 {
		t.Errorf("Revenue.Median = %v, want 120000", got.Revenue.Median)
	}
	if got.Revenue.Lower > got.Revenue.Median || got.Revenue.Upper < got.Revenue.Median {
		t.Errorf("Revenue interval out of order: %+v", got.Revenue)
	}

	if _, err := Intervals(scenarios, 120); err == nil {
		t.Error("Intervals() with level 120 expected error")
	}
}
