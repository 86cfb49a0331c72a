package engine

import (
	"context"
	"reflect"
	"testing"
	"time"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/store"
)

var genNow = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	tests := []struct {
		scenario string
	}{
		{ScenarioHealthy},
		{ScenarioSlipping},
		{ScenarioGapped},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			cfg := GeneratorConfig{Scenario: tt.scenario, Count: 30, Seed: 7, Now: genNow}
			snap := Generate(cfg)

			if err := snap.Validate(); err != nil {
				t.Fatalf("Generate() produced invalid snapshot: %v", err)
			}
			if len(snap.Milestones) != 30 {
				t.Errorf("len(Milestones) = %d, want 30", len(snap.Milestones))
			}
			if len(snap.Goals) != len(goalTemplates) {
				t.Errorf("len(Goals) = %d, want %d", len(snap.Goals), len(goalTemplates))
			}
			if again := Generate(cfg); !reflect.DeepEqual(snap, again) {
				t.Error("Generate() is not deterministic for a fixed seed")
			}

			for _, m := range snap.Milestones {
				if m.Status == portfolio.StatusCompleted && m.CompletedDate.After(genNow) {
					t.Errorf("%s completed in the future: %v", m.ID, m.CompletedDate)
				}
				if tt.scenario == ScenarioGapped &&
					(m.Category == portfolio.CategorySecurity || m.Category == portfolio.CategoryInfrastructure) {
					t.Errorf("%s has category %s in the gapped scenario", m.ID, m.Category)
				}
			}
		})
	}
}

func TestSave(t *testing.T) {
	st, err := store.Open(store.BackendJSON, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := Save(ctx, st, Generate(GeneratorConfig{Seed: 3, Now: genNow})); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Milestones) != 12 || len(got.Triggers) != 2 {
		t.Errorf("loaded %d milestones and %d triggers, want 12 and 2", len(got.Milestones), len(got.Triggers))
	}

	bad := Generate(GeneratorConfig{Seed: 3, Now: genNow})
	bad.Goals[0].Confidence = 140
	if err := Save(ctx, st, bad); err == nil {
		t.Error("Save() accepted an invalid snapshot")
	}
}
