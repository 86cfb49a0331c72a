package strategy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/store"
	"strategy-mcp/internal/trigger"
)

var testNow = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(store.BackendJSON, filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(st, nil, WithClock(func() time.Time { return testNow }))
}

func date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

// seed creates two goals and three milestones:
// g-rev (revenue, confidence 80) and g-ops (operational, confidence 30, needs infrastructure).
func seed(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()

	goals := []portfolio.Goal{
		{ID: "g-rev", Title: "Grow enterprise revenue", Category: portfolio.GoalRevenue, Confidence: 80},
		{ID: "g-ops", Title: "Reduce operating cost", Category: portfolio.GoalOperational, Confidence: 30,
			Dependencies: []portfolio.Dependency{{Type: portfolio.DependencyTechnical, Description: "autoscaling", Capability: portfolio.CategoryInfrastructure, Critical: true}}},
	}
	for _, g := range goals {
		if _, err := s.CreateGoal(ctx, g); err != nil {
			t.Fatalf("CreateGoal(%s) error = %v", g.ID, err)
		}
	}

	milestones := []portfolio.Milestone{
		{ID: "m-sso", Name: "Enterprise SSO", Category: portfolio.CategorySecurity, Complexity: portfolio.ComplexityMedium,
			PlannedDate: date("2026-06-15"), StrategicImportance: 85, RevenueImplication: 120000,
			MarketTiming: portfolio.TimingCompetitive, LinkedGoals: []string{"g-rev"}},
		{ID: "m-billing", Name: "Usage billing", Category: portfolio.CategoryFeature, Complexity: portfolio.ComplexityHigh,
			PlannedDate: date("2026-07-01"), StrategicImportance: 75, RevenueImplication: 80000,
			MarketTiming: portfolio.TimingEarly, LinkedGoals: []string{"g-rev"}},
		{ID: "m-cache", Name: "Query cache", Category: portfolio.CategoryPerformance, Complexity: portfolio.ComplexityLow,
			PlannedDate: date("2026-12-01"), StrategicImportance: 40, MarketTiming: portfolio.TimingLate},
	}
	for _, m := range milestones {
		if _, err := s.CreateMilestone(ctx, m); err != nil {
			t.Fatalf("CreateMilestone(%s) error = %v", m.ID, err)
		}
	}

	if _, err := s.UpdateGoalProgress(ctx, GoalProgress{ID: "g-rev", Progress: 50, Note: "Q2 check-in"}); err != nil {
		t.Fatalf("UpdateGoalProgress() error = %v", err)
	}
}

func TestCreateMilestone_Defaults(t *testing.T) {
	s := newTestService(t)
	seed(t, s)

	m, err := s.CreateMilestone(context.Background(), portfolio.Milestone{
		Name: "Audit log", Category: portfolio.CategorySecurity, Complexity: portfolio.ComplexityLow,
		PlannedDate: date("2026-06-01"), StrategicImportance: 50, MarketTiming: portfolio.TimingEarly,
	})
	if err != nil {
		t.Fatalf("CreateMilestone() error = %v", err)
	}
	if m.ID == "" || m.Status != portfolio.StatusPlanned || !m.CreatedAt.Equal(testNow) {
		t.Errorf("CreateMilestone() = %+v", m)
	}
}

func TestCreateMilestone_Rejects(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	valid := portfolio.Milestone{
		Name: "Audit log", Category: portfolio.CategorySecurity, Complexity: portfolio.ComplexityLow,
		PlannedDate: date("2026-06-01"), StrategicImportance: 50, MarketTiming: portfolio.TimingEarly,
	}

	unknownGoal := valid
	unknownGoal.LinkedGoals = []string{"g-missing"}
	if _, err := s.CreateMilestone(ctx, unknownGoal); !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("unknown linked goal: error = %v, want not found", err)
	}

	badImportance := valid
	badImportance.StrategicImportance = 120
	var verrs portfolio.ValidationErrors
	if _, err := s.CreateMilestone(ctx, badImportance); !errors.As(err, &verrs) {
		t.Errorf("importance 120: error = %v, want ValidationErrors", err)
	}

	dup := valid
	dup.ID = "m-sso"
	if _, err := s.CreateMilestone(ctx, dup); !errors.As(err, &verrs) {
		t.Errorf("duplicate id: error = %v, want ValidationErrors", err)
	}
}

func TestUpdateMilestoneProgress_Transitions(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	var verrs portfolio.ValidationErrors
	if _, err := s.UpdateMilestoneProgress(ctx, MilestoneUpdate{ID: "m-sso", Status: portfolio.StatusCompleted}); !errors.As(err, &verrs) {
		t.Fatalf("planned -> completed: error = %v, want ValidationErrors", err)
	}

	if _, err := s.UpdateMilestoneProgress(ctx, MilestoneUpdate{ID: "m-sso", Status: portfolio.StatusInProgress}); err != nil {
		t.Fatalf("planned -> in-progress: error = %v", err)
	}
	m, err := s.UpdateMilestoneProgress(ctx, MilestoneUpdate{ID: "m-sso", Status: portfolio.StatusCompleted})
	if err != nil {
		t.Fatalf("in-progress -> completed: error = %v", err)
	}
	if m.CompletedDate == nil || !m.CompletedDate.Equal(testNow) {
		t.Errorf("CompletedDate = %v, want %v", m.CompletedDate, testNow)
	}

	if _, err := s.UpdateMilestoneProgress(ctx, MilestoneUpdate{ID: "m-sso", Status: portfolio.StatusDelayed}); !errors.As(err, &verrs) {
		t.Errorf("completed -> delayed: error = %v, want ValidationErrors", err)
	}
	if _, err := s.UpdateMilestoneProgress(ctx, MilestoneUpdate{ID: "m-nope", Status: portfolio.StatusDelayed}); !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("unknown milestone: error = %v, want not found", err)
	}
}

func TestUpdateGoalProgress_AppendsHistory(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	conf := 60.0
	g, err := s.UpdateGoalProgress(ctx, GoalProgress{ID: "g-rev", Progress: 70, Confidence: &conf})
	if err != nil {
		t.Fatalf("UpdateGoalProgress() error = %v", err)
	}
	if len(g.ProgressHistory) != 2 {
		t.Fatalf("len(ProgressHistory) = %d, want 2", len(g.ProgressHistory))
	}
	if g.ProgressHistory[0].Progress != 50 || g.ProgressHistory[1].Progress != 70 {
		t.Errorf("history = %+v", g.ProgressHistory)
	}

	goals, err := s.ListGoals(ctx, GoalFilter{Category: portfolio.GoalRevenue})
	if err != nil {
		t.Fatal(err)
	}
	// 0.6*60 + 0.4*70
	if len(goals) != 1 || !approxEqual(goals[0].HealthScore, 64) {
		t.Errorf("ListGoals() = %+v, want g-rev with health 64", goals)
	}
}

func TestRecordConversation(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	c, err := s.RecordConversation(ctx, portfolio.Conversation{Type: portfolio.ConversationPlanning, Title: "Q3 planning", LinkedGoals: []string{"g-rev"}})
	if err != nil {
		t.Fatalf("RecordConversation() error = %v", err)
	}
	if c.ID == "" || !c.Timestamp.Equal(testNow) {
		t.Errorf("RecordConversation() = %+v", c)
	}

	_, err = s.RecordConversation(ctx, portfolio.Conversation{Type: portfolio.ConversationPlanning, Title: "x", LinkedMilestones: []string{"m-nope"}})
	if !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("unknown linked milestone: error = %v, want not found", err)
	}
}

func TestRecordConversation_DuplicateID(t *testing.T) {
	for _, backend := range []string{store.BackendJSON, store.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			st, err := store.Open(backend, filepath.Join(t.TempDir(), "data"))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { st.Close() })
			s := NewService(st, nil, WithClock(func() time.Time { return testNow }))
			ctx := context.Background()

			c := portfolio.Conversation{ID: "conv-1", Type: portfolio.ConversationPlanning, Title: "Q3 planning"}
			if _, err := s.RecordConversation(ctx, c); err != nil {
				t.Fatalf("first RecordConversation() error = %v", err)
			}
			_, err = s.RecordConversation(ctx, c)
			var verrs portfolio.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("second RecordConversation() error = %v, want validation error", err)
			}

			snap, err := s.Snapshot(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(snap.Conversations) != 1 {
				t.Errorf("stored conversations = %d, want 1", len(snap.Conversations))
			}
		})
	}
}

func TestCreateGoal_InitialProgress(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	bad := portfolio.Goal{ID: "g-new", Title: "Expand", Category: portfolio.GoalMarket, Confidence: 60,
		ProgressHistory: []portfolio.ProgressSnapshot{{Progress: 150, Confidence: 60}}}
	var verrs portfolio.ValidationErrors
	if _, err := s.CreateGoal(ctx, bad); !errors.As(err, &verrs) {
		t.Fatalf("CreateGoal() with progress 150 error = %v, want validation error", err)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Goals) != 0 {
		t.Fatalf("goals after rejected create = %d, want 0", len(snap.Goals))
	}

	bad.ProgressHistory[0].Progress = 15
	g, err := s.CreateGoal(ctx, bad)
	if err != nil {
		t.Fatalf("CreateGoal() retry error = %v", err)
	}
	if !g.ProgressHistory[0].Timestamp.Equal(testNow) {
		t.Errorf("initial progress timestamp = %v, want %v", g.ProgressHistory[0].Timestamp, testNow)
	}
}

func TestListMilestones_Filters(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name     string
		filter   MilestoneFilter
		expected []string
	}{
		{"All by planned date", MilestoneFilter{}, []string{"m-sso", "m-billing", "m-cache"}},
		{"By goal", MilestoneFilter{GoalID: "g-rev"}, []string{"m-sso", "m-billing"}},
		{"By category", MilestoneFilter{Category: portfolio.CategoryPerformance}, []string{"m-cache"}},
		{"By status", MilestoneFilter{Status: portfolio.StatusDelayed}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListMilestones(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			ids := []string{}
			for _, m := range got {
				ids = append(ids, m.ID)
			}
			if len(ids) != len(tt.expected) {
				t.Fatalf("ListMilestones() = %v, want %v", ids, tt.expected)
			}
			for i := range ids {
				if ids[i] != tt.expected[i] {
					t.Errorf("ListMilestones()[%d] = %s, want %s", i, ids[i], tt.expected[i])
				}
			}
		})
	}

	if _, err := s.ListMilestones(ctx, MilestoneFilter{GoalID: "g-nope"}); !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("unknown goal filter: error = %v, want not found", err)
	}
}

func TestAnalyzeCorrelations(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	first, err := s.AnalyzeCorrelations(ctx, CorrelationQuery{})
	if err != nil {
		t.Fatalf("AnalyzeCorrelations() error = %v", err)
	}
	if first.Total != 6 {
		t.Errorf("Total = %d, want 6", first.Total)
	}
	for _, c := range first.Correlations {
		if c.CorrelationStrength > -30 && c.CorrelationStrength < 30 {
			t.Errorf("weak correlation %s/%s (%v) not filtered", c.MilestoneID, c.GoalID, c.CorrelationStrength)
		}
	}

	weak, err := s.AnalyzeCorrelations(ctx, CorrelationQuery{IncludeWeak: true, GoalID: "g-rev"})
	if err != nil {
		t.Fatal(err)
	}
	if len(weak.Correlations) != 3 {
		t.Errorf("len(weak g-rev correlations) = %d, want 3", len(weak.Correlations))
	}

	again, _ := s.AnalyzeCorrelations(ctx, CorrelationQuery{})
	if again.Fingerprint != first.Fingerprint {
		t.Error("fingerprint changed without a mutation")
	}

	if _, err := s.UpdateGoalProgress(ctx, GoalProgress{ID: "g-ops", Progress: 5}); err != nil {
		t.Fatal(err)
	}
	after, _ := s.AnalyzeCorrelations(ctx, CorrelationQuery{})
	if after.Fingerprint == first.Fingerprint {
		t.Error("fingerprint unchanged after a mutation")
	}

	if _, err := s.AnalyzeCorrelations(ctx, CorrelationQuery{GoalID: "g-nope"}); !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("unknown goal: error = %v, want not found", err)
	}
}

func TestAnalyze(t *testing.T) {
	s := newTestService(t)
	seed(t, s)

	a, err := s.Analyze(context.Background(), AnalyzeQuery{
		Forecast: ForecastQuery{Start: "2026-05-01", End: "2026-08-31"},
		Market:   &forecast.MarketContext{CompetitivePressure: forecast.PressureMedium},
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(a.Forecast.Scenarios) != 3 {
		t.Errorf("len(Scenarios) = %d, want 3", len(a.Forecast.Scenarios))
	}
	for _, sc := range a.Forecast.Scenarios {
		if len(sc.MilestoneIDs) != 2 {
			t.Errorf("scenario %s milestones = %v, want the two planned in window", sc.Key, sc.MilestoneIDs)
		}
		if sc.Confidence > 85 {
			t.Errorf("scenario %s confidence = %v exceeds cap", sc.Key, sc.Confidence)
		}
	}
	if a.Forecast.Weighted.Revenue <= 0 || a.Forecast.Weighted.Degenerate {
		t.Errorf("Weighted = %+v", a.Forecast.Weighted)
	}

	var found bool
	for _, g := range a.Gaps {
		if g.ID == "gap-capability-g-ops-infrastructure" {
			found = true
			if g.Severity != portfolio.SeverityCritical {
				t.Errorf("infrastructure gap severity = %s, want critical", g.Severity)
			}
		}
	}
	if !found {
		t.Errorf("Gaps = %+v, want infrastructure capability gap for g-ops", a.Gaps)
	}

	if len(a.GoalHealth) != 2 {
		t.Errorf("len(GoalHealth) = %d, want 2", len(a.GoalHealth))
	}
}

func TestGenerateForecast_DefaultWindow(t *testing.T) {
	s := newTestService(t)
	seed(t, s)

	report, err := s.GenerateForecast(context.Background(), ForecastQuery{})
	if err != nil {
		t.Fatalf("GenerateForecast() error = %v", err)
	}
	if got := report.Timeframe.Start.Format(time.DateOnly); got != "2026-05-20" {
		t.Errorf("Start = %s, want 2026-05-20", got)
	}
	if got := report.Timeframe.End.Format(time.DateOnly); got != "2026-08-18" {
		t.Errorf("End = %s, want 2026-08-18", got)
	}

	if _, err := s.GenerateForecast(context.Background(), ForecastQuery{Start: "2026-09-01", End: "2026-01-01"}); err == nil {
		t.Error("reversed window expected error")
	}
}

func TestConfigureTrigger(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	var verrs portfolio.ValidationErrors
	_, err := s.ConfigureTrigger(ctx, portfolio.StrategyReviewTrigger{Name: "Empty", Type: portfolio.TriggerMetricBased, Enabled: true})
	if !errors.As(err, &verrs) {
		t.Errorf("empty conditions: error = %v, want ValidationErrors", err)
	}

	_, err = s.ConfigureTrigger(ctx, portfolio.StrategyReviewTrigger{
		Name: "Goal watch", Type: portfolio.TriggerMetricBased, Enabled: true,
		Conditions: []portfolio.TriggerCondition{{Type: portfolio.ConditionGoalHealth, Operator: portfolio.OpLessThan, Value: 50, GoalID: "g-nope"}},
	})
	if !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("unknown goal in condition: error = %v, want not found", err)
	}

	trig, err := s.ConfigureTrigger(ctx, portfolio.StrategyReviewTrigger{
		Name: "Low health", Type: portfolio.TriggerMetricBased, Enabled: true,
		Conditions: []portfolio.TriggerCondition{{Type: portfolio.ConditionGoalHealth, Operator: portfolio.OpLessThan, Value: 50}},
	})
	if err != nil {
		t.Fatalf("ConfigureTrigger() error = %v", err)
	}
	if trig.Priority != portfolio.PriorityMedium {
		t.Errorf("Priority = %s, want medium", trig.Priority)
	}

	disabled, err := s.SetTriggerEnabled(ctx, trig.ID, false)
	if err != nil || disabled.Enabled {
		t.Errorf("SetTriggerEnabled() = %+v, %v", disabled, err)
	}

	list, _ := s.ListTriggers(ctx)
	if len(list) != 1 || list[0].Enabled {
		t.Errorf("ListTriggers() = %+v", list)
	}
}

func TestEvaluateTriggers_FiresAndPersists(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	// Open goal health: g-rev 0.6*80+0.4*50 = 68, g-ops 0.6*30 = 18, average 43.
	trig, err := s.ConfigureTrigger(ctx, portfolio.StrategyReviewTrigger{
		Name: "Low health", Type: portfolio.TriggerMetricBased, Enabled: true, Priority: portfolio.PriorityHigh,
		Conditions: []portfolio.TriggerCondition{{Type: portfolio.ConditionGoalHealth, Operator: portfolio.OpLessThan, Value: 50}},
	})
	if err != nil {
		t.Fatal(err)
	}

	dry, err := s.EvaluateTriggers(ctx, EvaluateQuery{DryRun: true})
	if err != nil {
		t.Fatalf("dry run error = %v", err)
	}
	if len(dry.Reviews) != 1 {
		t.Fatalf("dry run reviews = %d, want 1", len(dry.Reviews))
	}
	if stored, _ := s.ListReviews(ctx, ""); len(stored) != 0 {
		t.Errorf("dry run persisted %d reviews", len(stored))
	}

	report, err := s.EvaluateTriggers(ctx, EvaluateQuery{})
	if err != nil {
		t.Fatalf("EvaluateTriggers() error = %v", err)
	}
	if len(report.Results) != 1 || !report.Results[0].Fired {
		t.Fatalf("Results = %+v", report.Results)
	}
	if got := report.Results[0].Outcomes[0].Observed; !approxEqual(got, 43) {
		t.Errorf("observed health = %v, want 43", got)
	}

	review := report.Reviews[0]
	if review.Status != portfolio.ReviewPending || !review.Scheduled.Equal(testNow.Add(72*time.Hour)) {
		t.Errorf("review = %+v", review)
	}
	if len(review.ReviewScope.GoalIDs) != 1 || review.ReviewScope.GoalIDs[0] != "g-ops" {
		t.Errorf("scope goals = %v, want [g-ops]", review.ReviewScope.GoalIDs)
	}

	triggers, _ := s.ListTriggers(ctx)
	if triggers[0].ID != trig.ID || triggers[0].TriggerCount != 1 || triggers[0].LastTriggered == nil {
		t.Errorf("stored trigger = %+v", triggers[0])
	}

	// Reconfiguring keeps the firing history.
	trig.Name = "Low goal health"
	updated, err := s.ConfigureTrigger(ctx, trig)
	if err != nil {
		t.Fatal(err)
	}
	if updated.TriggerCount != 1 {
		t.Errorf("TriggerCount after reconfigure = %d, want 1", updated.TriggerCount)
	}
}

func TestEvaluateTriggers_InvalidMarket(t *testing.T) {
	s := newTestService(t)
	seed(t, s)

	_, err := s.EvaluateTriggers(context.Background(), EvaluateQuery{
		Market: &forecast.MarketContext{Signals: []forecast.MarketSignal{{Description: "x", Probability: 2, Impact: 50}}},
	})
	var verrs portfolio.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Errorf("error = %v, want ValidationErrors", err)
	}
}

func TestReviewLifecycle(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	if _, err := s.ConfigureTrigger(ctx, portfolio.StrategyReviewTrigger{
		Name: "Low health", Type: portfolio.TriggerMetricBased, Enabled: true,
		Conditions: []portfolio.TriggerCondition{{Type: portfolio.ConditionGoalHealth, Operator: portfolio.OpLessThan, Value: 50}},
	}); err != nil {
		t.Fatal(err)
	}
	report, err := s.EvaluateTriggers(ctx, EvaluateQuery{})
	if err != nil || len(report.Reviews) != 1 {
		t.Fatalf("EvaluateTriggers() = %+v, %v", report, err)
	}
	id := report.Reviews[0].ID

	started, err := s.StartReview(ctx, id)
	if err != nil || started.Status != portfolio.ReviewInProgress {
		t.Fatalf("StartReview() = %+v, %v", started, err)
	}

	done, err := s.CompleteReview(ctx, ReviewCompletion{
		ID:        id,
		Decisions: []portfolio.Decision{{Description: "Fund autoscaling work"}},
		NextSteps: []portfolio.NextStep{{Description: "Plan infrastructure milestone", Owner: "platform"}},
	})
	if err != nil {
		t.Fatalf("CompleteReview() error = %v", err)
	}
	if done.Status != portfolio.ReviewCompleted || len(done.Decisions) != 1 || !done.Decisions[0].MadeAt.Equal(testNow) {
		t.Errorf("CompleteReview() = %+v", done)
	}

	if _, err := s.CompleteReview(ctx, ReviewCompletion{ID: id}); !errors.Is(err, trigger.ErrReviewClosed) {
		t.Errorf("second completion: error = %v, want ErrReviewClosed", err)
	}
	if _, err := s.CancelReview(ctx, id, "obsolete"); !errors.Is(err, trigger.ErrReviewClosed) {
		t.Errorf("cancel completed: error = %v, want ErrReviewClosed", err)
	}
	if _, err := s.StartReview(ctx, "review-nope"); !errors.Is(err, portfolio.ErrNotFound) {
		t.Errorf("unknown review: error = %v, want not found", err)
	}

	completed, _ := s.ListReviews(ctx, portfolio.ReviewCompleted)
	if len(completed) != 1 {
		t.Errorf("ListReviews(completed) = %d, want 1", len(completed))
	}
}

func approxEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
