package mcp

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"strategy-mcp/internal/config"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/store"
	"strategy-mcp/internal/strategy"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testNow = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store   store.Store
	svc     *strategy.Service
	cfg     *config.AppConfig
	session *mcp.ClientSession
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.BackendJSON, dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	svc := strategy.NewService(st, nil, strategy.WithClock(func() time.Time { return testNow }))
	cfg := &config.AppConfig{DataPath: dir, ReportDir: filepath.Join(dir, "reports")}
	srv, err := NewServer(svc, cfg, "test")
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx := context.Background()
	ct, stt := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, stt)
	if err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() { cs.Close() })

	return &testEnv{store: st, svc: svc, cfg: cfg, session: cs}
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Warnings []string        `json:"warnings"`
	Guidance []string        `json:"_guidance"`
}

func (e *testEnv) call(t *testing.T, name string, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("CallTool(%s) returned %d content blocks", name, len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s) content is %T, want text", name, res.Content[0])
	}
	return res, text.Text
}

func (e *testEnv) ok(t *testing.T, name string, args map[string]any, out any) envelope {
	t.Helper()
	res, text := e.call(t, name, args)
	if res.IsError {
		t.Fatalf("%s failed: %s", name, text)
	}
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		t.Fatalf("%s returned invalid JSON: %v", name, err)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("%s data does not decode into %T: %v", name, out, err)
		}
	}
	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	e.ok(t, "create_goal", map[string]any{
		"id": "g-rev", "title": "Grow revenue", "category": "revenue", "confidence": 80, "initial_progress": 50,
	}, nil)
	e.ok(t, "create_goal", map[string]any{
		"id": "g-ops", "title": "Stable operations", "category": "operational", "confidence": 30,
		"dependencies": []any{map[string]any{
			"type": "technical", "description": "Needs failover", "capability": "infrastructure", "critical": true,
		}},
	}, nil)
	e.ok(t, "create_milestone", map[string]any{
		"id": "m-sso", "name": "SSO", "category": "security", "complexity": "medium",
		"planned_date": "2026-06-15", "strategic_importance": 80, "revenue_implication": 50000,
		"market_timing": "competitive", "linked_goals": []any{"g-rev"},
	}, nil)
	e.ok(t, "create_milestone", map[string]any{
		"id": "m-billing", "name": "Usage billing", "category": "feature", "complexity": "high",
		"planned_date": "2026-07-01", "strategic_importance": 90, "revenue_implication": 120000,
		"market_timing": "early", "linked_goals": []any{"g-rev"},
	}, nil)
}

func TestListTools(t *testing.T) {
	e := newTestEnv(t)
	res, err := e.session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatal(err)
	}

	byName := make(map[string]*mcp.Tool)
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
	}
	if len(byName) != 21 {
		t.Errorf("registered %d tools, want 21", len(byName))
	}

	schema, err := json.Marshal(byName["configure_trigger"].InputSchema)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"goal-health"`, `"between"`, `"schedule-review"`} {
		if !strings.Contains(string(schema), want) {
			t.Errorf("configure_trigger schema missing enum value %s", want)
		}
	}

	if d := byName["record_conversation"].Description; !strings.Contains(d, "time-elapsed") {
		t.Errorf("record_conversation description = %q, want mention of time-elapsed conditions", d)
	}
	milestone, err := json.Marshal(byName["create_milestone"].InputSchema)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(milestone), "scanned for") {
		t.Error("create_milestone schema claims the description is scanned for keywords")
	}
}

func TestCreateAndList(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	var ms []portfolio.Milestone
	e.ok(t, "list_milestones", map[string]any{"goal_id": "g-rev"}, &ms)
	if len(ms) != 2 || ms[0].ID != "m-sso" {
		t.Fatalf("list_milestones = %+v", ms)
	}
	if ms[0].Status != portfolio.StatusPlanned {
		t.Errorf("default status = %s, want planned", ms[0].Status)
	}

	var goals []strategy.GoalView
	e.ok(t, "list_goals", map[string]any{"category": "revenue"}, &goals)
	if len(goals) != 1 || len(goals[0].ProgressHistory) != 1 {
		t.Fatalf("list_goals = %+v", goals)
	}
	if math.Abs(goals[0].HealthScore-68) > 1e-9 {
		t.Errorf("health = %v, want 68", goals[0].HealthScore)
	}
}

func TestCreateGoal_InvalidInitialProgressStoresNothing(t *testing.T) {
	e := newTestEnv(t)

	args := map[string]any{
		"id": "g-new", "title": "Expand", "category": "market", "confidence": 60, "initial_progress": 150,
	}
	res, text := e.call(t, "create_goal", args)
	if !res.IsError || !strings.HasPrefix(text, "validation failed:") {
		t.Fatalf("create_goal with progress 150 = %q, want validation failure", text)
	}

	var goals []strategy.GoalView
	e.ok(t, "list_goals", map[string]any{}, &goals)
	if len(goals) != 0 {
		t.Fatalf("list_goals after failed create = %d goals, want 0", len(goals))
	}

	args["initial_progress"] = 15
	var created portfolio.Goal
	e.ok(t, "create_goal", args, &created)
	if len(created.ProgressHistory) != 1 || created.ProgressHistory[0].Progress != 15 {
		t.Errorf("progress history = %+v, want one entry at 15", created.ProgressHistory)
	}
	if !created.ProgressHistory[0].Timestamp.Equal(testNow) {
		t.Errorf("initial progress timestamp = %v, want %v", created.ProgressHistory[0].Timestamp, testNow)
	}
}

func TestToolErrors(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	tests := []struct {
		name   string
		tool   string
		args   map[string]any
		prefix string
	}{
		{
			name: "missing linked goal",
			tool: "create_milestone",
			args: map[string]any{
				"name": "Orphan", "category": "feature", "complexity": "low", "planned_date": "2026-08-01",
				"strategic_importance": 10, "revenue_implication": 0, "market_timing": "late",
				"linked_goals": []any{"g-nope"},
			},
			prefix: "not found:",
		},
		{
			name:   "bad date",
			tool:   "update_milestone_progress",
			args:   map[string]any{"id": "m-sso", "planned_date": "15/06/2026"},
			prefix: "error:",
		},
		{
			name:   "illegal transition",
			tool:   "update_milestone_progress",
			args:   map[string]any{"id": "m-sso", "status": "completed"},
			prefix: "validation failed:",
		},
		{
			name:   "unknown review",
			tool:   "start_review",
			args:   map[string]any{"id": "review-missing"},
			prefix: "not found:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, text := e.call(t, tt.tool, tt.args)
			if !res.IsError {
				t.Fatalf("%s succeeded: %s", tt.tool, text)
			}
			if !strings.HasPrefix(text, tt.prefix) {
				t.Errorf("error text = %q, want prefix %q", text, tt.prefix)
			}
		})
	}
}

func TestSchemaRejectsUnknownEnum(t *testing.T) {
	e := newTestEnv(t)
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "create_goal",
		Arguments: map[string]any{"title": "X", "category": "astrology", "confidence": 50},
	})
	if err == nil && !res.IsError {
		t.Error("create_goal accepted a category outside the enum")
	}
}

func TestAnalysisTools(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	var corr strategy.CorrelationReport
	e.ok(t, "analyze_correlations", map[string]any{"include_weak": true}, &corr)
	if corr.Total != 4 {
		t.Errorf("total pairs = %d, want 4", corr.Total)
	}

	var fc strategy.ForecastReport
	env := e.ok(t, "generate_forecast", map[string]any{"start_date": "2026-05-20", "end_date": "2026-08-18"}, &fc)
	if len(fc.Scenarios) != 3 {
		t.Errorf("scenarios = %d, want 3", len(fc.Scenarios))
	}
	if len(env.Guidance) == 0 {
		t.Error("forecast should carry guidance")
	}

	env = e.ok(t, "generate_forecast", map[string]any{"focus_area": "security"}, &fc)
	if len(fc.Scenarios) != 3 {
		t.Errorf("scenarios with unknown focus = %d, want 3", len(fc.Scenarios))
	}
	if !slices.ContainsFunc(env.Warnings, func(w string) bool { return strings.Contains(w, "Unknown focus area") }) {
		t.Errorf("unknown focus area not reported: %v", env.Warnings)
	}

	var gaps []struct {
		ID       string `json:"id"`
		Severity string `json:"severity"`
	}
	e.ok(t, "identify_strategy_gaps", map[string]any{"market": map[string]any{"competitive_pressure": "high"}}, &gaps)
	found := false
	for _, g := range gaps {
		if g.ID == "gap-capability-g-ops-infrastructure" {
			found = true
		}
	}
	if !found {
		t.Errorf("capability gap for g-ops not reported: %+v", gaps)
	}

	var analysis strategy.Analysis
	e.ok(t, "analyze_strategy", map[string]any{"include_disruption": true}, &analysis)
	if len(analysis.Forecast.Scenarios) != 4 {
		t.Errorf("analysis scenarios = %d, want 4 with disruption", len(analysis.Forecast.Scenarios))
	}
	if len(analysis.GoalHealth) != 2 {
		t.Errorf("goal health entries = %d, want 2", len(analysis.GoalHealth))
	}
}

func TestGenerateReport(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	var md reportResult
	e.ok(t, "generate_report", map[string]any{"title": "Weekly", "include_charts": true}, &md)
	if !strings.HasPrefix(md.Markdown, "# Weekly") || !strings.Contains(md.Markdown, "```mermaid") {
		t.Errorf("unexpected markdown:\n%s", md.Markdown)
	}

	var file reportResult
	e.ok(t, "generate_report", map[string]any{"html": true}, &file)
	if filepath.Dir(file.Path) != e.cfg.ReportDir {
		t.Errorf("report path = %s, want inside %s", file.Path, e.cfg.ReportDir)
	}
	if _, err := os.Stat(file.Path); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestTriggerAndReviewLifecycle(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t)

	var trig portfolio.StrategyReviewTrigger
	e.ok(t, "configure_trigger", map[string]any{
		"name": "Ops health", "type": "threshold-based", "priority": "high",
		"conditions": []any{map[string]any{"type": "goal-health", "operator": "less-than", "value": 50, "goal_id": "g-ops"}},
	}, &trig)
	if !trig.Enabled || trig.ID == "" {
		t.Fatalf("configure_trigger = %+v", trig)
	}

	var dry strategy.EvaluationReport
	e.ok(t, "evaluate_triggers", map[string]any{"dry_run": true}, &dry)
	if len(dry.Reviews) != 1 {
		t.Fatalf("dry run reviews = %d, want 1", len(dry.Reviews))
	}
	var pending []portfolio.StrategyReview
	e.ok(t, "list_reviews", map[string]any{}, &pending)
	if len(pending) != 0 {
		t.Fatalf("dry run persisted %d reviews", len(pending))
	}

	var run strategy.EvaluationReport
	e.ok(t, "evaluate_triggers", map[string]any{}, &run)
	if len(run.Reviews) != 1 {
		t.Fatalf("reviews = %d, want 1", len(run.Reviews))
	}
	id := run.Reviews[0].ID
	if want := testNow.Add(72 * time.Hour); !run.Reviews[0].Scheduled.Equal(want) {
		t.Errorf("scheduled = %v, want %v", run.Reviews[0].Scheduled, want)
	}

	var started portfolio.StrategyReview
	e.ok(t, "start_review", map[string]any{"id": id}, &started)
	if started.Status != portfolio.ReviewInProgress {
		t.Errorf("status = %s, want in-progress", started.Status)
	}

	var done portfolio.StrategyReview
	e.ok(t, "complete_review", map[string]any{
		"id":         id,
		"decisions":  []any{map[string]any{"description": "Fund failover work", "owner": "platform"}},
		"next_steps": []any{map[string]any{"description": "Plan multi-region", "due_date": "2026-06-01"}},
	}, &done)
	if done.Status != portfolio.ReviewCompleted || len(done.Decisions) != 1 || done.NextSteps[0].DueDate == nil {
		t.Errorf("complete_review = %+v", done)
	}

	res, text := e.call(t, "cancel_review", map[string]any{"id": id})
	if !res.IsError || !strings.HasPrefix(text, "conflict:") {
		t.Errorf("cancel after completion = %q", text)
	}

	var disabled portfolio.StrategyReviewTrigger
	e.ok(t, "set_trigger_enabled", map[string]any{"id": trig.ID, "enabled": false}, &disabled)
	if disabled.Enabled || disabled.TriggerCount != 1 {
		t.Errorf("set_trigger_enabled = %+v", disabled)
	}
}
