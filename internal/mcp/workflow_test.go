package mcp

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestWorkflowGoals(t *testing.T) {
	goals := workflowGoals()
	if !slices.IsSorted(goals) {
		t.Errorf("workflowGoals() = %v, want sorted", goals)
	}
	if len(workflowGoalNames()) != len(goals) {
		t.Error("enum values and goal names differ in length")
	}
}

func TestWorkflowStepsNameRegisteredTools(t *testing.T) {
	e := newTestEnv(t)
	res, err := e.session.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatal(err)
	}
	registered := make(map[string]bool)
	for _, tool := range res.Tools {
		registered[tool.Name] = true
	}

	for goal, w := range workflows {
		if w.Goal != goal {
			t.Errorf("workflow keyed %q reports goal %q", goal, w.Goal)
		}
		for _, step := range w.Steps {
			if !registered[step.Tool] {
				t.Errorf("workflow %s references unknown tool %s", goal, step.Tool)
			}
		}
	}
}

func TestWorkflowGuideTool(t *testing.T) {
	e := newTestEnv(t)

	var all []Workflow
	e.ok(t, "get_workflow_guide", map[string]any{}, &all)
	if len(all) != len(workflows) {
		t.Errorf("listed %d workflows, want %d", len(all), len(workflows))
	}

	var one Workflow
	e.ok(t, "get_workflow_guide", map[string]any{"goal": "review_cycle"}, &one)
	if len(one.Steps) == 0 || one.Steps[0].Tool != "configure_trigger" {
		t.Errorf("review_cycle = %+v", one)
	}

	env, err := (&Server{}).handleWorkflowGuide(context.Background(), workflowGuideArgs{Goal: "astrology"})
	if err == nil {
		data, _ := json.Marshal(env)
		t.Fatalf("unknown goal accepted: %s", data)
	}
	if !strings.Contains(err.Error(), "review_cycle") {
		t.Errorf("error %q should list the known goals", err)
	}
}
