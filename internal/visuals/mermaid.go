package visuals

import (
	"fmt"
	"math"
	"strings"

	"strategy-mcp/internal/correlation"
	"strategy-mcp/internal/forecast"
)

// GenerateScenarioRevenueChart creates a Mermaid xychart-beta comparing projected revenue
// (conservative, realistic and optimistic sub-values) across scenarios.
func GenerateScenarioRevenueChart(scenarios []forecast.ScenarioForecast) string {
	if len(scenarios) == 0 {
		return ""
	}

	var labels, low, mid, high []string
	maxVal := 0.0
	for _, s := range scenarios {
		rev := s.BusinessMetrics.ProjectedRevenue
		labels = append(labels, fmt.Sprintf("\"%s\"", s.Key))
		low = append(low, fmt.Sprintf("%.0f", rev.Conservative))
		mid = append(mid, fmt.Sprintf("%.0f", rev.Realistic))
		high = append(high, fmt.Sprintf("%.0f", rev.Optimistic))
		maxVal = math.Max(maxVal, rev.Optimistic)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Projected Revenue by Scenario\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Revenue\" 0 --> %d\n", int(math.Ceil(math.Max(1, maxVal*1.1)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(mid, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(low, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(high, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateConfidenceChart creates a Mermaid bar chart of scenario confidence scores.
func GenerateConfidenceChart(scenarios []forecast.ScenarioForecast) string {
	if len(scenarios) == 0 {
		return ""
	}

	var labels, values []string
	for _, s := range scenarios {
		labels = append(labels, fmt.Sprintf("\"%s\"", s.Key))
		values = append(values, fmt.Sprintf("%.0f", s.Confidence))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Scenario Confidence\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Confidence\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateCorrelationGraph creates a Mermaid flowchart linking milestones to the goals
// they correlate with. Only the first limit correlations are drawn.
func GenerateCorrelationGraph(cs []correlation.ProgressCorrelation, limit int) string {
	if len(cs) == 0 {
		return ""
	}
	if limit <= 0 || limit > len(cs) {
		limit = len(cs)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")

	seen := make(map[string]bool)
	node := func(id, shape string) string {
		key := nodeID(id)
		if seen[key] {
			return key
		}
		seen[key] = true
		if shape == "goal" {
			return fmt.Sprintf("%s([\"%s\"])", key, id)
		}
		return fmt.Sprintf("%s[\"%s\"]", key, id)
	}

	for _, c := range cs[:limit] {
		arrow := "-->"
		if c.CorrelationStrength < 0 {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s|%.0f| %s\n",
			node(c.MilestoneID, "milestone"), arrow, c.CorrelationStrength, node(c.GoalID, "goal")))
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateGoalHealthChart creates a Mermaid bar chart of goal health scores.
func GenerateGoalHealthChart(ids []string, health []float64) string {
	if len(ids) == 0 || len(ids) != len(health) {
		return ""
	}

	var labels, values []string
	for i, id := range ids {
		labels = append(labels, fmt.Sprintf("\"%s\"", id))
		values = append(values, fmt.Sprintf("%.1f", health[i]))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Goal Health\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Health\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// nodeID turns an entity id into a Mermaid-safe node identifier.
func nodeID(id string) string {
	var sb strings.Builder
	sb.WriteString("n_")
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
