package visuals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/strategy"

	"github.com/pkg/browser"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog/log"
)

// Report is the input of the strategy report renderers.
type Report struct {
	Title         string
	GeneratedAt   time.Time
	Analysis      strategy.Analysis
	Reviews       []portfolio.StrategyReview
	IncludeCharts bool
	Diff          string
}

// Collect runs a full analysis and gathers the open reviews for a report.
func Collect(ctx context.Context, svc *strategy.Service, title string, q strategy.AnalyzeQuery, charts bool) (Report, error) {
	analysis, err := svc.Analyze(ctx, q)
	if err != nil {
		return Report{}, err
	}
	reviews, err := svc.ListReviews(ctx, "")
	if err != nil {
		return Report{}, err
	}
	open := []portfolio.StrategyReview{}
	for _, r := range reviews {
		if !r.Status.Closed() {
			open = append(open, r)
		}
	}
	if title == "" {
		title = "Strategy Report"
	}
	return Report{
		Title:         title,
		GeneratedAt:   svc.Now(),
		Analysis:      analysis,
		Reviews:       open,
		IncludeCharts: charts,
	}, nil
}

// Charts holds the Mermaid blocks rendered into a report.
type Charts struct {
	Revenue      string
	Confidence   string
	Correlations string
	GoalHealth   string
}

func (r Report) charts() Charts {
	if !r.IncludeCharts {
		return Charts{}
	}
	var ids []string
	var health []float64
	for _, g := range r.Analysis.GoalHealth {
		ids = append(ids, g.GoalID)
		health = append(health, g.Health)
	}
	return Charts{
		Revenue:      GenerateScenarioRevenueChart(r.Analysis.Forecast.Scenarios),
		Confidence:   GenerateConfidenceChart(r.Analysis.Forecast.Scenarios),
		Correlations: GenerateCorrelationGraph(r.Analysis.Correlations, 15),
		GoalHealth:   GenerateGoalHealthChart(ids, health),
	}
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.0f", v) },
	"num":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"date":  func(t time.Time) string { return t.Format(time.DateOnly) },
	"join":  strings.Join,
}

const markdownTemplate = `# {{.Report.Title}}

Generated {{.Report.GeneratedAt.Format "2006-01-02 15:04 MST"}} for window {{date .Report.Analysis.Forecast.Timeframe.Start}} to {{date .Report.Analysis.Forecast.Timeframe.End}}.

## Weighted forecast

| Metric | Blended | Interval lower | Median | Interval upper |
|---|---|---|---|---|
| Revenue | {{money .Report.Analysis.Forecast.Weighted.Revenue}} | {{money .Report.Analysis.Forecast.Intervals.Revenue.Lower}} | {{money .Report.Analysis.Forecast.Intervals.Revenue.Median}} | {{money .Report.Analysis.Forecast.Intervals.Revenue.Upper}} |
| Customers | {{num .Report.Analysis.Forecast.Weighted.Customers}} | {{num .Report.Analysis.Forecast.Intervals.Customers.Lower}} | {{num .Report.Analysis.Forecast.Intervals.Customers.Median}} | {{num .Report.Analysis.Forecast.Intervals.Customers.Upper}} |
| Market share | {{num .Report.Analysis.Forecast.Weighted.MarketShare}} | {{num .Report.Analysis.Forecast.Intervals.MarketShare.Lower}} | {{num .Report.Analysis.Forecast.Intervals.MarketShare.Median}} | {{num .Report.Analysis.Forecast.Intervals.MarketShare.Upper}} |
{{range .Report.Analysis.Forecast.Warnings}}
> {{.}}
{{end}}
## Scenarios

| Scenario | Revenue | Customers | Market share | Milestones | Confidence |
|---|---|---|---|---|---|
{{range .Report.Analysis.Forecast.Scenarios}}| {{.Name}} | {{money .BusinessMetrics.ProjectedRevenue.Realistic}} | {{num .BusinessMetrics.CustomerAcquisition.Realistic}} | {{num .BusinessMetrics.MarketShare.Realistic}} | {{num .TechnicalMetrics.MilestonesCompleted.Realistic}} | {{num .Confidence}} |
{{end}}
{{if .Charts.Revenue}}{{.Charts.Revenue}}

{{.Charts.Confidence}}
{{end}}
## Correlations

| Milestone | Goal | Strength | Delay (days) | Multiplier |
|---|---|---|---|---|
{{range .Report.Analysis.Correlations}}| {{.MilestoneID}} | {{.GoalID}} | {{num .CorrelationStrength}} | {{.ImpactDelay}} | {{num .MultiplierEffect}} |
{{end}}
{{if .Charts.Correlations}}{{.Charts.Correlations}}
{{end}}
## Goal health

| Goal | Title | Health | Meaningful correlations |
|---|---|---|---|
{{range .Report.Analysis.GoalHealth}}| {{.GoalID}} | {{.Title}} | {{num .Health}} | {{.Correlations}} |
{{end}}
{{if .Charts.GoalHealth}}{{.Charts.GoalHealth}}
{{end}}
## Strategy gaps
{{range .Report.Analysis.Gaps}}
### {{.ID}} ({{.Severity}})

{{.Description}}

Revenue at risk: {{money .EstimatedImpact.RevenueAtRisk}}, opportunity cost: {{money .EstimatedImpact.OpportunityCost}}.
{{range .RecommendedActions}}
- {{.}}{{end}}
{{else}}
No gaps detected.
{{end}}
## Open reviews
{{range .Report.Reviews}}
- **{{.TriggerName}}** ({{.Priority}}, {{.Status}}) due {{date .Scheduled}}: {{join .ReviewScope.GoalIDs ", "}}{{else}}
No open reviews.
{{end}}
{{if .Report.Diff}}
## Changes since previous export

` + "```diff\n{{.Report.Diff}}```" + `
{{end}}`

var markdownTmpl = template.Must(template.New("report").Funcs(funcs).Parse(markdownTemplate))

// RenderMarkdown renders the report as Markdown with optional Mermaid charts.
func RenderMarkdown(r Report) (string, error) {
	var buf bytes.Buffer
	if err := markdownTmpl.Execute(&buf, struct {
		Report Report
		Charts Charts
	}{r, r.charts()}); err != nil {
		return "", fmt.Errorf("render markdown report: %w", err)
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #222; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
pre.mermaid { background: #fafafa; }
</style>
<script type="module">
import mermaid from "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.esm.min.mjs";
mermaid.initialize({ startOnLoad: true });
</script>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.GeneratedAt}}</p>
{{range .Charts}}<pre class="mermaid">{{.}}</pre>
{{end}}
<pre>{{.Markdown}}</pre>
</body>
</html>
`

var htmlTmpl = htmltemplate.Must(htmltemplate.New("report").Parse(htmlTemplate))

// RenderHTML wraps the Markdown report in a standalone page that renders its charts.
func RenderHTML(r Report) ([]byte, error) {
	md, err := RenderMarkdown(Report{
		Title:       r.Title,
		GeneratedAt: r.GeneratedAt,
		Analysis:    r.Analysis,
		Reviews:     r.Reviews,
		Diff:        r.Diff,
	})
	if err != nil {
		return nil, err
	}

	var charts []string
	if r.IncludeCharts {
		c := r.charts()
		for _, block := range []string{c.Revenue, c.Confidence, c.Correlations, c.GoalHealth} {
			if block != "" {
				charts = append(charts, stripFence(block))
			}
		}
	}

	var buf bytes.Buffer
	err = htmlTmpl.Execute(&buf, struct {
		Title       string
		GeneratedAt string
		Charts      []string
		Markdown    string
	}{r.Title, r.GeneratedAt.Format(time.RFC1123), charts, md})
	if err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	return buf.Bytes(), nil
}

func stripFence(block string) string {
	block = strings.TrimPrefix(block, "```mermaid\n")
	return strings.TrimSuffix(block, "```")
}

// WriteHTML renders the report into dir and returns the file path.
func WriteHTML(dir string, r Report) (string, error) {
	page, err := RenderHTML(r)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("strategy-report-%s.html", r.GeneratedAt.Format("20060102-150405")))
	if err := os.WriteFile(path, page, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	log.Info().Str("path", path).Msg("Report written")
	return path, nil
}

// Open shows a written report in the default browser.
func Open(path string) error {
	if err := browser.OpenFile(path); err != nil {
		return fmt.Errorf("open report in browser: %w", err)
	}
	return nil
}

// SnapshotDiff returns a unified diff between two snapshots rendered as indented JSON.
// SavedAt is ignored so that unchanged content yields an empty diff.
func SnapshotDiff(before, after *portfolio.Snapshot) (string, error) {
	a, err := canonical(before)
	if err != nil {
		return "", err
	}
	b, err := canonical(after)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "previous",
		ToFile:   "current",
		Context:  2,
	})
}

func canonical(s *portfolio.Snapshot) (string, error) {
	view := *s
	view.SavedAt = time.Time{}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot for diff: %w", err)
	}
	return string(data) + "\n", nil
}
