package mcp

import (
	"context"
	"fmt"
	"strings"

	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/strategy"
	"strategy-mcp/internal/visuals"
)

func (s *Server) handleAnalyzeCorrelations(ctx context.Context, a correlationArgs) (ResponseEnvelope, error) {
	report, err := s.svc.AnalyzeCorrelations(ctx, strategy.CorrelationQuery{
		MilestoneID: a.MilestoneID,
		GoalID:      a.GoalID,
		IncludeWeak: a.IncludeWeak,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var warnings, guidance []string
	if report.Total == 0 {
		warnings = append(warnings, "The portfolio has no milestone-goal pairs. Create milestones and goals first.")
	} else if report.Meaningful == 0 {
		warnings = append(warnings, "No pair reaches the meaningful threshold of 30. Forecasts will rely on category weights alone.")
	}
	if len(report.Correlations) > 0 {
		guidance = append(guidance, "Run 'generate_forecast' to turn these correlations into business projections.")
	}
	return WrapResponse(report, warnings, guidance), nil
}

func (s *Server) handleGenerateForecast(ctx context.Context, a forecastArgs) (ResponseEnvelope, error) {
	report, err := s.svc.GenerateForecast(ctx, strategy.ForecastQuery{
		Start:             a.StartDate,
		End:               a.EndDate,
		FocusArea:         a.FocusArea,
		IncludeDisruption: a.IncludeDisruption,
	})
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(report, report.Warnings, forecastGuidance(report)), nil
}

func forecastGuidance(r strategy.ForecastReport) []string {
	g := []string{
		"Present scenario figures as heuristic projections. Do not restate them as probabilities of outcomes.",
	}
	empty := true
	for _, sc := range r.Scenarios {
		if sc.TechnicalMetrics.MilestonesCompleted.Realistic > 0 {
			empty = false
			break
		}
	}
	if empty {
		g = append(g, "No milestone is planned inside the window. Widen the window or check planned dates with 'list_milestones'.")
	}
	return g
}

func (s *Server) handleIdentifyGaps(ctx context.Context, a gapArgs) (ResponseEnvelope, error) {
	gaps, err := s.svc.IdentifyGaps(ctx, a.Market)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	var guidance []string
	if n, present := forecast.CountAtLeast(gaps, portfolio.SeveritySignificant); n > 0 {
		guidance = append(guidance, fmt.Sprintf("%d gap(s) are significant or worse (severities present: %s). Consider a strategy-gap trigger via 'configure_trigger'.",
			n, strings.Join(present, ", ")))
	}
	if a.Market == nil {
		guidance = append(guidance, "No market context was given. Supplying competitive pressure raises capability gap severity where relevant.")
	}
	return WrapResponse(gaps, nil, guidance), nil
}

func (s *Server) handleAnalyze(ctx context.Context, a analyzeArgs) (ResponseEnvelope, error) {
	analysis, err := s.svc.Analyze(ctx, analyzeQuery(a.StartDate, a.EndDate, a.FocusArea, a.IncludeDisruption, a.Market))
	if err != nil {
		return ResponseEnvelope{}, err
	}

	guidance := forecastGuidance(analysis.Forecast)
	for _, g := range analysis.GoalHealth {
		if g.Correlations == 0 {
			guidance = append(guidance, fmt.Sprintf("Goal %s has no meaningful milestone correlation. No planned work is moving it.", g.GoalID))
		}
	}
	return WrapResponse(analysis, analysis.Forecast.Warnings, guidance), nil
}

func analyzeQuery(start, end, focus string, disruption bool, market *forecast.MarketContext) strategy.AnalyzeQuery {
	return strategy.AnalyzeQuery{
		Forecast: strategy.ForecastQuery{
			Start:             start,
			End:               end,
			FocusArea:         focus,
			IncludeDisruption: disruption,
		},
		Market: market,
	}
}

type reportResult struct {
	Path     string `json:"path,omitempty"`
	Markdown string `json:"markdown,omitempty"`
}

func (s *Server) handleGenerateReport(ctx context.Context, a reportArgs) (ResponseEnvelope, error) {
	charts := s.cfg.EnableMermaidCharts
	if a.IncludeCharts != nil {
		charts = *a.IncludeCharts
	}

	report, err := visuals.Collect(ctx, s.svc, a.Title,
		analyzeQuery(a.StartDate, a.EndDate, a.FocusArea, a.IncludeDisruption, a.Market), charts)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	if a.HTML {
		if s.cfg.ReportDir == "" {
			return ResponseEnvelope{}, fmt.Errorf("no report directory configured; set REPORT_DIR")
		}
		path, err := visuals.WriteHTML(s.cfg.ReportDir, report)
		if err != nil {
			return ResponseEnvelope{}, err
		}
		return WrapResponse(reportResult{Path: path}, report.Analysis.Forecast.Warnings,
			[]string{"Tell the user where the report was written. Do not paste its contents."}), nil
	}

	md, err := visuals.RenderMarkdown(report)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return WrapResponse(reportResult{Markdown: md}, report.Analysis.Forecast.Warnings, nil), nil
}
