package commands

import (
	"fmt"
	"strconv"
	"strings"

	"strategy-mcp/internal/forecast"
	"strategy-mcp/internal/strategy"

	"github.com/spf13/cobra"
)

var (
	corrQuery     strategy.CorrelationQuery
	forecastQuery strategy.ForecastQuery
	pressure      string
	signals       []string
	dryRun        bool
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Score milestone-goal correlations",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := svc.AnalyzeCorrelations(cmd.Context(), corrQuery)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Project business outcomes over a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := svc.GenerateForecast(cmd.Context(), forecastQuery)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Detect capability and execution gaps",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, err := marketFromFlags()
		if err != nil {
			return err
		}
		gaps, err := svc.IdentifyGaps(cmd.Context(), market)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), gaps)
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate review triggers and schedule reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		market, err := marketFromFlags()
		if err != nil {
			return err
		}
		report, err := svc.EvaluateTriggers(cmd.Context(), strategy.EvaluateQuery{Market: market, DryRun: dryRun})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored portfolio snapshot as JSON (input for report --diff)",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

// marketFromFlags builds the optional market context. Signals are "probability:impact:description".
func marketFromFlags() (*forecast.MarketContext, error) {
	if pressure == "" && len(signals) == 0 {
		return nil, nil
	}
	mc := &forecast.MarketContext{CompetitivePressure: pressure}
	for _, raw := range signals {
		sig, err := parseSignal(raw)
		if err != nil {
			return nil, err
		}
		mc.Signals = append(mc.Signals, sig)
	}
	return mc, mc.Validate()
}

func parseSignal(raw string) (forecast.MarketSignal, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return forecast.MarketSignal{}, fmt.Errorf("signal %q: expected probability:impact:description", raw)
	}
	p, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return forecast.MarketSignal{}, fmt.Errorf("signal %q: invalid probability: %w", raw, err)
	}
	impact, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return forecast.MarketSignal{}, fmt.Errorf("signal %q: invalid impact: %w", raw, err)
	}
	return forecast.MarketSignal{Description: parts[2], Probability: p, Impact: impact}, nil
}

func addMarketFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pressure, "pressure", "", "competitive pressure: low, medium or high")
	cmd.Flags().StringArrayVar(&signals, "signal", nil, "market signal as probability:impact:description (repeatable)")
}

func addForecastFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&forecastQuery.Start, "start", "", "window start (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&forecastQuery.End, "end", "", "window end (YYYY-MM-DD), defaults to 90 days after start")
	cmd.Flags().StringVar(&forecastQuery.FocusArea, "focus", "", "goal category to focus on")
	cmd.Flags().BoolVar(&forecastQuery.IncludeDisruption, "disruption", false, "include the market disruption scenario")
}

func init() {
	correlateCmd.Flags().StringVar(&corrQuery.MilestoneID, "milestone", "", "restrict to one milestone")
	correlateCmd.Flags().StringVar(&corrQuery.GoalID, "goal", "", "restrict to one goal")
	correlateCmd.Flags().BoolVar(&corrQuery.IncludeWeak, "weak", false, "include pairs below the meaningful threshold")

	addForecastFlags(forecastCmd)
	addMarketFlags(gapsCmd)
	addMarketFlags(evaluateCmd)
	evaluateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would fire without saving reviews")

	rootCmd.AddCommand(correlateCmd, forecastCmd, gapsCmd, evaluateCmd, exportCmd)
}
