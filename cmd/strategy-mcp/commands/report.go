package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/strategy"
	"strategy-mcp/internal/visuals"

	"github.com/spf13/cobra"
)

var (
	reportTitle  string
	reportHTML   bool
	reportOpen   bool
	reportCharts bool
	reportDiff   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a strategy report as Markdown or HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		charts := cfg.EnableMermaidCharts
		if cmd.Flags().Changed("charts") {
			charts = reportCharts
		}

		market, err := marketFromFlags()
		if err != nil {
			return err
		}
		report, err := visuals.Collect(ctx, svc, reportTitle, strategy.AnalyzeQuery{Forecast: forecastQuery, Market: market}, charts)
		if err != nil {
			return err
		}

		if reportDiff != "" {
			prev, err := readExport(reportDiff)
			if err != nil {
				return err
			}
			current, err := svc.Snapshot(ctx)
			if err != nil {
				return err
			}
			if report.Diff, err = visuals.SnapshotDiff(prev, current); err != nil {
				return err
			}
		}

		if !reportHTML {
			md, err := visuals.RenderMarkdown(report)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), md)
			return err
		}

		path, err := visuals.WriteHTML(cfg.ReportDir, report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		if reportOpen {
			return visuals.Open(path)
		}
		return nil
	},
}

func readExport(path string) (*portfolio.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read previous export: %w", err)
	}
	var snap portfolio.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("previous export %s is not a portfolio snapshot: %w", path, err)
	}
	return &snap, nil
}

var versionCmd = &cobra.Command{
	Use:              "version",
	Short:            "Print build information",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "strategy-mcp %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportTitle, "title", "", "report title")
	reportCmd.Flags().BoolVar(&reportHTML, "html", false, "write a standalone HTML file to REPORT_DIR")
	reportCmd.Flags().BoolVar(&reportOpen, "open", false, "open the HTML report in the default browser")
	reportCmd.Flags().BoolVar(&reportCharts, "charts", false, "render Mermaid charts (defaults to ENABLE_MERMAID_CHARTS)")
	reportCmd.Flags().StringVar(&reportDiff, "diff", "", "previous export to diff the current portfolio against")
	addForecastFlags(reportCmd)
	addMarketFlags(reportCmd)

	rootCmd.AddCommand(reportCmd, versionCmd)
}
