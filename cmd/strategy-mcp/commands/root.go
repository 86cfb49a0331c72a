package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"strategy-mcp/internal/config"
	"strategy-mcp/internal/logging"
	"strategy-mcp/internal/mcp"
	"strategy-mcp/internal/rules"
	"strategy-mcp/internal/store"
	"strategy-mcp/internal/strategy"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	st  store.Store
	svc *strategy.Service
)

var rootCmd = &cobra.Command{
	Use:   "strategy-mcp",
	Short: "Strategy-MCP links technical milestones to business goals",
	Long: `An MCP server and CLI that correlates technical milestones with business goals,
projects business outcomes under several scenarios, detects strategy gaps and schedules
strategy reviews when configured conditions hold. Without a subcommand it serves MCP over stdio.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logging.Init(verbose); err != nil {
			fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
		}

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		r, err := rules.Load(cfg.RulesFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load scoring rules")
		}

		st, err = store.Open(cfg.StoreBackend, cfg.DataPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open portfolio store")
		}
		svc = strategy.NewService(st, r, strategy.WithConfidenceLevel(cfg.ConfidenceLevel))

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("backend", cfg.StoreBackend).
			Msg("Strategy-MCP starting")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			if err := st.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close portfolio store")
			}
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools over stdio (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := mcp.NewServer(svc, cfg, Version)
	if err != nil {
		return err
	}
	if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(serveCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
