package commands

import (
	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/strategy"

	"github.com/spf13/cobra"
)

var (
	reviewStatus string
	decisions    []string
	nextSteps    []string
	reviewNotes  string
	cancelReason string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List and progress strategy reviews",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reviews, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := svc.ListReviews(cmd.Context(), portfolio.ReviewStatus(reviewStatus))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rs)
	},
}

var reviewStartCmd = &cobra.Command{
	Use:   "start <review-id>",
	Short: "Mark a pending review as in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := svc.StartReview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), r)
	},
}

var reviewCompleteCmd = &cobra.Command{
	Use:   "complete <review-id>",
	Short: "Close a review with decisions and next steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := strategy.ReviewCompletion{ID: args[0], Notes: reviewNotes}
		for _, d := range decisions {
			c.Decisions = append(c.Decisions, portfolio.Decision{Description: d})
		}
		for _, n := range nextSteps {
			c.NextSteps = append(c.NextSteps, portfolio.NextStep{Description: n})
		}
		r, err := svc.CompleteReview(cmd.Context(), c)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), r)
	},
}

var reviewCancelCmd = &cobra.Command{
	Use:   "cancel <review-id>",
	Short: "Cancel an open review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := svc.CancelReview(cmd.Context(), args[0], cancelReason)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), r)
	},
}

func init() {
	reviewListCmd.Flags().StringVar(&reviewStatus, "status", "", "filter by status: pending, in-progress, completed, cancelled")
	reviewCompleteCmd.Flags().StringArrayVar(&decisions, "decision", nil, "decision taken (repeatable)")
	reviewCompleteCmd.Flags().StringArrayVar(&nextSteps, "next-step", nil, "agreed next step (repeatable)")
	reviewCompleteCmd.Flags().StringVar(&reviewNotes, "notes", "", "free-text notes")
	reviewCancelCmd.Flags().StringVar(&cancelReason, "reason", "", "why the review is cancelled")

	reviewCmd.AddCommand(reviewListCmd, reviewStartCmd, reviewCompleteCmd, reviewCancelCmd)
	rootCmd.AddCommand(reviewCmd)
}
