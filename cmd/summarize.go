package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Attamusc/issue-summarizer/internal/input"
	"github.com/Attamusc/issue-summarizer/internal/logging"
)

var dryRun bool

var summarizeCmd = &cobra.Command{
	Use:   "summarize <issue>",
	Short: "Summarize one issue thread without waiting for a trigger",
	Long: `Summarize runs the pipeline once for a single issue. The issue can be given
as a number, #number, owner/repo#number or a full GitHub issue URL; bare
numbers resolve against GITHUB_OWNER and GITHUB_REPO.

With --dry-run the message is printed to stdout instead of posted to Slack.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)

	summarizeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the summary instead of posting it to Slack")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	ctx := logging.WithLogger(context.Background(), logger)

	ref, err := input.ParseIssueRef(args[0], cfg.GitHub.Owner, cfg.GitHub.Repo)
	if err != nil {
		return fmt.Errorf("invalid issue reference: %w", err)
	}

	notifier, err := initNotifier(cfg, dryRun, os.Stdout)
	if err != nil {
		return err
	}

	p, err := buildPipeline(ctx, cfg, ref.Owner, ref.Repo, notifier, logger)
	if err != nil {
		return err
	}

	report, err := p.Run(ctx, ref.Number)
	if err != nil {
		return err
	}

	for _, d := range report.Degradations {
		logger.Warn("Step degraded", "step", d.String())
	}
	return nil
}
