package cmd

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "issue-summarizer",
	Short: "Summarize GitHub issue threads and post them to Slack",
	Long: `issue-summarizer watches a GitHub repository for issues and comments that
contain a trigger phrase. When one arrives it collects the whole thread,
splits it into token-bounded chunks, summarizes it with a language model and
posts the summary to a Slack channel.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior - show help
		cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose progress output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress all progress output")
}
