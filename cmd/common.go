package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Attamusc/issue-summarizer/internal/ai"
	"github.com/Attamusc/issue-summarizer/internal/chunk"
	"github.com/Attamusc/issue-summarizer/internal/config"
	"github.com/Attamusc/issue-summarizer/internal/github"
	"github.com/Attamusc/issue-summarizer/internal/logging"
	"github.com/Attamusc/issue-summarizer/internal/notify"
	"github.com/Attamusc/issue-summarizer/internal/pipeline"
	"github.com/Attamusc/issue-summarizer/internal/summarize"
	"github.com/Attamusc/issue-summarizer/internal/trigger"
)

// loadConfig reads configuration and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Flags{Verbose: verbose, Quiet: quiet})
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a logger configured for progress output.
// Stderr keeps stdout clean for dry-run output.
func setupLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, logging.Options{
		Level:   logging.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Verbose: cfg.Log.Verbose,
		Quiet:   cfg.Log.Quiet,
	})
}

// initCompleter creates the summarization backend selected by configuration
func initCompleter(cfg *config.Config, logger *slog.Logger) ai.Completer {
	var completer ai.Completer
	switch cfg.Models.Backend {
	case config.BackendOpenAI:
		logger.Debug("Using OpenAI summarizer backend", "model", cfg.Models.OpenAIModel)
		completer = ai.NewOpenAIClient(cfg.Models.OpenAIKey, cfg.Models.OpenAIBaseURL, cfg.Models.OpenAIModel, cfg.Models.Retries, cfg.Models.Timeout)
	default:
		logger.Debug("Using GitHub Models summarizer backend", "model", cfg.Models.Model)
		completer = ai.NewGHModelsClient(cfg.Models.BaseURL, cfg.Models.Model, cfg.GitHub.Token, cfg.Models.Retries, cfg.Models.Timeout)
	}

	if cfg.Models.KeepHistory {
		logger.Debug("Conversation history enabled, map requests run sequentially")
		completer = ai.WithHistory(completer)
	}
	return completer
}

// initNotifier creates the delivery sink. Dry runs print to out instead of
// posting to Slack.
func initNotifier(cfg *config.Config, dryRun bool, out io.Writer) (notify.Notifier, error) {
	if dryRun {
		return notify.NewWriterNotifier(out), nil
	}
	if cfg.Slack.Token == "" {
		return nil, errors.New("SLACK_TOKEN is required to post summaries (use --dry-run to print them instead)")
	}
	return notify.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.APIURL), nil
}

func loadPrompts(cfg *config.Config) (summarize.Prompts, error) {
	if cfg.Models.PromptsFile == "" {
		return summarize.DefaultPrompts(), nil
	}
	return summarize.LoadPrompts(cfg.Models.PromptsFile)
}

// buildPipeline wires every collaborator of a run for the owner/repo pair
func buildPipeline(ctx context.Context, cfg *config.Config, owner, repo string, notifier notify.Notifier, logger *slog.Logger) (*pipeline.Pipeline, error) {
	logger.Debug("Initializing GitHub client", "repository", owner+"/"+repo)
	client, err := github.New(ctx, cfg.GitHub.Token, cfg.GitHub.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	tokenizer, err := chunk.NewTiktoken(cfg.Chunking.Encoding)
	if err != nil {
		return nil, err
	}
	chunker, err := chunk.NewChunker(tokenizer, cfg.Chunking.Budget, cfg.Chunking.Threshold)
	if err != nil {
		return nil, err
	}

	prompts, err := loadPrompts(cfg)
	if err != nil {
		return nil, err
	}
	summarizer, err := summarize.New(initCompleter(cfg, logger), prompts, cfg.MapConcurrency())
	if err != nil {
		return nil, err
	}

	return &pipeline.Pipeline{
		Detector:    trigger.NewDetector(cfg.Trigger.Phrase, cfg.Trigger.Mention).ForRepository(owner + "/" + repo),
		Tracker:     github.NewTracker(client, owner, repo),
		Chunker:     chunker,
		Summarizer:  summarizer,
		Notifier:    notifier,
		Destination: notify.Destination{Workspace: cfg.Slack.Workspace, Channel: cfg.Slack.Channel},
	}, nil
}
