// Package pipeline wires detection, aggregation, chunking, summarization and
// delivery into one run per event.
package pipeline

import (
	"context"
	"time"

	"github.com/Attamusc/issue-summarizer/internal/chunk"
	"github.com/Attamusc/issue-summarizer/internal/logging"
	"github.com/Attamusc/issue-summarizer/internal/notify"
	"github.com/Attamusc/issue-summarizer/internal/outcome"
	"github.com/Attamusc/issue-summarizer/internal/summarize"
	"github.com/Attamusc/issue-summarizer/internal/thread"
	"github.com/Attamusc/issue-summarizer/internal/trigger"
)

// Pipeline holds the collaborators of a run. It keeps no per-run state and
// is safe for concurrent use.
type Pipeline struct {
	Detector    trigger.Detector
	Tracker     thread.Tracker
	Chunker     *chunk.Chunker
	Summarizer  *summarize.Summarizer
	Notifier    notify.Notifier
	Destination notify.Destination
}

// Report describes what a run did
type Report struct {
	Triggered    bool
	IssueNumber  int
	IssueURL     string
	Mode         summarize.Mode
	Tokens       int
	Chunks       int
	Summary      string
	Delivered    bool
	Degradations []outcome.Degradation
	Duration     time.Duration
}

// Degraded reports whether any recoverable step failed
func (r Report) Degraded() bool {
	return len(r.Degradations) > 0
}

// Triggers reports whether ev would start a run and for which issue. It is
// the same check Handle performs, without running anything.
func (p *Pipeline) Triggers(ev trigger.Event) (int, bool) {
	return p.Detector.Detect(ev)
}

// Handle runs the pipeline for ev when it carries the trigger phrase. Events
// that do not trigger return a zero Report and touch no collaborator.
func (p *Pipeline) Handle(ctx context.Context, ev trigger.Event) (Report, error) {
	number, ok := p.Triggers(ev)
	if !ok {
		logging.FromContext(ctx).Debug("Event did not trigger a summary", "kind", ev.Kind, "action", ev.Action, "repository", ev.Repo, "issue", ev.IssueNumber)
		return Report{}, nil
	}
	return p.Run(ctx, number)
}

// Run summarizes an issue and delivers the result. The returned error is
// always an *outcome.FatalError: issue fetch or delivery failed.
func (p *Pipeline) Run(ctx context.Context, number int) (Report, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With("issue", number)
	ctx = logging.WithLogger(ctx, logger)

	report := Report{Triggered: true, IssueNumber: number}

	logger.Info("Summarizing issue")

	th, err := thread.Aggregate(ctx, p.Tracker, number)
	if err != nil {
		logger.Error("Issue fetch failed, aborting run", "error", err)
		report.Duration = time.Since(start)
		return report, err
	}
	report.IssueURL = th.Issue.URL
	report.Degradations = append(report.Degradations, th.Degradations...)

	chunks := p.Chunker.Split(th.Texts())
	report.Tokens = chunks.Tokens
	report.Chunks = len(chunks.Chunks)
	logger.Debug("Thread chunked", "fragments", len(th.Fragments), "tokens", chunks.Tokens, "chunks", len(chunks.Chunks), "split", chunks.Split)

	result := p.Summarizer.Summarize(ctx, summarize.Input{Issue: th.Issue, Chunks: chunks})
	report.Mode = result.Mode
	report.Summary = result.Summary
	report.Degradations = append(report.Degradations, result.Degradations...)

	if err := notify.Deliver(ctx, p.Notifier, p.Destination, result.Summary, th.Issue.URL); err != nil {
		logger.Error("Delivery failed", "destination", p.Destination.String(), "error", err)
		report.Duration = time.Since(start)
		return report, outcome.Fatal(outcome.StepDeliver, err)
	}
	report.Delivered = true
	report.Duration = time.Since(start)

	logger.Info("Summary delivered",
		"mode", report.Mode,
		"tokens", report.Tokens,
		"chunks", report.Chunks,
		"degradations", len(report.Degradations),
		"duration", report.Duration)

	return report, nil
}
