// Package summarize runs the single-pass or map-reduce summarization protocol
// over a chunked issue thread.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/Attamusc/issue-summarizer/internal/ai"
	"github.com/Attamusc/issue-summarizer/internal/chunk"
	"github.com/Attamusc/issue-summarizer/internal/github"
	"github.com/Attamusc/issue-summarizer/internal/logging"
	"github.com/Attamusc/issue-summarizer/internal/outcome"
)

// Mode is the protocol chosen for a run
type Mode string

const (
	ModeSinglePass Mode = "single_pass"
	ModeMapReduce  Mode = "map_reduce"
)

// DefaultConcurrency bounds in-flight map requests
const DefaultConcurrency = 3

// SessionID returns the backend conversation key for an issue
func SessionID(issueNumber int) string {
	return fmt.Sprintf("Issue#%d", issueNumber)
}

// Input is everything one summarization run needs
type Input struct {
	Issue  github.Issue
	Chunks chunk.Result
}

// Result is the summary plus a record of what was degraded along the way.
// Summary is empty when the final request failed.
type Result struct {
	Summary      string
	Mode         Mode
	MapCalls     int
	Degradations []outcome.Degradation
}

// Summarizer drives the completion backend
type Summarizer struct {
	completer   ai.Completer
	templates   *templates
	concurrency int
}

// New compiles prompts and returns a Summarizer. concurrency < 1 falls back to DefaultConcurrency.
func New(completer ai.Completer, prompts Prompts, concurrency int) (*Summarizer, error) {
	t, err := prompts.compile()
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Summarizer{completer: completer, templates: t, concurrency: concurrency}, nil
}

// Summarize never fails outright: failed map requests drop their chunk and a
// failed final request yields an empty summary. Both are reported in Result.
func (s *Summarizer) Summarize(ctx context.Context, in Input) Result {
	data := PromptData{
		Creator: in.Issue.Author,
		Role:    in.Issue.AuthorAssociation,
		Title:   in.Issue.Title,
		Labels:  strings.Join(in.Issue.Labels, ", "),
	}
	session := SessionID(in.Issue.Number)

	if !in.Chunks.Split {
		data.Text = strings.Join(in.Chunks.Chunks, "")
		return s.singlePass(ctx, session, data)
	}
	return s.mapReduce(ctx, session, data, in.Chunks.Chunks)
}

func (s *Summarizer) singlePass(ctx context.Context, session string, data PromptData) Result {
	logger := logging.FromContext(ctx)
	result := Result{Mode: ModeSinglePass}

	logger.Debug("Summarizing in a single pass", "session", session)
	summary, err := s.complete(ctx, session, s.templates.singlePass, data, true)
	if err != nil {
		logger.Warn("Single-pass summarization failed, delivering without summary", "session", session, "error", err)
		result.Degradations = append(result.Degradations, outcome.Degraded(outcome.StepSinglePass, err))
		return result
	}

	result.Summary = summary
	return result
}

func (s *Summarizer) mapReduce(ctx context.Context, session string, data PromptData, chunks []string) Result {
	logger := logging.FromContext(ctx)
	result := Result{Mode: ModeMapReduce, MapCalls: len(chunks)}

	logger.Debug("Summarizing with map-reduce", "session", session, "chunks", len(chunks), "concurrency", s.concurrency)

	interim := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	semaphore := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, text := range chunks {
		wg.Add(1)
		semaphore <- struct{}{} // acquire in chunk order so chunk 0 is dispatched first
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			d := data
			d.Text = text
			interim[i], errs[i] = s.complete(ctx, session, s.templates.mapT, d, i == 0)
		}(i, text)
	}
	wg.Wait()

	var buf strings.Builder
	for i := range chunks {
		if errs[i] != nil {
			logger.Warn("Map summarization failed, omitting chunk", "session", session, "chunk", i, "error", errs[i])
			result.Degradations = append(result.Degradations, outcome.Degradation{Step: outcome.StepMap, Index: i, Err: errs[i]})
			continue
		}
		buf.WriteString(interim[i])
	}

	data.Interim = buf.String()
	summary, err := s.complete(ctx, session, s.templates.reduce, data, false)
	if err != nil {
		logger.Warn("Reduce summarization failed, delivering without summary", "session", session, "error", err)
		result.Degradations = append(result.Degradations, outcome.Degraded(outcome.StepReduce, err))
		return result
	}

	result.Summary = summary
	return result
}

func (s *Summarizer) complete(ctx context.Context, session string, tmpl *template.Template, data PromptData, restart bool) (string, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", err
	}
	return s.completer.Complete(ctx, ai.Request{
		SessionID:    session,
		SystemPrompt: s.templates.system,
		UserPrompt:   prompt,
		Restart:      restart,
	})
}
