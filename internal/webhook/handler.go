// Package webhook receives GitHub issue events over HTTP and starts a
// summarization run for each one that carries the trigger phrase.
package webhook

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v66/github"

	"github.com/Attamusc/issue-summarizer/internal/logging"
	"github.com/Attamusc/issue-summarizer/internal/outcome"
	"github.com/Attamusc/issue-summarizer/internal/pipeline"
	"github.com/Attamusc/issue-summarizer/internal/trigger"
)

// Runner decides whether an event triggers and runs the pipeline for it.
// *pipeline.Pipeline implements it.
type Runner interface {
	Triggers(ev trigger.Event) (int, bool)
	Handle(ctx context.Context, ev trigger.Event) (pipeline.Report, error)
}

// Handler serves the webhook endpoint. Triggered runs execute in the
// background, detached from the request that started them.
type Handler struct {
	runner     Runner
	secret     []byte
	runTimeout time.Duration
	logger     *slog.Logger

	wg sync.WaitGroup
}

// NewHandler creates a Handler. An empty secret disables signature checks.
func NewHandler(runner Runner, secret string, runTimeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runner:     runner,
		secret:     []byte(secret),
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Register mounts the webhook and health routes
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/webhook", h.HandleEvent)
	r.GET("/health", h.Health)
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleEvent parses an issues or issue_comment delivery and dispatches a
// run when it triggers. Every other event type is acknowledged and ignored.
func (h *Handler) HandleEvent(c *gin.Context) {
	eventType := github.WebHookType(c.Request)
	logger := h.logger.With("event", eventType, "delivery", github.DeliveryID(c.Request))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if len(h.secret) > 0 {
		signature := c.GetHeader(github.SHA256SignatureHeader)
		if signature == "" {
			signature = c.GetHeader(github.SHA1SignatureHeader)
		}
		body, err = github.ValidatePayloadFromBody(c.ContentType(), bytes.NewReader(body), signature, h.secret)
		if err != nil {
			logger.Warn("Rejected webhook with invalid signature", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		logger.Debug("Ignoring unsupported webhook", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	var ev trigger.Event
	switch e := payload.(type) {
	case *github.IssuesEvent:
		ev = trigger.FromIssuesEvent(e)
	case *github.IssueCommentEvent:
		ev = trigger.FromIssueCommentEvent(e)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	number, ok := h.runner.Triggers(ev)
	if !ok {
		logger.Debug("Event did not trigger a summary", "kind", ev.Kind, "action", ev.Action, "repository", ev.Repo, "issue", ev.IssueNumber)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	logger.Info("Summary triggered", "kind", ev.Kind, "action", ev.Action, "repository", ev.Repo, "issue", number)
	h.dispatch(c.Request.Context(), logger, ev)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "issue": number})
}

func (h *Handler) dispatch(reqCtx context.Context, logger *slog.Logger, ev trigger.Event) {
	ctx := logging.WithLogger(context.WithoutCancel(reqCtx), logger)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		var cancel context.CancelFunc = func() {}
		if h.runTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		}
		defer cancel()

		report, err := h.runner.Handle(ctx, ev)
		if err != nil {
			logger.Error("Summary run failed", "issue", ev.IssueNumber, "fatal", outcome.IsFatal(err), "error", err)
			return
		}
		if report.Degraded() {
			logger.Warn("Summary delivered with degradations", "issue", report.IssueNumber, "degradations", len(report.Degradations))
		}
	}()
}

// Wait blocks until every dispatched run has finished
func (h *Handler) Wait() {
	h.wg.Wait()
}
