package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Attamusc/issue-summarizer/internal/logging"
	"github.com/Attamusc/issue-summarizer/internal/webhook"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for GitHub webhooks and summarize triggered issues",
	Long: `Serve starts an HTTP server that accepts GitHub "issues" and "issue_comment"
webhook deliveries on POST /webhook. Deliveries whose text contains the trigger
phrase start a summarization run in the background; the summary is posted to
the configured Slack channel.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	notifier, err := initNotifier(cfg, false, os.Stdout)
	if err != nil {
		return err
	}

	p, err := buildPipeline(ctx, cfg, cfg.GitHub.Owner, cfg.GitHub.Repo, notifier, logger)
	if err != nil {
		return err
	}

	handler := webhook.NewHandler(p, cfg.Server.WebhookSecret, cfg.Server.RunTimeout, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.Register(router)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening for webhooks",
			"addr", cfg.Server.ListenAddr,
			"repository", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo,
			"trigger", p.Detector.Phrase(),
			"destination", p.Destination.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("webhook server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down, waiting for in-flight runs")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}
	handler.Wait()
	logger.Info("Shutdown complete")
	return nil
}
