package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Attamusc/issue-summarizer/internal/ai"
	"github.com/Attamusc/issue-summarizer/internal/chunk"
	"github.com/Attamusc/issue-summarizer/internal/github"
	"github.com/Attamusc/issue-summarizer/internal/notify"
	"github.com/Attamusc/issue-summarizer/internal/pipeline"
	"github.com/Attamusc/issue-summarizer/internal/summarize"
	"github.com/Attamusc/issue-summarizer/internal/trigger"
	"github.com/Attamusc/issue-summarizer/internal/webhook"
)

const repoFullName = "alabulei1/a-test"

type byteTokenizer struct{}

func (byteTokenizer) Encode(text string) []int {
	tokens := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		tokens[i] = int(text[i])
	}
	return tokens
}

func (byteTokenizer) Decode(tokens []int) string {
	b := make([]byte, len(tokens))
	for i, tok := range tokens {
		b[i] = byte(tok)
	}
	return string(b)
}

type fakeTracker struct {
	mu       sync.Mutex
	fetched  []int
	fetchErr error
	release  chan struct{}
	ctxErr   error
}

func (f *fakeTracker) FetchIssue(ctx context.Context, number int) (github.Issue, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, number)
	f.ctxErr = ctx.Err()
	if f.fetchErr != nil {
		return github.Issue{}, f.fetchErr
	}
	return github.Issue{
		Number: number,
		Title:  "Cache stampede",
		Body:   "It falls over under load.",
		Author: "alice",
		URL:    fmt.Sprintf("https://github.com/%s/issues/%d", repoFullName, number),
	}, nil
}

func (f *fakeTracker) ListComments(context.Context, int) ([]github.Comment, error) {
	return nil, nil
}

func (f *fakeTracker) Fetched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.fetched...)
}

type fakeCompleter struct{}

func (fakeCompleter) Complete(context.Context, ai.Request) (string, error) {
	return "model output", nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	posts []string
}

func (f *fakeNotifier) Post(_ context.Context, _ notify.Destination, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, text)
	return nil
}

func (f *fakeNotifier) Posts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

func newPipeline(tracker *fakeTracker, notifier *fakeNotifier) *pipeline.Pipeline {
	chunker, err := chunk.NewChunker(byteTokenizer{}, 2800, 2800)
	Expect(err).NotTo(HaveOccurred())
	summarizer, err := summarize.New(fakeCompleter{}, summarize.DefaultPrompts(), 1)
	Expect(err).NotTo(HaveOccurred())

	return &pipeline.Pipeline{
		Detector:    trigger.NewDetector("issue summarize", "").ForRepository(repoFullName),
		Tracker:     tracker,
		Chunker:     chunker,
		Summarizer:  summarizer,
		Notifier:    notifier,
		Destination: notify.Destination{Workspace: "secondstate", Channel: "github-status"},
	}
}

func issuesPayload(repo, action, body string, number int) []byte {
	b, _ := json.Marshal(map[string]any{
		"action":     action,
		"issue":      map[string]any{"number": number, "title": "Cache stampede", "body": body},
		"repository": map[string]any{"full_name": repo},
	})
	return b
}

func commentPayload(repo, action, body string, number int) []byte {
	b, _ := json.Marshal(map[string]any{
		"action":     action,
		"issue":      map[string]any{"number": number, "title": "Cache stampede", "body": "no phrase here"},
		"comment":    map[string]any{"body": body},
		"repository": map[string]any{"full_name": repo},
	})
	return b
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("Handler", func() {
	var (
		router   *gin.Engine
		tracker  *fakeTracker
		notifier *fakeNotifier
		handler  *webhook.Handler
		logs     *bytes.Buffer
		secret   string
	)

	post := func(event string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-GitHub-Event", event)
		req.Header.Set("X-GitHub-Delivery", "d-1")
		if secret != "" {
			req.Header.Set("X-Hub-Signature-256", sign(secret, body))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		tracker = &fakeTracker{}
		notifier = &fakeNotifier{}
		logs = &bytes.Buffer{}
		secret = ""
	})

	JustBeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		handler = webhook.NewHandler(newPipeline(tracker, notifier), secret, time.Minute, logger)
		handler.Register(router)
	})

	It("reports health", func() {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"status":"ok"`))
	})

	It("summarizes an issue carrying the trigger phrase", func() {
		w := post("issues", issuesPayload(repoFullName, "opened", "please issue summarize this", 42))

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(w.Body.String()).To(ContainSubstring(`"issue":42`))

		handler.Wait()
		Expect(tracker.Fetched()).To(Equal([]int{42}))
		Expect(notifier.Posts()).To(Equal([]string{"Issue Summary:\nmodel output\nhttps://github.com/alabulei1/a-test/issues/42"}))
		Expect(logs.String()).To(ContainSubstring("Summary triggered"))
	})

	It("summarizes on a triggering comment", func() {
		w := post("issue_comment", commentPayload(repoFullName, "created", "issue summarize", 7))

		Expect(w.Code).To(Equal(http.StatusAccepted))
		handler.Wait()
		Expect(tracker.Fetched()).To(Equal([]int{7}))
		Expect(notifier.Posts()).To(HaveLen(1))
	})

	It("ignores triggers from another repository", func() {
		w := post("issues", issuesPayload("someone-else/other-repo", "opened", "issue summarize", 5))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("ignored"))
		handler.Wait()
		Expect(tracker.Fetched()).To(BeEmpty())
		Expect(notifier.Posts()).To(BeEmpty())
	})

	It("ignores closed issues and deleted comments", func() {
		Expect(post("issues", issuesPayload(repoFullName, "closed", "issue summarize", 1)).Code).To(Equal(http.StatusOK))
		Expect(post("issue_comment", commentPayload(repoFullName, "deleted", "issue summarize", 1)).Code).To(Equal(http.StatusOK))

		handler.Wait()
		Expect(tracker.Fetched()).To(BeEmpty())
		Expect(notifier.Posts()).To(BeEmpty())
	})

	It("makes no tracker or delivery calls for events without the phrase", func() {
		w := post("issues", issuesPayload(repoFullName, "opened", "Summarize the issue", 3))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("ignored"))
		handler.Wait()
		Expect(tracker.Fetched()).To(BeEmpty())
		Expect(notifier.Posts()).To(BeEmpty())
	})

	It("acknowledges ping and unknown events", func() {
		Expect(post("ping", []byte(`{"zen":"Keep it logically awesome."}`)).Code).To(Equal(http.StatusOK))
		Expect(post("made_up", []byte(`{}`)).Code).To(Equal(http.StatusOK))

		handler.Wait()
		Expect(tracker.Fetched()).To(BeEmpty())
	})

	Context("when the issue cannot be fetched", func() {
		BeforeEach(func() {
			tracker.fetchErr = errors.New("not found")
		})

		It("logs the failed run without affecting the response", func() {
			w := post("issues", issuesPayload(repoFullName, "opened", "issue summarize", 9))

			Expect(w.Code).To(Equal(http.StatusAccepted))
			handler.Wait()
			Expect(logs.String()).To(ContainSubstring("Summary run failed"))
			Expect(logs.String()).To(ContainSubstring(`"fatal":true`))
			Expect(notifier.Posts()).To(BeEmpty())
		})
	})

	Context("when the run outlives the request", func() {
		BeforeEach(func() {
			tracker.release = make(chan struct{})
		})

		It("keeps the run context alive", func() {
			w := post("issues", issuesPayload(repoFullName, "opened", "issue summarize", 5))
			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(tracker.Fetched()).To(BeEmpty())

			close(tracker.release)
			handler.Wait()
			Expect(tracker.Fetched()).To(Equal([]int{5}))
			Expect(tracker.ctxErr).NotTo(HaveOccurred())
			Expect(notifier.Posts()).To(HaveLen(1))
		})
	})

	Context("with a webhook secret", func() {
		BeforeEach(func() {
			secret = "s3cret"
		})

		It("accepts correctly signed deliveries", func() {
			w := post("issues", issuesPayload(repoFullName, "opened", "issue summarize", 11))

			Expect(w.Code).To(Equal(http.StatusAccepted))
			handler.Wait()
			Expect(tracker.Fetched()).To(Equal([]int{11}))
		})

		It("rejects deliveries with a bad signature", func() {
			body := issuesPayload(repoFullName, "opened", "issue summarize", 11)
			req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-GitHub-Event", "issues")
			req.Header.Set("X-Hub-Signature-256", sign("wrong", body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			handler.Wait()
			Expect(tracker.Fetched()).To(BeEmpty())
		})
	})
})
