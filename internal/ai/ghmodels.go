package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/Attamusc/issue-summarizer/internal/logging"
)

// GHModelsClient implements Completer using GitHub Models API
type GHModelsClient struct {
	HTTP      *http.Client
	BaseURL   string
	Model     string
	Token     string
	Retries   int           // additional attempts after the first
	BaseDelay time.Duration // first backoff step
}

// NewGHModelsClient creates a new GitHub Models API client
func NewGHModelsClient(baseURL, model, token string, retries int, timeout time.Duration) *GHModelsClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GHModelsClient{
		HTTP:      &http.Client{Timeout: timeout},
		BaseURL:   baseURL,
		Model:     model,
		Token:     token,
		Retries:   retries,
		BaseDelay: 1 * time.Second,
	}
}

// chatCompletionRequest represents the OpenAI-compatible request format
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	User        string    `json:"user,omitempty"`
}

// chatCompletionResponse represents the OpenAI-compatible response format
type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message Message `json:"message"`
}

const (
	temperature       = 0.2
	userAgent         = "issue-summarizer/1.0"
	completionsPath   = "/inference/chat/completions"
	maxRetryAfterWait = 60 * time.Second
)

// Complete sends the request, retrying rate limits, server errors and
// transport failures with jittered exponential backoff.
func (c *GHModelsClient) Complete(ctx context.Context, req Request) (string, error) {
	logger := logging.FromContext(ctx)

	request := chatCompletionRequest{
		Model:       c.Model,
		Temperature: temperature,
		Messages:    req.messages(),
		User:        req.SessionID,
	}

	attempts := c.Retries + 1
	logger.Debug("Starting AI API request", "model", c.Model, "session", req.SessionID, "attempts", attempts)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.BaseDelay) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(delay) * 0.1) // 10% jitter

			var httpErr *HTTPError
			if errors.As(lastErr, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
				if wait := retryAfter(httpErr.Headers); wait > 0 {
					delay, jitter = wait, 0
				}
			}

			logger.Debug("AI API retry backoff", "attempt", attempt, "delay", delay+jitter)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay + jitter):
			}
		}

		response, err := c.makeHTTPRequest(ctx, request)
		if err != nil {
			lastErr = err
			if !isTransient(err) {
				logger.Debug("AI API request failed", "attempt", attempt+1, "error", err)
				return "", fmt.Errorf("GitHub Models API request failed: %w", err)
			}
			logger.Debug("AI API transient failure", "attempt", attempt+1, "error", err)
			continue
		}

		if len(response.Choices) == 0 {
			return "", fmt.Errorf("GitHub Models API returned empty response")
		}

		content := response.Choices[0].Message.Content
		logger.Debug("AI API request succeeded", "attempt", attempt+1, "length", len(content))
		return content, nil
	}

	return "", fmt.Errorf("GitHub Models API failed after %d attempts: %w", attempts, lastErr)
}

// makeHTTPRequest performs the actual HTTP request
func (c *GHModelsClient) makeHTTPRequest(ctx context.Context, request chatCompletionRequest) (*chatCompletionResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+completionsPath, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Headers:    resp.Header,
		}
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &response, nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Body       string
	Headers    http.Header
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return fmt.Sprintf("HTTP request failed: %v", e.err) }
func (e *transportError) Unwrap() error { return e.err }

// isTransient reports whether a failed call is worth retrying
func isTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}

func retryAfter(h http.Header) time.Duration {
	seconds, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return min(time.Duration(seconds)*time.Second, maxRetryAfterWait)
}
