package github

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const (
	userAgent         = "issue-summarizer/1.0"
	maxRetries        = 3
	baseBackoff       = 1 * time.Second
	requestTimeoutSec = 30
)

// New creates a GitHub client with retry logic. The token is optional;
// without one requests are unauthenticated. A non-empty baseURL points the
// client at a GitHub Enterprise or test server.
func New(ctx context.Context, token, baseURL string) (*github.Client, error) {
	var base http.RoundTripper = http.DefaultTransport
	if token != "" {
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   http.DefaultTransport,
		}
	}

	httpClient := &http.Client{
		Timeout: requestTimeoutSec * time.Second,
		Transport: &retryTransport{
			base:    base,
			backoff: baseBackoff,
		},
	}

	client := github.NewClient(httpClient)
	client.UserAgent = userAgent

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}

	return client, nil
}

// retryTransport wraps http.RoundTripper with retry logic for GitHub API
type retryTransport struct {
	base    http.RoundTripper
	backoff time.Duration
}

// RoundTrip retries transport errors, 5xx responses and rate-limited 403s
func (rt *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		reqClone := req.Clone(req.Context())

		resp, err := rt.base.RoundTrip(reqClone)
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				if sleepErr := sleepContext(req.Context(), calculateBackoff(rt.backoff, attempt)); sleepErr != nil {
					return nil, sleepErr
				}
			}
			continue
		}

		if isAuthorizationError(resp) {
			return resp, nil
		}

		if shouldRetry(resp) && attempt < maxRetries {
			wait := calculateBackoff(rt.backoff, attempt)
			if resp.StatusCode == http.StatusForbidden {
				wait = getRateLimitRetryAfter(resp)
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("GitHub API returned %s", resp.Status)
			if sleepErr := sleepContext(req.Context(), wait); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("GitHub API request failed after %d attempts: %w", maxRetries+1, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldRetry determines if a response should be retried
func shouldRetry(resp *http.Response) bool {
	if resp.StatusCode >= 500 {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && isRateLimited(resp)
}

func isRateLimited(resp *http.Response) bool {
	return resp.Header.Get("X-RateLimit-Remaining") == "0" ||
		resp.Header.Get("Retry-After") != ""
}

// getRateLimitRetryAfter calculates retry delay for rate limit responses
func getRateLimitRetryAfter(resp *http.Response) time.Duration {
	if retryAfterStr := resp.Header.Get("Retry-After"); retryAfterStr != "" {
		if retryAfterSec, err := strconv.Atoi(retryAfterStr); err == nil {
			return time.Duration(retryAfterSec) * time.Second
		}
	}

	if resetTimeStr := resp.Header.Get("X-RateLimit-Reset"); resetTimeStr != "" {
		if resetTime, err := strconv.ParseInt(resetTimeStr, 10, 64); err == nil {
			resetDuration := time.Until(time.Unix(resetTime, 0))
			if resetDuration > 0 {
				// small buffer to avoid racing the reset
				return resetDuration + (5 * time.Second)
			}
		}
	}

	return 60 * time.Second
}

// isAuthorizationError reports responses that must not be retried
func isAuthorizationError(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusNotFound:
		return true
	case http.StatusForbidden:
		return !isRateLimited(resp)
	}
	return false
}

// calculateBackoff returns base * 2^attempt with ±25% jitter
func calculateBackoff(base time.Duration, attempt int) time.Duration {
	backoff := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	jitter := backoff / 4
	return backoff + jitter - (2 * jitter * time.Duration(time.Now().UnixNano()%2))
}
