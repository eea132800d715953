package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Attamusc/issue-summarizer/internal/input"
	"github.com/Attamusc/issue-summarizer/internal/logging"
	"github.com/google/go-github/v66/github"
)

// Issue represents the GitHub issue fields a summary needs
type Issue struct {
	Number            int
	Title             string
	Body              string
	Author            string
	AuthorAssociation string
	Labels            []string
	URL               string
}

// Comment represents a GitHub issue comment
type Comment struct {
	Body   string
	Author string
}

// Tracker reads issues and comments from a single repository
type Tracker struct {
	client *github.Client
	owner  string
	repo   string
}

// NewTracker binds a client to owner/repo
func NewTracker(client *github.Client, owner, repo string) *Tracker {
	return &Tracker{client: client, owner: owner, repo: repo}
}

func (t *Tracker) ref(number int) input.IssueRef {
	return input.IssueRef{
		Owner:  t.owner,
		Repo:   t.repo,
		Number: number,
		URL:    fmt.Sprintf("https://github.com/%s/%s/issues/%d", t.owner, t.repo, number),
	}
}

// FetchIssue retrieves the issue from the GitHub API
func (t *Tracker) FetchIssue(ctx context.Context, number int) (Issue, error) {
	return FetchIssue(ctx, t.client, t.ref(number))
}

// ListComments retrieves every comment on the issue
func (t *Tracker) ListComments(ctx context.Context, number int) ([]Comment, error) {
	return ListComments(ctx, t.client, t.ref(number))
}

// FetchIssue retrieves issue metadata and body from GitHub API
func FetchIssue(ctx context.Context, client *github.Client, ref input.IssueRef) (Issue, error) {
	logger := logging.FromContext(ctx)

	logger.Debug("Fetching issue", "owner", ref.Owner, "repo", ref.Repo, "number", ref.Number)

	issue, _, err := client.Issues.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		logger.Debug("GitHub API issue fetch failed", "issue", ref.String(), "error", err)

		if enhancedErr := enhanceGitHubError(err, ref); enhancedErr != nil {
			return Issue{}, enhancedErr
		}

		return Issue{}, fmt.Errorf("failed to fetch issue %s: %w", ref.String(), err)
	}

	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}

	url := issue.GetHTMLURL()
	if url == "" {
		url = ref.URL
	}

	logger.Debug("Issue fetched successfully", "issue", ref.String(), "title", issue.GetTitle(), "labels", len(labels))

	return Issue{
		Number:            ref.Number,
		Title:             issue.GetTitle(),
		Body:              issue.GetBody(),
		Author:            issue.GetUser().GetLogin(),
		AuthorAssociation: issue.GetAuthorAssociation(),
		Labels:            labels,
		URL:               url,
	}, nil
}

// ListComments retrieves all issue comments in the order GitHub returns them,
// following pagination until the last page.
func ListComments(ctx context.Context, client *github.Client, ref input.IssueRef) ([]Comment, error) {
	logger := logging.FromContext(ctx)

	logger.Debug("Fetching comments", "issue", ref.String())

	var allComments []Comment

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{
			Page:    1,
			PerPage: 100, // Maximum allowed per page
		},
	}

	for {
		comments, resp, err := client.Issues.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, opts)
		if err != nil {
			logger.Debug("GitHub API comments fetch failed", "issue", ref.String(), "page", opts.Page, "error", err)

			if enhancedErr := enhanceGitHubError(err, ref); enhancedErr != nil {
				return nil, enhancedErr
			}

			return nil, fmt.Errorf("failed to fetch comments for issue %s: %w", ref.String(), err)
		}

		logger.Debug("Comments page fetched", "issue", ref.String(), "page", opts.Page, "count", len(comments))

		for _, comment := range comments {
			allComments = append(allComments, Comment{
				Body:   comment.GetBody(),
				Author: comment.GetUser().GetLogin(),
			})
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logger.Debug("Comments fetch completed", "issue", ref.String(), "total", len(allComments))
	return allComments, nil
}

// enhanceGitHubError maps common GitHub API failures to actionable messages.
// It returns nil when no enhancement applies.
func enhanceGitHubError(err error, ref input.IssueRef) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("GitHub API authentication failed for %s. Please check your GITHUB_TOKEN is valid and has the required permissions: %w", ref.String(), err)

		case http.StatusForbidden:
			msg := strings.ToLower(ghErr.Message)
			if strings.Contains(msg, "sso") || strings.Contains(msg, "organization") {
				return fmt.Errorf("GitHub API access denied for %s. Your token may require SSO authorization for this organization: %w", ref.String(), err)
			}
			return fmt.Errorf("GitHub API access denied for %s. Your token may not have sufficient permissions to access this repository: %w", ref.String(), err)

		case http.StatusNotFound:
			return fmt.Errorf("GitHub issue %s not found. This could mean the repository is private and your token lacks access, or the issue doesn't exist: %w", ref.String(), err)
		}
	}

	if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded") {
		return fmt.Errorf("GitHub API request timed out for %s: %w", ref.String(), err)
	}

	return nil
}
