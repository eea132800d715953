// Package thread turns an issue and its comments into an ordered sequence of
// attributed text fragments.
package thread

import (
	"context"
	"fmt"
	"strings"

	"github.com/Attamusc/issue-summarizer/internal/github"
	"github.com/Attamusc/issue-summarizer/internal/logging"
	"github.com/Attamusc/issue-summarizer/internal/outcome"
)

// unknownAuthor stands in for accounts GitHub no longer reports (deleted users).
const unknownAuthor = "ghost"

// Tracker is the issue-tracker surface the aggregator needs
type Tracker interface {
	FetchIssue(ctx context.Context, number int) (github.Issue, error)
	ListComments(ctx context.Context, number int) ([]github.Comment, error)
}

// Fragment is one attributed unit of discussion text
type Fragment struct {
	Author string
	Role   string
	Text   string
}

// Thread is the aggregated discussion of one issue
type Thread struct {
	Issue        github.Issue
	Fragments    []Fragment
	Degradations []outcome.Degradation
}

// Texts returns the fragment texts in order
func (t Thread) Texts() []string {
	texts := make([]string, len(t.Fragments))
	for i, f := range t.Fragments {
		texts[i] = f.Text
	}
	return texts
}

// Aggregate fetches the issue and its comments. A failed issue fetch is fatal;
// a failed comment listing degrades the thread to the issue body alone.
func Aggregate(ctx context.Context, tracker Tracker, number int) (Thread, error) {
	logger := logging.FromContext(ctx)

	issue, err := tracker.FetchIssue(ctx, number)
	if err != nil {
		return Thread{}, outcome.Fatal(outcome.StepFetchIssue, err)
	}
	if issue.Author == "" {
		issue.Author = unknownAuthor
	}

	th := Thread{
		Issue:     issue,
		Fragments: []Fragment{IssueFragment(issue)},
	}

	comments, err := tracker.ListComments(ctx, number)
	if err != nil {
		logger.Warn("Listing comments failed, summarizing issue body only", "issue", number, "error", err)
		th.Degradations = append(th.Degradations, outcome.Degraded(outcome.StepListComments, err))
		return th, nil
	}

	for _, c := range comments {
		th.Fragments = append(th.Fragments, CommentFragment(c))
	}

	logger.Debug("Thread aggregated", "issue", number, "fragments", len(th.Fragments))
	return th, nil
}

// IssueFragment renders the issue body with its creator, role, title and labels
func IssueFragment(issue github.Issue) Fragment {
	author := issue.Author
	if author == "" {
		author = unknownAuthor
	}
	return Fragment{
		Author: author,
		Role:   issue.AuthorAssociation,
		Text: fmt.Sprintf("User '%s', who holds the role of '%s', has submitted an issue titled '%s', labeled as '%s', with the following post: '%s'.",
			author, issue.AuthorAssociation, issue.Title, strings.Join(issue.Labels, ", "), issue.Body),
	}
}

// CommentFragment renders a comment as "<author> commented: <body>"
func CommentFragment(c github.Comment) Fragment {
	author := c.Author
	if author == "" {
		author = unknownAuthor
	}
	return Fragment{
		Author: author,
		Text:   fmt.Sprintf("%s commented: %s", author, c.Body),
	}
}
