package thread

import (
	"context"
	"errors"
	"testing"

	"github.com/Attamusc/issue-summarizer/internal/github"
	"github.com/Attamusc/issue-summarizer/internal/outcome"
)

type fakeTracker struct {
	issue       github.Issue
	issueErr    error
	comments    []github.Comment
	commentsErr error
	listCalls   int
}

func (f *fakeTracker) FetchIssue(_ context.Context, number int) (github.Issue, error) {
	if f.issueErr != nil {
		return github.Issue{}, f.issueErr
	}
	issue := f.issue
	issue.Number = number
	return issue, nil
}

func (f *fakeTracker) ListComments(_ context.Context, _ int) ([]github.Comment, error) {
	f.listCalls++
	return f.comments, f.commentsErr
}

func testIssue() github.Issue {
	return github.Issue{
		Title:             "Login broken",
		Body:              "Cannot log in since v2.",
		Author:            "alice",
		AuthorAssociation: "MEMBER",
		Labels:            []string{"bug", "auth"},
		URL:               "https://github.com/o/r/issues/9",
	}
}

func TestAggregate_IssueAndComments(t *testing.T) {
	tracker := &fakeTracker{
		issue: testIssue(),
		comments: []github.Comment{
			{Author: "bob", Body: "Same here."},
			{Author: "carol", Body: "Fixed in #10."},
		},
	}

	th, err := Aggregate(context.Background(), tracker, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{
		"User 'alice', who holds the role of 'MEMBER', has submitted an issue titled 'Login broken', labeled as 'bug, auth', with the following post: 'Cannot log in since v2.'.",
		"bob commented: Same here.",
		"carol commented: Fixed in #10.",
	}

	texts := th.Texts()
	if len(texts) != len(expected) {
		t.Fatalf("expected %d fragments, got %d", len(expected), len(texts))
	}
	for i := range expected {
		if texts[i] != expected[i] {
			t.Errorf("fragment %d:\nexpected %q\ngot      %q", i, expected[i], texts[i])
		}
	}

	if th.Fragments[0].Role != "MEMBER" || th.Fragments[0].Author != "alice" {
		t.Errorf("unexpected issue fragment attribution %+v", th.Fragments[0])
	}
	if len(th.Degradations) != 0 {
		t.Errorf("expected no degradations, got %v", th.Degradations)
	}
	if th.Issue.Number != 9 {
		t.Errorf("expected issue number 9, got %d", th.Issue.Number)
	}
}

func TestAggregate_IssueFetchFailureIsFatal(t *testing.T) {
	tracker := &fakeTracker{issueErr: errors.New("404")}

	_, err := Aggregate(context.Background(), tracker, 1)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !outcome.IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if tracker.listCalls != 0 {
		t.Errorf("expected comments not to be listed after a failed fetch")
	}
}

func TestAggregate_CommentFailureDegrades(t *testing.T) {
	tracker := &fakeTracker{
		issue:       testIssue(),
		commentsErr: errors.New("502 bad gateway"),
	}

	th, err := Aggregate(context.Background(), tracker, 9)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(th.Fragments) != 1 {
		t.Fatalf("expected only the issue fragment, got %d", len(th.Fragments))
	}
	if len(th.Degradations) != 1 || th.Degradations[0].Step != outcome.StepListComments {
		t.Errorf("expected a list_comments degradation, got %v", th.Degradations)
	}
}

func TestAggregate_MissingTextAndAuthors(t *testing.T) {
	tracker := &fakeTracker{
		issue:    github.Issue{Title: "Empty"},
		comments: []github.Comment{{}},
	}

	th, err := Aggregate(context.Background(), tracker, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, f := range th.Fragments {
		if f.Author == "" {
			t.Errorf("fragment %d has empty attribution", i)
		}
	}
	if th.Fragments[1].Text != "ghost commented: " {
		t.Errorf("unexpected comment text %q", th.Fragments[1].Text)
	}
	if th.Issue.Author != "ghost" {
		t.Errorf("expected ghost issue author, got %q", th.Issue.Author)
	}
}
