package trigger

import (
	"strings"

	"github.com/google/go-github/v66/github"
)

// Kind distinguishes the two event shapes that can start a run.
type Kind int

const (
	// KindIssue is an issue opened, edited or otherwise updated
	KindIssue Kind = iota + 1
	// KindComment is a comment posted on an issue
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindIssue:
		return "issue"
	case KindComment:
		return "comment"
	default:
		return "unknown"
	}
}

const (
	actionClosed  = "closed"
	actionDeleted = "deleted"
)

// Event is a single inbound tracker event
type Event struct {
	Kind        Kind
	Action      string
	IssueNumber int
	Body        string // issue body for KindIssue, comment body for KindComment
	Repo        string // "owner/name" of the repository the event came from
}

// Detector decides whether an Event starts a summarization run
type Detector struct {
	phrase string
	repo   string
}

// NewDetector builds a Detector for phrase, optionally scoped to a mention
// handle such as "@bot" (matching "@bot <phrase>").
func NewDetector(phrase, mention string) Detector {
	mention = strings.TrimSpace(mention)
	if mention != "" {
		phrase = mention + " " + phrase
	}
	return Detector{phrase: phrase}
}

// ForRepository restricts the detector to events from one repository, given
// as "owner/name". Events from any other repository, or with no repository,
// never trigger.
func (d Detector) ForRepository(fullName string) Detector {
	d.repo = strings.TrimSpace(fullName)
	return d
}

// Repository returns the repository the detector is scoped to, if any
func (d Detector) Repository() string {
	return d.repo
}

// Phrase returns the literal text the detector looks for
func (d Detector) Phrase() string {
	return d.phrase
}

// Detect returns the target issue number and true when the event triggers a run.
// Matching is case-sensitive substring containment.
func (d Detector) Detect(ev Event) (int, bool) {
	if d.phrase == "" {
		return 0, false
	}
	// GitHub owner and repository names are case-insensitive
	if d.repo != "" && !strings.EqualFold(ev.Repo, d.repo) {
		return 0, false
	}

	switch ev.Kind {
	case KindIssue:
		if ev.Action == actionClosed {
			return 0, false
		}
	case KindComment:
		if ev.Action == actionDeleted {
			return 0, false
		}
	default:
		return 0, false
	}

	if !strings.Contains(ev.Body, d.phrase) {
		return 0, false
	}
	return ev.IssueNumber, true
}

// FromIssuesEvent converts an "issues" webhook payload
func FromIssuesEvent(e *github.IssuesEvent) Event {
	return Event{
		Kind:        KindIssue,
		Action:      e.GetAction(),
		IssueNumber: e.GetIssue().GetNumber(),
		Body:        e.GetIssue().GetBody(),
		Repo:        e.GetRepo().GetFullName(),
	}
}

// FromIssueCommentEvent converts an "issue_comment" webhook payload
func FromIssueCommentEvent(e *github.IssueCommentEvent) Event {
	return Event{
		Kind:        KindComment,
		Action:      e.GetAction(),
		IssueNumber: e.GetIssue().GetNumber(),
		Body:        e.GetComment().GetBody(),
		Repo:        e.GetRepo().GetFullName(),
	}
}
