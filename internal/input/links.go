package input

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// IssueRef represents a GitHub issue reference
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
	URL    string
}

// String returns a string representation of the IssueRef
func (ref IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", ref.Owner, ref.Repo, ref.Number)
}

// githubIssueRegex matches GitHub issue URLs
var githubIssueRegex = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/issues/(\d+)`)

// shortRefRegex matches owner/repo#123
var shortRefRegex = regexp.MustCompile(`^([^/\s]+)/([^/#\s]+)#(\d+)$`)

// ParseIssueRef parses a single issue reference. Accepted forms:
//
//	https://github.com/{owner}/{repo}/issues/{number}[?query][#fragment]
//	{owner}/{repo}#{number}
//	#{number} or {number}   (resolved against defaultOwner/defaultRepo)
func ParseIssueRef(arg, defaultOwner, defaultRepo string) (IssueRef, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return IssueRef{}, fmt.Errorf("empty issue reference")
	}

	var owner, repo, numberStr string

	switch {
	case strings.HasPrefix(arg, "https://"):
		parsedURL, err := url.Parse(arg)
		if err != nil {
			return IssueRef{}, fmt.Errorf("invalid URL format: %s", arg)
		}
		matches := githubIssueRegex.FindStringSubmatch(parsedURL.String())
		if matches == nil {
			return IssueRef{}, fmt.Errorf("invalid GitHub issue URL format: %s", arg)
		}
		owner, repo, numberStr = matches[1], matches[2], matches[3]

	case shortRefRegex.MatchString(arg):
		matches := shortRefRegex.FindStringSubmatch(arg)
		owner, repo, numberStr = matches[1], matches[2], matches[3]

	default:
		if defaultOwner == "" || defaultRepo == "" {
			return IssueRef{}, fmt.Errorf("issue %s has no repository and no default owner/repo is configured", arg)
		}
		owner, repo, numberStr = defaultOwner, defaultRepo, strings.TrimPrefix(arg, "#")
	}

	number, err := strconv.Atoi(numberStr)
	if err != nil || number <= 0 {
		return IssueRef{}, fmt.Errorf("invalid issue number in reference: %s", arg)
	}

	return IssueRef{
		Owner:  owner,
		Repo:   repo,
		Number: number,
		URL:    fmt.Sprintf("https://github.com/%s/%s/issues/%d", owner, repo, number),
	}, nil
}
