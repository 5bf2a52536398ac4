package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v83/github"
)

const (
	pageSizeDefault    = 100
	rateLimitThreshold = 10
)

var (
	ErrInvalidIssueRef = errors.New("invalid issue reference, expected owner/repo#number or an issue URL")

	issueRefRegEx = regexp.MustCompile(`^([\w.-]+)/([\w.-]+)#(\d+)$`)
)

// IssueRef identifies a GitHub issue or pull request.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// ParseIssueRef accepts owner/repo#number or a github.com issue or pull URL.
func ParseIssueRef(s string) (IssueRef, error) {
	s = strings.TrimSpace(s)

	if m := issueRefRegEx.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[3])
		if err != nil || n <= 0 {
			return IssueRef{}, ErrInvalidIssueRef
		}
		return IssueRef{Owner: m[1], Repo: m[2], Number: n}, nil
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return IssueRef{}, ErrInvalidIssueRef
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || (parts[2] != "issues" && parts[2] != "pull") {
		return IssueRef{}, ErrInvalidIssueRef
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil || n <= 0 {
		return IssueRef{}, ErrInvalidIssueRef
	}
	return IssueRef{Owner: parts[0], Repo: parts[1], Number: n}, nil
}

// FromGitHubIssue returns the title and body of the issue and, when
// withComments is set, the body of every comment.
func FromGitHubIssue(ctx context.Context, client *github.Client, ref IssueRef, withComments bool) (*Document, error) {
	if client == nil {
		return nil, errors.New("github client required")
	}

	issue, resp, err := client.Issues.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, fmt.Errorf("error getting issue %s: %w", ref, err)
	}
	checkRateLimit(resp)

	parts := []string{issue.GetTitle(), issue.GetBody()}

	if withComments {
		opt := &github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{PerPage: pageSizeDefault, Page: 1},
		}
		for {
			comments, resp, err := client.Issues.ListComments(ctx, ref.Owner, ref.Repo, ref.Number, opt)
			if err != nil {
				return nil, fmt.Errorf("error listing comments for %s: %w", ref, err)
			}
			checkRateLimit(resp)

			for _, c := range comments {
				parts = append(parts, c.GetBody())
			}

			slog.Debug("listed issue comments", "issue", ref.String(), "page", opt.Page, "count", len(comments))

			if resp.NextPage == 0 {
				break
			}
			opt.Page = resp.NextPage
		}
	}

	text := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if text == "" {
		return nil, fmt.Errorf("%s: %w", ref, ErrEmptyDocument)
	}

	return &Document{
		Source: "issue:" + ref.String(),
		Title:  issue.GetTitle(),
		Text:   text,
	}, nil
}

func checkRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}

	if resp.Rate.Remaining > rateLimitThreshold || resp.Rate.Limit == 0 {
		return
	}

	resetAt := resp.Rate.Reset.Time
	wait := time.Until(resetAt)
	if wait <= 0 {
		return
	}

	jitter := time.Duration(rand.IntN(2000)) * time.Millisecond
	total := wait + jitter

	slog.Info("rate limit approaching, waiting",
		"remaining", resp.Rate.Remaining,
		"reset_at", resetAt.Format(time.RFC3339),
		"wait", total.String(),
	)

	time.Sleep(total)
}
