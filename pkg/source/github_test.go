package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v83/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssueRef(t *testing.T) {
	tests := []struct {
		in      string
		want    IssueRef
		wantErr bool
	}{
		{in: "mchmarny/agape#12", want: IssueRef{"mchmarny", "agape", 12}},
		{in: " golang/go#1 ", want: IssueRef{"golang", "go", 1}},
		{in: "https://github.com/mchmarny/agape/issues/7", want: IssueRef{"mchmarny", "agape", 7}},
		{in: "https://github.com/mchmarny/agape/pull/9/", want: IssueRef{"mchmarny", "agape", 9}},
		{in: "mchmarny/agape", wantErr: true},
		{in: "mchmarny/agape#0", wantErr: true},
		{in: "agape#12", wantErr: true},
		{in: "https://github.com/mchmarny/agape/wiki/7", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIssueRef(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIssueRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, fmt.Sprintf("%s/%s#%d", tt.want.Owner, tt.want.Repo, tt.want.Number), got.String())
		})
	}
}

func newTestGitHubClient(t *testing.T, mux *http.ServeMux) *github.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(srv.Client())
	u, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = u
	return client
}

func TestFromGitHubIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/issues/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":3,"title":"Be kind","body":"Please be gentle in reviews."}`)
	})
	mux.HandleFunc("GET /repos/o/r/issues/3/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"body":"agreed, honest feedback"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/o/r/issues/3/comments?page=2>; rel="next"`, r.Host))
		fmt.Fprint(w, `[{"body":"thanks"}]`)
	})
	client := newTestGitHubClient(t, mux)
	ctx := context.Background()
	ref := IssueRef{Owner: "o", Repo: "r", Number: 3}

	doc, err := FromGitHubIssue(ctx, client, ref, false)
	require.NoError(t, err)
	assert.Equal(t, "issue:o/r#3", doc.Source)
	assert.Equal(t, "Be kind", doc.Title)
	assert.Equal(t, "Be kind\n\nPlease be gentle in reviews.", doc.Text)

	doc, err = FromGitHubIssue(ctx, client, ref, true)
	require.NoError(t, err)
	assert.Equal(t, "Be kind\n\nPlease be gentle in reviews.\n\nthanks\n\nagreed, honest feedback", doc.Text)
}

func TestFromGitHubIssue_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/issues/4", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":4,"title":"","body":""}`)
	})
	client := newTestGitHubClient(t, mux)
	ctx := context.Background()

	_, err := FromGitHubIssue(ctx, client, IssueRef{Owner: "o", Repo: "r", Number: 4}, false)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = FromGitHubIssue(ctx, client, IssueRef{Owner: "o", Repo: "r", Number: 5}, false)
	assert.Error(t, err)

	_, err = FromGitHubIssue(ctx, nil, IssueRef{}, false)
	assert.Error(t, err)
}

func TestCheckRateLimit_NoWait(t *testing.T) {
	// should return immediately
	checkRateLimit(nil)
	checkRateLimit(&github.Response{Rate: github.Rate{Limit: 5000, Remaining: 4000}})
	checkRateLimit(&github.Response{Rate: github.Rate{Limit: 5000, Remaining: 1}})
}
