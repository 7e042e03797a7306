package forge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"

	"reviewgate/internal/model"
)

const (
	defaultBaseURL = "https://api.github.com/"

	// GitHub rejects status descriptions longer than this.
	maxDescriptionRunes = 140
	statusesPerPage     = 100
)

// GitHubOptions configure NewGitHub.
type GitHubOptions struct {
	// BaseURL is the REST API root. Anything other than api.github.com is
	// treated as a GitHub Enterprise server.
	BaseURL string
	Timeout time.Duration
}

type gitHub struct {
	client *github.Client
}

// NewGitHub returns a GitHub forge authenticated with token.
func NewGitHub(token string, opts GitHubOptions) (Forge, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport},
		Timeout:   opts.Timeout,
	}

	client := github.NewClient(hc)
	base := opts.BaseURL
	if base != "" && strings.TrimRight(base, "/") != strings.TrimRight(defaultBaseURL, "/") {
		var err error
		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("github enterprise url %q: %w", base, err)
		}
	}
	return &gitHub{client: client}, nil
}

// GitHubOpener returns an Opener creating GitHub forges with opts.
func GitHubOpener(opts GitHubOptions) Opener {
	return func(token string) (Forge, error) {
		return NewGitHub(token, opts)
	}
}

func (g *gitHub) Kind() string { return "github" }

func (g *gitHub) CombinedStatus(ctx context.Context, t model.Target) ([]model.Status, error) {
	var statuses []model.Status
	opts := &github.ListOptions{PerPage: statusesPerPage}
	for {
		combined, resp, err := g.client.Repositories.GetCombinedStatus(ctx, t.Owner, t.Repo, t.SHA, opts)
		if err != nil {
			return nil, fmt.Errorf("get combined status for %s/%s@%s: %w", t.Owner, t.Repo, t.SHA, err)
		}
		for _, s := range combined.Statuses {
			statuses = append(statuses, model.Status{
				Context:     s.GetContext(),
				State:       model.ParseState(s.GetState()),
				Description: s.GetDescription(),
				TargetURL:   s.GetTargetURL(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return statuses, nil
}

func (g *gitHub) CreateStatus(ctx context.Context, t model.Target, u model.StatusUpdate) error {
	status := &github.RepoStatus{
		State:       github.String(string(u.State)),
		Description: github.String(truncateDescription(u.Description)),
		Context:     github.String(t.Context),
	}
	if u.TargetURL != "" {
		status.TargetURL = github.String(u.TargetURL)
	}

	if _, _, err := g.client.Repositories.CreateStatus(ctx, t.Owner, t.Repo, t.SHA, status); err != nil {
		return fmt.Errorf("create %s status %q for %s/%s@%s: %w", u.State, t.Context, t.Owner, t.Repo, t.SHA, err)
	}
	return nil
}

// truncateDescription clips s to GitHub's description limit.
func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= maxDescriptionRunes {
		return s
	}
	return string(r[:maxDescriptionRunes-1]) + "…"
}
