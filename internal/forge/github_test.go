package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewgate/internal/model"
)

var target = model.Target{Owner: "owner", Repo: "repo", SHA: "abc123", Context: "review"}

func newTestForge(t *testing.T, mux *http.ServeMux) *gitHub {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	serverURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client := github.NewClient(nil)
	client.BaseURL = serverURL
	return &gitHub{client: client}
}

func TestCombinedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits/abc123/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"state": "pending",
			"statuses": []map[string]any{
				{"context": "ci/build", "state": "success", "description": "built"},
				{"context": "review", "state": "error", "description": "nope", "target_url": "https://example.com/a"},
			},
		})
	})

	f := newTestForge(t, mux)
	statuses, err := f.CombinedStatus(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, model.Status{
		Context:     "review",
		State:       model.StateError,
		Description: "nope",
		TargetURL:   "https://example.com/a",
	}, statuses[1])
	assert.Equal(t, model.StateSuccess, statuses[0].State)
	assert.Empty(t, statuses[0].TargetURL)
}

func TestCombinedStatusPaginates(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits/abc123/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		page := r.URL.Query().Get("page")
		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<%srepos/owner/repo/commits/abc123/status?page=2&per_page=100>; rel="next"`, serverURL))
			json.NewEncoder(w).Encode(map[string]any{
				"statuses": []map[string]any{{"context": "first", "state": "success"}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"statuses": []map[string]any{{"context": "review", "state": "pending"}},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL + "/"
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	client := github.NewClient(nil)
	client.BaseURL = u
	f := &gitHub{client: client}

	statuses, err := f.CombinedStatus(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "review", FindContext(statuses, "review").Context)
	assert.Equal(t, model.StatePending, FindContext(statuses, "review").State)
}

func TestCombinedStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits/abc123/status", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad credentials"}`, http.StatusUnauthorized)
	})

	f := newTestForge(t, mux)
	_, err := f.CombinedStatus(context.Background(), target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner/repo@abc123")
}

func TestCreateStatus(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/statuses/abc123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(captured)
	})

	f := newTestForge(t, mux)
	err := f.CreateStatus(context.Background(), target, model.StatusUpdate{
		State:       model.StateSuccess,
		Description: "looks good",
		TargetURL:   "https://preview.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "success", captured["state"])
	assert.Equal(t, "looks good", captured["description"])
	assert.Equal(t, "https://preview.example.com", captured["target_url"])
	assert.Equal(t, "review", captured["context"])
}

func TestCreateStatusOmitsEmptyTargetURL(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/statuses/abc123", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})

	f := newTestForge(t, mux)
	require.NoError(t, f.CreateStatus(context.Background(), target, model.StatusUpdate{State: model.StatePending}))
	_, ok := captured["target_url"]
	assert.False(t, ok)
}

func TestCreateStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/statuses/abc123", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Validation Failed"}`, http.StatusUnprocessableEntity)
	})

	f := newTestForge(t, mux)
	err := f.CreateStatus(context.Background(), target, model.StatusUpdate{State: model.StateError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"review"`)
}

func TestNewGitHubSendsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/owner/repo/commits/abc123/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"statuses":[]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f, err := GitHubOpener(GitHubOptions{BaseURL: server.URL + "/", Timeout: 5 * time.Second})("ghp_secret")
	require.NoError(t, err)
	assert.Equal(t, "github", f.Kind())

	statuses, err := f.CombinedStatus(context.Background(), target)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestFindContext(t *testing.T) {
	statuses := []model.Status{
		{Context: "ci", State: model.StateSuccess},
		{Context: "review", State: model.StateFailure, Description: "broken"},
	}
	assert.Equal(t, statuses[1], FindContext(statuses, "review"))
	assert.Equal(t, model.Status{Context: "deploy", State: model.StateNone}, FindContext(statuses, "deploy"))
	assert.Equal(t, model.StateNone, FindContext(nil, "review").State)
}

func TestTruncateDescription(t *testing.T) {
	short := "fine"
	assert.Equal(t, short, truncateDescription(short))

	exact := strings.Repeat("a", maxDescriptionRunes)
	assert.Equal(t, exact, truncateDescription(exact))

	long := strings.Repeat("é", maxDescriptionRunes+10)
	got := truncateDescription(long)
	assert.Len(t, []rune(got), maxDescriptionRunes)
	assert.True(t, strings.HasSuffix(got, "…"))
}
