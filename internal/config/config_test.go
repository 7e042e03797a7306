package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullQuery = "context=review%2Fstaging&owner=acme&repo=web&commit-sha=abc123" +
	"&subject-url=https%3A%2F%2Fpreview.example.com%2Fpr-7&review-message=Check+the+**header**"

func TestParseQuery(t *testing.T) {
	want := Review{
		Context:       "review/staging",
		Owner:         "acme",
		Repo:          "web",
		CommitSHA:     "abc123",
		SubjectURL:    "https://preview.example.com/pr-7",
		ReviewMessage: "Check the **header**",
	}

	tests := []struct {
		name string
		raw  string
	}{
		{"bare query", fullQuery},
		{"leading question mark", "?" + fullQuery},
		{"review url", "https://review.example.com/index.html?" + fullQuery},
		{"bare query with unencoded url", "context=review%2Fstaging&owner=acme&repo=web&commit-sha=abc123" +
			"&subject-url=https://preview.example.com/pr-7&review-message=Check+the+**header**"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestParseQueryKeepsValuesVerbatim(t *testing.T) {
	got, err := ParseQuery("context=%20CI%20Job%20&owner=Acme")
	require.NoError(t, err)
	assert.Equal(t, " CI Job ", got.Context)
	assert.Equal(t, "Acme", got.Owner)
}

func TestParseQueryUnencodedURLWithQuery(t *testing.T) {
	got, err := ParseQuery("context=ci&owner=acme&subject-url=https://preview.example.com/pr-7?lang=en")
	require.NoError(t, err)
	assert.Equal(t, "ci", got.Context)
	assert.Equal(t, "https://preview.example.com/pr-7?lang=en", got.SubjectURL)
}

func TestIsReviewURL(t *testing.T) {
	assert.True(t, isReviewURL("https://review.example.com/index.html?context=ci"))
	assert.True(t, isReviewURL("http://localhost:8080"))
	assert.False(t, isReviewURL("context=ci&subject-url=https://preview.example.com"))
	assert.False(t, isReviewURL("subject-url=https://preview.example.com/?a=b"))
	assert.False(t, isReviewURL("context=ci"))
}

func TestParseQueryEmpty(t *testing.T) {
	got, err := ParseQuery("")
	require.NoError(t, err)
	assert.Equal(t, Review{}, got)
}

func TestParseQueryMalformed(t *testing.T) {
	_, err := ParseQuery("context=%zz")
	assert.Error(t, err)
}

func TestValidateReportsFirstMissing(t *testing.T) {
	for _, missing := range Params {
		t.Run(missing, func(t *testing.T) {
			r, err := ParseQuery(fullQuery)
			require.NoError(t, err)
			*r.field(missing) = ""

			err = r.Validate()
			require.ErrorIs(t, err, ErrMissingParam)
			assert.Contains(t, err.Error(), "query param "+missing+" is missing")
		})
	}
}

func TestOverlay(t *testing.T) {
	base, err := ParseQuery(fullQuery)
	require.NoError(t, err)

	got := base.Overlay(Review{CommitSHA: "def456"})
	assert.Equal(t, "def456", got.CommitSHA)
	assert.Equal(t, base.Owner, got.Owner)
	assert.Equal(t, "abc123", base.CommitSHA, "overlay must not mutate the receiver")
}

func TestTarget(t *testing.T) {
	r, err := ParseQuery(fullQuery)
	require.NoError(t, err)

	target := r.Target()
	assert.Equal(t, "acme", target.Owner)
	assert.Equal(t, "web", target.Repo)
	assert.Equal(t, "abc123", target.SHA)
	assert.Equal(t, "review/staging", target.Context)
}

func TestReviewFromEnvironment(t *testing.T) {
	t.Setenv("REVIEWGATE_COMMIT_SHA", "fromenv")
	t.Setenv("REVIEWGATE_REVIEW_MESSAGE", "env message")

	v := NewViper()
	r := ReviewFrom(v)
	assert.Equal(t, "fromenv", r.CommitSHA)
	assert.Equal(t, "env message", r.ReviewMessage)
	assert.Empty(t, r.Owner)
}

func TestSettingsDefaults(t *testing.T) {
	s, err := SettingsFrom(NewViper())
	require.NoError(t, err)
	assert.Equal(t, Default().APIURL, s.APIURL)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, StoreAuto, s.CredentialStore)
	assert.Equal(t, "reviewgate", s.KeyringService)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"unknown store", func(s *Settings) { s.CredentialStore = "vault" }},
		{"zero timeout", func(s *Settings) { s.Timeout = 0 }},
		{"empty service", func(s *Settings) { s.KeyringService = "" }},
		{"empty api url", func(s *Settings) { s.APIURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSetting)
		})
	}
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviewgate.yaml")
	content := "owner: fromfile\ncredential-store: file\ntimeout: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := NewViper()
	require.NoError(t, ReadConfigFile(v, path))

	assert.Equal(t, "fromfile", ReviewFrom(v).Owner)
	s, err := SettingsFrom(v)
	require.NoError(t, err)
	assert.Equal(t, StoreFile, s.CredentialStore)
	assert.Equal(t, 5*time.Second, s.Timeout)
}

func TestReadConfigFileMissingExplicitPath(t *testing.T) {
	v := NewViper()
	err := ReadConfigFile(v, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
