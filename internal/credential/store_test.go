package credential

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"reviewgate/internal/config"
)

func init() { keyring.MockInit() }

func fixedPassword() (string, error) { return "correct horse battery staple", nil }

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	sys, err := NewSystem("reviewgate-test-" + t.Name())
	require.NoError(t, err)

	file, err := NewFile("reviewgate-test", filepath.Join(t.TempDir(), "keyring"), fixedPassword)
	require.NoError(t, err)

	return map[string]Store{"system": sys, "file": file}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, st.Backend())

			_, err := st.Get()
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Set("ghp_first"))
			got, err := st.Get()
			require.NoError(t, err)
			assert.Equal(t, "ghp_first", got)

			require.NoError(t, st.Set("ghp_second"))
			got, err = st.Get()
			require.NoError(t, err)
			assert.Equal(t, "ghp_second", got)

			require.NoError(t, st.Delete())
			_, err = st.Get()
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreDeleteMissing(t *testing.T) {
	for name, st := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, st.Delete())
			assert.NoError(t, st.Delete())
		})
	}
}

func TestFileStorePersistsAcrossOpens(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keyring")

	first, err := NewFile("reviewgate-test", dir, fixedPassword)
	require.NoError(t, err)
	require.NoError(t, first.Set("ghp_persisted"))

	second, err := NewFile("reviewgate-test", dir, fixedPassword)
	require.NoError(t, err)
	got, err := second.Get()
	require.NoError(t, err)
	assert.Equal(t, "ghp_persisted", got)
}

func TestEnvPassword(t *testing.T) {
	t.Setenv("REVIEWGATE_TEST_PW", "")
	_, err := EnvPassword("REVIEWGATE_TEST_PW")()
	assert.ErrorIs(t, err, ErrUnavailable)

	t.Setenv("REVIEWGATE_TEST_PW", "secret")
	pw, err := EnvPassword("REVIEWGATE_TEST_PW")()
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)
}

func TestOpen(t *testing.T) {
	base := config.Default()
	base.KeyringDir = filepath.Join(t.TempDir(), "keyring")

	tests := []struct {
		backend string
		want    string
	}{
		{config.StoreSystem, "system"},
		{config.StoreFile, "file"},
		{config.StoreAuto, "system"}, // the mocked system keyring always responds
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s := base
			s.CredentialStore = tt.backend
			st, err := Open(s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Backend())
		})
	}

	s := base
	s.CredentialStore = "vault"
	_, err := Open(s)
	assert.ErrorIs(t, err, ErrUnavailable)
}
