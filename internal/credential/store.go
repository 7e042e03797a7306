// Package credential persists the GitHub access token between sessions.
//
// Two backends exist: the operating-system keyring (via zalando/go-keyring)
// and an encrypted file keyring (via 99designs/keyring) for machines without
// a keyring daemon, e.g. containers and SSH sessions without dbus.
package credential

import (
	"errors"
	"fmt"
	"os"

	"reviewgate/internal/config"
)

// TokenKey is the account name the access token is stored under.
const TokenKey = "github-token"

var (
	// ErrNotFound is returned by Get when no token is stored.
	ErrNotFound = errors.New("no stored token")
	// ErrUnavailable is returned when a backend cannot be used on this machine.
	ErrUnavailable = errors.New("credential store unavailable")
	// ErrStore wraps every other backend failure.
	ErrStore = errors.New("credential store")
)

// Store is a durable single-value key store for the access token.
type Store interface {
	// Get returns the stored token or ErrNotFound.
	Get() (string, error)
	Set(token string) error
	// Delete removes the token. Deleting a missing token succeeds.
	Delete() error
	Backend() string
}

// Open returns the store selected by settings. With config.StoreAuto the
// system keyring is used when it responds, otherwise the file keyring.
func Open(s config.Settings) (Store, error) {
	switch s.CredentialStore {
	case config.StoreSystem:
		return NewSystem(s.KeyringService)
	case config.StoreFile:
		return openFile(s)
	case config.StoreAuto, "":
		if st, err := NewSystem(s.KeyringService); err == nil {
			return st, nil
		}
		return openFile(s)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrUnavailable, s.CredentialStore)
	}
}

func openFile(s config.Settings) (Store, error) {
	dir := s.KeyringDir
	if dir == "" {
		d, err := config.DefaultKeyringDir()
		if err != nil {
			return nil, errors.Join(ErrUnavailable, err)
		}
		dir = d
	}
	return NewFile(s.KeyringService, dir, EnvPassword(s.KeyringPasswordEnv))
}

// EnvPassword returns a password source reading the named environment
// variable.
func EnvPassword(name string) func() (string, error) {
	return func() (string, error) {
		if pw := os.Getenv(name); pw != "" {
			return pw, nil
		}
		return "", fmt.Errorf("%w: set %s to unlock the file keyring", ErrUnavailable, name)
	}
}
