package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

type systemStore struct {
	service string
}

// NewSystem returns a store backed by the operating-system keyring. It probes
// the keyring first and fails with ErrUnavailable when it does not respond
// (e.g. no dbus session).
func NewSystem(service string) (Store, error) {
	_, err := keyring.Get(service, TokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, errors.Join(ErrUnavailable, fmt.Errorf("system keyring: %w", err))
	}
	return &systemStore{service: service}, nil
}

func (s *systemStore) Backend() string { return "system" }

func (s *systemStore) Get() (string, error) {
	token, err := keyring.Get(s.service, TokenKey)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && token == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Join(ErrStore, fmt.Errorf("read system keyring: %w", err))
	}
	return token, nil
}

func (s *systemStore) Set(token string) error {
	if err := keyring.Set(s.service, TokenKey, token); err != nil {
		return errors.Join(ErrStore, fmt.Errorf("write system keyring: %w", err))
	}
	return nil
}

func (s *systemStore) Delete() error {
	err := keyring.Delete(s.service, TokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.Join(ErrStore, fmt.Errorf("delete from system keyring: %w", err))
	}
	return nil
}
