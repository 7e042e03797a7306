package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/99designs/keyring"
)

const keyringDirPerm = 0o700

type fileStore struct {
	ring keyring.Keyring
	dir  string
}

// NewFile returns a store backed by an encrypted file keyring in dir.
// password is asked for lazily, on the first read or write.
func NewFile(service, dir string, password func() (string, error)) (Store, error) {
	if err := os.MkdirAll(dir, keyringDirPerm); err != nil {
		return nil, errors.Join(ErrUnavailable, fmt.Errorf("create keyring dir: %w", err))
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:     service,
		AllowedBackends: []keyring.BackendType{keyring.FileBackend},
		FileDir:         dir,
		FilePasswordFunc: func(string) (string, error) {
			return password()
		},
	})
	if err != nil {
		return nil, errors.Join(ErrUnavailable, fmt.Errorf("open file keyring: %w", err))
	}
	return &fileStore{ring: ring, dir: dir}, nil
}

func (s *fileStore) Backend() string { return "file" }

func (s *fileStore) Get() (string, error) {
	item, err := s.ring.Get(TokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) || (err == nil && len(item.Data) == 0) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Join(ErrStore, fmt.Errorf("read file keyring %s: %w", s.dir, err))
	}
	return string(item.Data), nil
}

func (s *fileStore) Set(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:         TokenKey,
		Data:        []byte(token),
		Label:       "GitHub access token",
		Description: "token used to post commit statuses",
	})
	if err != nil {
		return errors.Join(ErrStore, fmt.Errorf("write file keyring %s: %w", s.dir, err))
	}
	return nil
}

func (s *fileStore) Delete() error {
	err := s.ring.Remove(TokenKey)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return errors.Join(ErrStore, fmt.Errorf("delete from file keyring %s: %w", s.dir, err))
}
