// Package credstore is the scoped credential store the CLIs source their
// bearer token from: the ISSUE_RELAY_TOKEN environment variable, or a
// token file written by `reporter signin`.
package credstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

const envToken = "ISSUE_RELAY_TOKEN"

// Store reads and writes the token file.
type Store struct {
	path string
}

// Default places the token under the user config directory.
func Default() *Store {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return &Store{path: filepath.Join(dir, "issue-relay", "token")}
}

// NewStore uses an explicit token file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Token returns the stored credential, the environment taking
// precedence. An empty result means the user is not signed in.
func (s *Store) Token(ctx context.Context) (string, error) {
	if token := os.Getenv(envToken); token != "" {
		return token, nil
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Save writes the credential to the token file.
func (s *Store) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token+"\n"), 0o600)
}
