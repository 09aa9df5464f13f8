package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes files under Dir and serves them at PublicPrefix.
type LocalStore struct {
	Dir          string
	PublicPrefix string
}

func NewLocalStore(dir, publicPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, PublicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

func (l *LocalStore) Save(_ context.Context, name, _ string, body []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(l.Dir, filepath.Base(name)), body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return l.PublicPrefix + "/" + name, nil
}

// Delete removes the file behind url. URLs outside PublicPrefix and files
// already gone are ignored.
func (l *LocalStore) Delete(_ context.Context, url string) error {
	name, ok := l.nameFor(url)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(l.Dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

func (l *LocalStore) nameFor(url string) (string, bool) {
	if !strings.HasPrefix(url, l.PublicPrefix+"/") {
		return "", false
	}
	name := path.Base(strings.TrimPrefix(url, l.PublicPrefix+"/"))
	if name == "." || name == "/" || name == ".." {
		return "", false
	}
	return name, true
}
