package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps uploads in a directory served under URLPrefix.
type LocalStore struct {
	basePath  string
	urlPrefix string
}

func NewLocalStore(basePath, urlPrefix string) (*LocalStore, error) {
	if basePath == "" {
		basePath = "./data/uploads"
	}
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{basePath: basePath, urlPrefix: urlPrefix}, nil
}

func (s *LocalStore) Dir() string { return s.basePath }

func (s *LocalStore) Upload(_ context.Context, name, contentType string, body io.Reader) (Object, error) {
	if err := CheckImage(contentType); err != nil {
		return Object{}, err
	}
	path := filepath.Join(s.basePath, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return Object{}, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, body)
	if err != nil {
		return Object{}, fmt.Errorf("write file: %w", err)
	}
	return Object{Name: name, PublicURL: s.PublicURL(name), Size: n}, nil
}

func (s *LocalStore) PublicURL(name string) string {
	return joinURL(s.urlPrefix, filepath.Base(name))
}
