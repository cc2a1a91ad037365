package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"instagrid/internal/storage"
)

// LocalStorage keeps draft images on the local filesystem. It is the dev
// backend: URLs point at the service's own image endpoint, so the publishing
// platform can only fetch them when the service is publicly reachable.
type LocalStorage struct {
	baseDir string
	baseURL string
}

func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("blobstore.NewLocalStorage: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, baseURL: baseURL}, nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	const op = "blobstore.LocalStorage.Put"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.baseDir, KeyFilename(key))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}

	return s.URL(ctx, key)
}

func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "blobstore.LocalStorage.Get"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.baseDir, KeyFilename(key)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}
	return data, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path := filepath.Join(s.baseDir, KeyFilename(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore.LocalStorage.Delete: %w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *LocalStorage) URL(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("%s/%s", s.baseURL, KeyFilename(key)), nil
}
