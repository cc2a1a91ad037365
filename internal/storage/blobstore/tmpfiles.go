package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"instagrid/internal/storage"
)

const defaultTmpfilesEndpoint = "https://tmpfiles.org/api/v1/upload"

// TmpfilesStorage is the ephemeral fallback backend: anonymous uploads to
// tmpfiles.org, usable without any cloud credentials. Files expire after an
// hour, which is enough for the platform to fetch them during a publish run.
// Keys are not retrievable afterwards, so Get and Delete are unsupported.
type TmpfilesStorage struct {
	endpoint string
	client   *http.Client
}

func NewTmpfilesStorage() *TmpfilesStorage {
	return &TmpfilesStorage{
		endpoint: defaultTmpfilesEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewTmpfilesStorageWithEndpoint is used by tests to point at a fake server.
func NewTmpfilesStorageWithEndpoint(endpoint string, client *http.Client) *TmpfilesStorage {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TmpfilesStorage{endpoint: endpoint, client: client}
}

func (s *TmpfilesStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	const op = "blobstore.TmpfilesStorage.Put"

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", KeyFilename(key))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %w: status %d", op, storage.ErrStorageUnavailable, resp.StatusCode)
	}

	var payload struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}
	if payload.Data.URL == "" {
		return "", fmt.Errorf("%s: %w: empty url in response", op, storage.ErrStorageUnavailable)
	}

	return directLink(payload.Data.URL), nil
}

func (s *TmpfilesStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("blobstore.TmpfilesStorage.Get: %w: backend does not support retrieval", storage.ErrStorageUnavailable)
}

func (s *TmpfilesStorage) Delete(ctx context.Context, key string) error {
	// Uploads expire on their own.
	return nil
}

func (s *TmpfilesStorage) URL(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("blobstore.TmpfilesStorage.URL: %w: backend does not support lookup", storage.ErrStorageUnavailable)
}

// directLink rewrites the landing-page URL to the direct download form and
// upgrades it to https, which the publishing platform requires.
func directLink(raw string) string {
	u := strings.Replace(raw, "tmpfiles.org/", "tmpfiles.org/dl/", 1)
	if strings.HasPrefix(u, "http://") {
		u = strings.Replace(u, "http://", "https://", 1)
	}
	return u
}
