package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"instagrid/internal/storage"
)

// MinioStorage is the durable backend: an S3-compatible bucket with presigned
// GET links so the publishing platform can fetch images without the bucket
// being public.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, urlExpiry time.Duration) (*MinioStorage, error) {
	const op = "blobstore.NewMinioStorage"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &MinioStorage{
		client:    client,
		bucket:    bucket,
		urlExpiry: urlExpiry,
	}, nil
}

func (s *MinioStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	const op = "blobstore.MinioStorage.Put"

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
			UserMetadata: map[string]string{
				"uploaded-at": time.Now().UTC().Format(time.RFC3339),
			},
		})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}

	return s.URL(ctx, key)
}

func (s *MinioStorage) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "blobstore.MinioStorage.Get"

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}

	return data, nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	const op = "blobstore.MinioStorage.Delete"

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *MinioStorage) URL(ctx context.Context, key string) (string, error) {
	const op = "blobstore.MinioStorage.URL"

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, storage.ErrStorageUnavailable, err)
	}
	return presigned.String(), nil
}
