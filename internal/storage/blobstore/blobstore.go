package blobstore

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
)

// BlobStorage is the key-addressed image store. Put returns a URL that the
// publishing platform can fetch the image from. The two implementations are
// interchangeable; callers see backend failures only as a wrapped
// storage.ErrStorageUnavailable.
type BlobStorage interface {
	Put(ctx context.Context, key string, data []byte) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// DraftImageKey builds the storage key for slot idx of a draft.
func DraftImageKey(draftID uuid.UUID, idx int) string {
	return fmt.Sprintf("drafts/images/draft_%s_%d.jpg", draftID, idx)
}

// TempImageKey builds a throwaway key for images uploaded only so the remote
// platform can fetch them during a publish run.
func TempImageKey(runID string, idx int) string {
	return fmt.Sprintf("temp/post_%s_%d.jpg", runID, idx)
}

// KeyFilename returns the last path element of a storage key.
func KeyFilename(key string) string {
	return path.Base(key)
}
