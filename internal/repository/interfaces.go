package repository

import (
	"context"
	"time"

	"instagrid/internal/domain/models"

	"github.com/google/uuid"
)

type DraftRepository interface {
	SaveDraft(ctx context.Context, draft *models.Draft) error
	GetDraftByID(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	ListDrafts(ctx context.Context) ([]models.Draft, error)
	// UpdateDraftSlots applies mutate to the draft inside a transaction that
	// row-locks the draft, serializing concurrent edits to the same id.
	UpdateDraftSlots(ctx context.Context, id uuid.UUID, mutate func(*models.Draft) error) (*models.Draft, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	MarkPosted(ctx context.Context, id uuid.UUID, remoteIDs models.RemoteMediaIDs, postedAt time.Time) error
	AppendAttempt(ctx context.Context, attempt *models.PublishAttempt) error
	ListAttempts(ctx context.Context, draftID uuid.UUID) ([]models.PublishAttempt, error)
}

type CredentialRepository interface {
	SaveCredentials(ctx context.Context, creds models.Credentials, tokenType string) error
	GetCredentials(ctx context.Context) (models.Credentials, error)
}
