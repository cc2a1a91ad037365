package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"instagrid/internal/domain/models"
	"instagrid/internal/lib/logger/sl"
	"instagrid/internal/repository"
	"instagrid/internal/storage/blobstore"
	"instagrid/internal/transport/http/dto"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// DraftService owns the lifecycle of grid drafts: it is the only writer of
// draft records and of their images in the blob store.
type DraftService struct {
	log      *slog.Logger
	repo     repository.DraftRepository
	blobs    blobstore.BlobStorage
	urlCache *gocache.Cache
}

func NewDraftService(log *slog.Logger, repo repository.DraftRepository, blobs blobstore.BlobStorage, urlTTL time.Duration) *DraftService {
	return &DraftService{
		log:      log,
		repo:     repo,
		blobs:    blobs,
		// presigned links expire after urlTTL; refresh slightly earlier
		urlCache: gocache.New(urlTTL-time.Minute, 10*time.Minute),
	}
}

// CreateDraft decodes and stores the three images raw (editing is
// non-destructive, crop applies only at publish time) and persists the draft.
func (s *DraftService) CreateDraft(ctx context.Context, req dto.SaveDraftRequest) (*models.Draft, error) {
	const op = "draft_service.CreateDraft"

	log := s.log.With(slog.String("op", op))

	if len(req.Posts) != models.GridSize {
		return nil, models.ErrInvalidSlotCount
	}

	slots := make(models.GridSlots, 0, models.GridSize)
	draftID := uuid.New()

	for idx, post := range req.Posts {
		data, err := base64.StdEncoding.DecodeString(post.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("%s: slot %d: invalid image encoding: %w", op, idx, err)
		}

		key := blobstore.DraftImageKey(draftID, idx)
		if _, err := s.blobs.Put(ctx, key, data); err != nil {
			log.Error("failed to store image", slog.Int("slot", idx), sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slot := models.NewGridSlot(key, post.Caption)
		if idx < len(req.CropRatios) {
			slot.CropRatio = models.CropRatio(req.CropRatios[idx])
		}
		if idx < len(req.CropPositions) {
			slot.CropPosition = req.CropPositions[idx].Clamp()
		}
		slots = append(slots, slot)
	}

	draft, err := models.NewDraft(slots)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	draft.ID = draftID

	if err := s.repo.SaveDraft(ctx, draft); err != nil {
		log.Error("failed to save draft", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.resolveImageURLs(ctx, draft)

	log.Info("draft saved", slog.String("draft_id", draft.ID.String()))
	return draft, nil
}

// ListDrafts returns all drafts most-recent-first with display URLs resolved.
func (s *DraftService) ListDrafts(ctx context.Context) ([]models.Draft, error) {
	const op = "draft_service.ListDrafts"

	drafts, err := s.repo.ListDrafts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range drafts {
		s.resolveImageURLs(ctx, &drafts[i])
	}

	return drafts, nil
}

func (s *DraftService) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	const op = "draft_service.GetDraft"

	draft, err := s.repo.GetDraftByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.resolveImageURLs(ctx, draft)
	return draft, nil
}

// UpdateDraft applies a partial update. All present fields are validated
// before anything mutates, and the repository applies the whole change under
// a row lock, so an invalid update leaves the draft untouched.
func (s *DraftService) UpdateDraft(ctx context.Context, id uuid.UUID, req dto.UpdateDraftRequest) (*models.Draft, error) {
	const op = "draft_service.UpdateDraft"

	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", id.String()),
	)

	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	draft, err := s.repo.UpdateDraftSlots(ctx, id, func(d *models.Draft) error {
		if req.Captions != nil {
			for i, caption := range *req.Captions {
				d.Slots[i].AppendCaption(caption)
			}
		}
		if req.CropRatios != nil {
			for i, ratio := range *req.CropRatios {
				d.Slots[i].CropRatio = models.CropRatio(ratio)
			}
		}
		if req.CropPositions != nil {
			for i, pos := range *req.CropPositions {
				d.Slots[i].CropPosition = pos.Clamp()
			}
		}
		if req.PostOrder != nil {
			reordered, err := d.Slots.Reorder(*req.PostOrder)
			if err != nil {
				return err
			}
			d.Slots = reordered
		}
		return d.Slots.Validate()
	})
	if err != nil {
		log.Warn("draft update rejected", sl.Err(err))
		return nil, err
	}

	s.resolveImageURLs(ctx, draft)

	log.Info("draft updated")
	return draft, nil
}

// DeleteDraft removes the record and its images. Image deletion is
// best-effort: an unreachable blob backend must not keep the draft alive.
func (s *DraftService) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	const op = "draft_service.DeleteDraft"

	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", id.String()),
	)

	draft, err := s.repo.GetDraftByID(ctx, id)
	if err == nil {
		for _, slot := range draft.Slots {
			if err := s.blobs.Delete(ctx, slot.ImageKey); err != nil {
				log.Warn("could not delete image", slog.String("key", slot.ImageKey), sl.Err(err))
			}
		}
	}

	if err := s.repo.DeleteDraft(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("draft deleted")
	return nil
}

// GetImageBytes proxies raw image bytes from the blob backend that owns key.
func (s *DraftService) GetImageBytes(ctx context.Context, key string) ([]byte, error) {
	const op = "draft_service.GetImageBytes"

	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// validateUpdate checks every present field against the 3-slot shape before
// any mutation is attempted.
func validateUpdate(req dto.UpdateDraftRequest) error {
	if req.Captions != nil && len(*req.Captions) != models.GridSize {
		return models.ErrInvalidSlotCount
	}
	if req.CropRatios != nil {
		if len(*req.CropRatios) != models.GridSize {
			return models.ErrInvalidSlotCount
		}
		for _, ratio := range *req.CropRatios {
			if !models.CropRatio(ratio).Valid() {
				return fmt.Errorf("%w: %q", models.ErrInvalidCropRatio, ratio)
			}
		}
	}
	if req.CropPositions != nil && len(*req.CropPositions) != models.GridSize {
		return models.ErrInvalidSlotCount
	}
	if req.PostOrder != nil {
		if err := models.ValidatePermutation(*req.PostOrder); err != nil {
			return err
		}
	}
	return nil
}

// resolveImageURLs fills display URLs, caching presigned links until shortly
// before they expire. Failures only leave URLs empty; listing drafts must not
// depend on the blob backend being up.
func (s *DraftService) resolveImageURLs(ctx context.Context, draft *models.Draft) {
	for i := range draft.Slots {
		key := draft.Slots[i].ImageKey
		if cached, ok := s.urlCache.Get(key); ok {
			draft.Slots[i].ImageURL = cached.(string)
			continue
		}
		url, err := s.blobs.URL(ctx, key)
		if err != nil {
			s.log.Warn("could not resolve image url", slog.String("key", key), sl.Err(err))
			continue
		}
		draft.Slots[i].ImageURL = url
		s.urlCache.Set(key, url, gocache.DefaultExpiration)
	}
}
