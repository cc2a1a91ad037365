package services_test

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"testing"
	"time"

	"instagrid/internal/domain/models"
	services "instagrid/internal/services/draft_service"
	"instagrid/internal/storage"
	"instagrid/internal/transport/http/dto"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDraftRepository struct {
	mock.Mock
}

func (m *MockDraftRepository) SaveDraft(ctx context.Context, draft *models.Draft) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *MockDraftRepository) GetDraftByID(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Draft), args.Error(1)
}

func (m *MockDraftRepository) ListDrafts(ctx context.Context) ([]models.Draft, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Draft), args.Error(1)
}

func (m *MockDraftRepository) UpdateDraftSlots(ctx context.Context, id uuid.UUID, mutate func(*models.Draft) error) (*models.Draft, error) {
	args := m.Called(ctx, id, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Draft), args.Error(1)
}

func (m *MockDraftRepository) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDraftRepository) MarkPosted(ctx context.Context, id uuid.UUID, remoteIDs models.RemoteMediaIDs, postedAt time.Time) error {
	args := m.Called(ctx, id, remoteIDs, postedAt)
	return args.Error(0)
}

func (m *MockDraftRepository) AppendAttempt(ctx context.Context, attempt *models.PublishAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockDraftRepository) ListAttempts(ctx context.Context, draftID uuid.UUID) ([]models.PublishAttempt, error) {
	args := m.Called(ctx, draftID)
	return args.Get(0).([]models.PublishAttempt), args.Error(1)
}

type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStorage) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBlobStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStorage) URL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func newService(repo *MockDraftRepository, blobs *MockBlobStorage) *services.DraftService {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	return services.NewDraftService(log, repo, blobs, time.Hour)
}

func saveRequest() dto.SaveDraftRequest {
	img := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	return dto.SaveDraftRequest{
		Posts: []dto.PostItem{
			{ImageBase64: img, Caption: "left"},
			{ImageBase64: img, Caption: "middle"},
			{ImageBase64: img, Caption: "right"},
		},
	}
}

func storedDraft(t *testing.T) *models.Draft {
	t.Helper()
	draft, err := models.NewDraft(models.GridSlots{
		models.NewGridSlot("drafts/images/a.jpg", "left"),
		models.NewGridSlot("drafts/images/b.jpg", "middle"),
		models.NewGridSlot("drafts/images/c.jpg", "right"),
	})
	require.NoError(t, err)
	return draft
}

func TestDraftService_CreateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("stores three images and the draft", func(t *testing.T) {
		repo := new(MockDraftRepository)
		blobs := new(MockBlobStorage)
		svc := newService(repo, blobs)

		blobs.On("Put", ctx, mock.Anything, []byte("jpeg-bytes")).Return("https://blob/img", nil).Times(3)
		repo.On("SaveDraft", ctx, mock.MatchedBy(func(d *models.Draft) bool {
			return len(d.Slots) == models.GridSize && d.Status == models.DraftStatusDraft
		})).Return(nil).Once()
		blobs.On("URL", ctx, mock.Anything).Return("https://blob/img", nil)

		draft, err := svc.CreateDraft(ctx, saveRequest())
		require.NoError(t, err)

		assert.Equal(t, "left", draft.Slots[0].Caption())
		assert.Equal(t, "right", draft.Slots[2].Caption())
		assert.Equal(t, models.CropRatioOriginal, draft.Slots[0].CropRatio)

		repo.AssertExpectations(t)
		blobs.AssertExpectations(t)
	})

	t.Run("rejects wrong slot count", func(t *testing.T) {
		svc := newService(new(MockDraftRepository), new(MockBlobStorage))

		req := saveRequest()
		req.Posts = req.Posts[:2]

		_, err := svc.CreateDraft(ctx, req)
		assert.ErrorIs(t, err, models.ErrInvalidSlotCount)
	})

	t.Run("rejects bad base64", func(t *testing.T) {
		svc := newService(new(MockDraftRepository), new(MockBlobStorage))

		req := saveRequest()
		req.Posts[1].ImageBase64 = "not-base64!!!"

		_, err := svc.CreateDraft(ctx, req)
		assert.Error(t, err)
	})

	t.Run("initial crop settings are applied", func(t *testing.T) {
		repo := new(MockDraftRepository)
		blobs := new(MockBlobStorage)
		svc := newService(repo, blobs)

		blobs.On("Put", ctx, mock.Anything, mock.Anything).Return("https://blob/img", nil).Times(3)
		repo.On("SaveDraft", ctx, mock.Anything).Return(nil).Once()
		blobs.On("URL", ctx, mock.Anything).Return("https://blob/img", nil)

		req := saveRequest()
		req.CropRatios = []string{"1:1", "4:5", "original"}
		req.CropPositions = []models.CropPosition{{X: 0, Y: 0}, {X: 150, Y: -3}, {X: 50, Y: 50}}

		draft, err := svc.CreateDraft(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, models.CropRatioSquare, draft.Slots[0].CropRatio)
		assert.Equal(t, models.CropPosition{X: 100, Y: 0}, draft.Slots[1].CropPosition)
	})
}

func TestDraftService_UpdateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("captions append to history", func(t *testing.T) {
		repo := new(MockDraftRepository)
		blobs := new(MockBlobStorage)
		svc := newService(repo, blobs)

		draft := storedDraft(t)
		repo.On("UpdateDraftSlots", ctx, draft.ID, mock.Anything).
			Run(func(args mock.Arguments) {
				mutate := args.Get(2).(func(*models.Draft) error)
				require.NoError(t, mutate(draft))
			}).
			Return(draft, nil).Once()
		blobs.On("URL", ctx, mock.Anything).Return("https://blob/img", nil)

		captions := []string{"left v2", "middle v2", "right v2"}
		updated, err := svc.UpdateDraft(ctx, draft.ID, dto.UpdateDraftRequest{Captions: &captions})
		require.NoError(t, err)

		assert.Equal(t, []string{"left", "left v2"}, updated.Slots[0].CaptionHistory)
		assert.Equal(t, "right v2", updated.Slots[2].Caption())
	})

	t.Run("reorder moves slots with their history", func(t *testing.T) {
		repo := new(MockDraftRepository)
		blobs := new(MockBlobStorage)
		svc := newService(repo, blobs)

		draft := storedDraft(t)
		repo.On("UpdateDraftSlots", ctx, draft.ID, mock.Anything).
			Run(func(args mock.Arguments) {
				mutate := args.Get(2).(func(*models.Draft) error)
				require.NoError(t, mutate(draft))
			}).
			Return(draft, nil).Once()
		blobs.On("URL", ctx, mock.Anything).Return("https://blob/img", nil)

		order := []int{2, 0, 1}
		updated, err := svc.UpdateDraft(ctx, draft.ID, dto.UpdateDraftRequest{PostOrder: &order})
		require.NoError(t, err)

		assert.Equal(t, "right", updated.Slots[0].Caption())
		assert.Equal(t, "left", updated.Slots[1].Caption())
	})

	t.Run("invalid permutation never reaches the repository", func(t *testing.T) {
		repo := new(MockDraftRepository)
		svc := newService(repo, new(MockBlobStorage))

		order := []int{0, 0, 2}
		_, err := svc.UpdateDraft(ctx, uuid.New(), dto.UpdateDraftRequest{PostOrder: &order})
		assert.ErrorIs(t, err, models.ErrInvalidPermutation)

		repo.AssertNotCalled(t, "UpdateDraftSlots", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid crop ratio never reaches the repository", func(t *testing.T) {
		repo := new(MockDraftRepository)
		svc := newService(repo, new(MockBlobStorage))

		ratios := []string{"1:1", "3:2", "original"}
		_, err := svc.UpdateDraft(ctx, uuid.New(), dto.UpdateDraftRequest{CropRatios: &ratios})
		assert.ErrorIs(t, err, models.ErrInvalidCropRatio)

		repo.AssertNotCalled(t, "UpdateDraftSlots", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("not found passes through", func(t *testing.T) {
		repo := new(MockDraftRepository)
		svc := newService(repo, new(MockBlobStorage))

		id := uuid.New()
		captions := []string{"a", "b", "c"}
		repo.On("UpdateDraftSlots", ctx, id, mock.Anything).Return(nil, storage.ErrDraftNotFound).Once()

		_, err := svc.UpdateDraft(ctx, id, dto.UpdateDraftRequest{Captions: &captions})
		assert.ErrorIs(t, err, storage.ErrDraftNotFound)
	})
}

func TestDraftService_DeleteDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("removes record even when blobs fail", func(t *testing.T) {
		repo := new(MockDraftRepository)
		blobs := new(MockBlobStorage)
		svc := newService(repo, blobs)

		draft := storedDraft(t)
		repo.On("GetDraftByID", ctx, draft.ID).Return(draft, nil).Once()
		blobs.On("Delete", ctx, mock.Anything).Return(storage.ErrStorageUnavailable).Times(3)
		repo.On("DeleteDraft", ctx, draft.ID).Return(nil).Once()

		require.NoError(t, svc.DeleteDraft(ctx, draft.ID))
		repo.AssertExpectations(t)
	})

	t.Run("absent draft still deletes idempotently", func(t *testing.T) {
		repo := new(MockDraftRepository)
		svc := newService(repo, new(MockBlobStorage))

		id := uuid.New()
		repo.On("GetDraftByID", ctx, id).Return(nil, storage.ErrDraftNotFound).Once()
		repo.On("DeleteDraft", ctx, id).Return(nil).Once()

		require.NoError(t, svc.DeleteDraft(ctx, id))
	})
}

func TestDraftService_ListDrafts(t *testing.T) {
	ctx := context.Background()
	repo := new(MockDraftRepository)
	blobs := new(MockBlobStorage)
	svc := newService(repo, blobs)

	draft := storedDraft(t)
	repo.On("ListDrafts", ctx).Return([]models.Draft{*draft}, nil).Once()
	blobs.On("URL", ctx, mock.Anything).Return("https://blob/signed", nil)

	drafts, err := svc.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "https://blob/signed", drafts[0].Slots[0].ImageURL)
}
