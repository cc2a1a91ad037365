package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"instagrid/internal/domain/models"
	"instagrid/internal/imaging"
	"instagrid/internal/instagram"
	"instagrid/internal/lib/logger/sl"
	"instagrid/internal/metrics"
	"instagrid/internal/repository"
	"instagrid/internal/storage"
	"instagrid/internal/storage/blobstore"

	"github.com/google/uuid"
)

var (
	// ErrPublishTimeout: the container never left IN_PROGRESS within the poll
	// ceiling. Not retried within the attempt.
	ErrPublishTimeout = errors.New("container processing timed out")
	// ErrMissingCredentials: no token/user id in the request, the store or
	// the config.
	ErrMissingCredentials = errors.New("missing instagram credentials")
)

const (
	publishRetries      = 3
	publishRetryBackoff = 500 * time.Millisecond
)

// GraphAPI is the slice of the platform client the orchestrator needs.
type GraphAPI interface {
	CreateContainer(ctx context.Context, userID, token, imageURL, caption string) (string, error)
	ContainerStatus(ctx context.Context, containerID, token string) (string, error)
	PublishContainer(ctx context.Context, userID, token, containerID string) (string, error)
	VerifyPost(ctx context.Context, mediaID, token string) error
}

// PublishService drives the create-container / poll / publish protocol for a
// whole grid. A grid renders left-to-right on a most-recent-first feed, so
// submission happens in reverse visual order; see SubmissionOrder.
//
// The run is strictly sequential and all-or-nothing: the first failure stops
// the sequence, nothing is marked posted, and the attempt log names the
// failing position. Already-created containers are left as-is.
type PublishService struct {
	log      *slog.Logger
	repo     repository.DraftRepository
	drafts   blobstore.BlobStorage
	uploader blobstore.BlobStorage
	api      GraphAPI

	pollInterval time.Duration
	pollTimeout  time.Duration

	// injected clock so tests drive container-state transitions without
	// real delays
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewPublishService(log *slog.Logger, repo repository.DraftRepository, drafts, uploader blobstore.BlobStorage, api GraphAPI, pollInterval, pollTimeout time.Duration) *PublishService {
	return &PublishService{
		log:          log,
		repo:         repo,
		drafts:       drafts,
		uploader:     uploader,
		api:          api,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SubmissionOrder maps the desired visual order onto the order images must be
// submitted in. The feed shows the most recently published item first, so the
// rightmost image goes out first: for 3 slots the result is [2, 1, 0].
func SubmissionOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = n - 1 - i
	}
	return order
}

// PublishDraft publishes a saved draft. A draft that is already posted is
// refused with storage.ErrAlreadyPosted before any remote call unless force
// is set; a forced run appends a fresh attempt record next to the old ones.
func (s *PublishService) PublishDraft(ctx context.Context, draftID uuid.UUID, creds models.Credentials, force bool) (*models.PublishAttempt, error) {
	const op = "publish_service.PublishDraft"

	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", draftID.String()),
	)

	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}

	draft, err := s.repo.GetDraftByID(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if draft.Posted() && !force {
		log.Warn("refusing to re-publish posted draft")
		metrics.PublishAttemptsTotal.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyPosted)
	}

	posts := make([]models.PublishPost, 0, models.GridSize)
	for _, slot := range draft.Slots {
		posts = append(posts, models.PublishPost{
			ImageKey:  slot.ImageKey,
			Caption:   slot.Caption(),
			CropRatio: slot.CropRatio,
			CropPos:   slot.CropPosition,
		})
	}

	attempt := models.NewPublishAttempt(draft.ID, force)
	runErr := s.run(ctx, attempt, posts, creds)
	attempt.FinishedAt = s.now().UTC()
	attempt.Success = runErr == nil

	if err := s.repo.AppendAttempt(ctx, attempt); err != nil {
		log.Error("failed to persist publish attempt", sl.Err(err))
	}

	if runErr != nil {
		metrics.PublishAttemptsTotal.WithLabelValues("failure").Inc()
		return attempt, runErr
	}

	ids, ok := attempt.RemoteMediaIDsInVisualOrder()
	if !ok {
		return attempt, fmt.Errorf("%s: attempt finished without all outcomes", op)
	}
	if err := s.repo.MarkPosted(ctx, draft.ID, ids, attempt.FinishedAt); err != nil {
		return attempt, fmt.Errorf("%s: %w", op, err)
	}

	metrics.PublishAttemptsTotal.WithLabelValues("success").Inc()
	log.Info("draft published", slog.Any("remote_media_ids", ids))
	return attempt, nil
}

// PublishGrid publishes three ad-hoc posts that were never saved as a draft.
// The bytes must already be attached to each post.
func (s *PublishService) PublishGrid(ctx context.Context, posts []models.PublishPost, creds models.Credentials) (*models.PublishAttempt, error) {
	const op = "publish_service.PublishGrid"

	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	if len(posts) != models.GridSize {
		return nil, models.ErrInvalidSlotCount
	}

	attempt := models.NewPublishAttempt(uuid.Nil, false)
	runErr := s.run(ctx, attempt, posts, creds)
	attempt.FinishedAt = s.now().UTC()
	attempt.Success = runErr == nil

	if runErr != nil {
		metrics.PublishAttemptsTotal.WithLabelValues("failure").Inc()
		return attempt, runErr
	}

	metrics.PublishAttemptsTotal.WithLabelValues("success").Inc()
	return attempt, nil
}

func (s *PublishService) run(ctx context.Context, attempt *models.PublishAttempt, posts []models.PublishPost, creds models.Credentials) error {
	if len(posts) != models.GridSize {
		return models.ErrInvalidSlotCount
	}

	runID := fmt.Sprintf("%d", s.now().Unix())
	order := SubmissionOrder(len(posts))

	for seq, visual := range order {
		if err := s.publishOne(ctx, attempt, posts[visual], creds, runID, seq, visual); err != nil {
			attempt.Logf("position %d failed: %v", visual, err)
			s.markRemainingSkipped(attempt, order[seq+1:])
			return err
		}
	}

	attempt.Logf("all %d images published", len(posts))
	return nil
}

func (s *PublishService) publishOne(ctx context.Context, attempt *models.PublishAttempt, post models.PublishPost, creds models.Credentials, runID string, seq, visual int) error {
	const op = "publish_service.publishOne"

	log := s.log.With(
		slog.String("op", op),
		slog.Int("position", visual),
	)

	outcome := models.SlotOutcome{
		Position: visual,
		ImageKey: post.ImageKey,
		Status:   models.PublishStatusFailed,
	}
	fail := func(err error) error {
		outcome.Error = err.Error()
		attempt.Outcomes = append(attempt.Outcomes, outcome)
		return err
	}

	data := post.ImageBytes
	if data == nil {
		var err error
		data, err = s.drafts.Get(ctx, post.ImageKey)
		if err != nil {
			return fail(err)
		}
	}

	prepared, err := imaging.Prepare(data, post.CropRatio, post.CropPos)
	if err != nil {
		return fail(err)
	}

	imageURL, err := s.uploader.Put(ctx, blobstore.TempImageKey(runID, seq), prepared)
	if err != nil {
		return fail(err)
	}
	outcome.Status = models.PublishStatusUploaded
	attempt.Logf("position %d uploaded (%d bytes)", visual, len(prepared))

	containerID, err := s.api.CreateContainer(ctx, creds.UserID, creds.AccessToken, imageURL, post.Caption)
	if err != nil {
		return fail(err)
	}
	outcome.ContainerID = containerID
	attempt.Logf("position %d container created: %s", visual, containerID)

	if err := s.awaitContainer(ctx, containerID, creds.AccessToken); err != nil {
		return fail(err)
	}

	mediaID, err := s.publishWithRetry(ctx, creds, containerID)
	if err != nil {
		return fail(err)
	}

	if err := s.api.VerifyPost(ctx, mediaID, creds.AccessToken); err != nil {
		// Post went out; verification is a sanity check only.
		log.Warn("post verification failed", sl.Err(err))
		attempt.Logf("position %d published but verification failed", visual)
	}

	outcome.RemoteMediaID = mediaID
	outcome.Status = models.PublishStatusPublished
	attempt.Outcomes = append(attempt.Outcomes, outcome)
	attempt.Logf("position %d published: %s", visual, mediaID)
	log.Info("image published", slog.String("remote_media_id", mediaID))

	return nil
}

// awaitContainer polls until the container reaches a terminal state or the
// poll ceiling passes. Transient status-call failures count against the
// ceiling instead of aborting.
func (s *PublishService) awaitContainer(ctx context.Context, containerID, token string) error {
	deadline := s.now().Add(s.pollTimeout)

	for {
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return err
		}

		metrics.ContainerPollsTotal.Inc()
		status, err := s.api.ContainerStatus(ctx, containerID, token)
		switch {
		case err != nil && errors.Is(err, instagram.ErrUnavailable):
			s.log.Warn("container status poll failed", sl.Err(err))
		case err != nil:
			return err
		case status == instagram.ContainerFinished:
			return nil
		case status == instagram.ContainerError:
			return fmt.Errorf("%w: container %s processing failed", instagram.ErrRemoteRejected, containerID)
		}

		if s.now().After(deadline) {
			return fmt.Errorf("%w: container %s after %s", ErrPublishTimeout, containerID, s.pollTimeout)
		}
	}
}

// publishWithRetry retries the final publish call on transient failures only;
// a 4xx rejection aborts immediately.
func (s *PublishService) publishWithRetry(ctx context.Context, creds models.Credentials, containerID string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < publishRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, publishRetryBackoff<<(attempt-1)); err != nil {
				return "", err
			}
		}

		mediaID, err := s.api.PublishContainer(ctx, creds.UserID, creds.AccessToken, containerID)
		if err == nil {
			return mediaID, nil
		}
		if !errors.Is(err, instagram.ErrUnavailable) {
			return "", err
		}
		lastErr = err
		s.log.Warn("publish call failed, retrying", slog.Int("attempt", attempt+1), sl.Err(err))
	}

	return "", lastErr
}

func (s *PublishService) markRemainingSkipped(attempt *models.PublishAttempt, remaining []int) {
	for _, visual := range remaining {
		attempt.Outcomes = append(attempt.Outcomes, models.SlotOutcome{
			Position: visual,
			Status:   models.PublishStatusSkipped,
		})
	}
}
