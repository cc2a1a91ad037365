package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"instagrid/internal/domain/models"
	"instagrid/internal/storage"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type DraftRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewDraftRepository(db *pgxpool.Pool) *DraftRepo {
	return &DraftRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *DraftRepo) SaveDraft(ctx context.Context, draft *models.Draft) error {
	const op = "repository.draft_repository.SaveDraft"

	query, args, err := r.sb.Insert("drafts").
		Columns(
			"id",
			"slots",
			"status",
			"created_at",
			"updated_at",
			"posted_at",
			"remote_media_ids",
		).
		Values(
			draft.ID,
			draft.Slots,
			draft.Status,
			draft.CreatedAt,
			draft.UpdatedAt,
			draft.PostedAt,
			draft.RemoteMediaIDs,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to save draft: %w", op, err)
	}

	return nil
}

func (r *DraftRepo) GetDraftByID(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	const op = "repository.draft_repository.GetDraftByID"

	query, args, err := r.sb.
		Select("id", "slots", "status", "created_at", "updated_at", "posted_at", "remote_media_ids").
		From("drafts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	draft, err := scanDraft(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get draft: %w", op, err)
	}

	return draft, nil
}

func (r *DraftRepo) ListDrafts(ctx context.Context) ([]models.Draft, error) {
	const op = "repository.draft_repository.ListDrafts"

	query, args, err := r.sb.
		Select("id", "slots", "status", "created_at", "updated_at", "posted_at", "remote_media_ids").
		From("drafts").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	var drafts []models.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: row scanning failed: %w", op, err)
		}
		drafts = append(drafts, *draft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", op, err)
	}

	return drafts, nil
}

// UpdateDraftSlots row-locks the draft, lets mutate rewrite it in memory and
// persists slots, status and updated_at. Mutate errors roll everything back,
// so an invalid update never half-applies.
func (r *DraftRepo) UpdateDraftSlots(ctx context.Context, id uuid.UUID, mutate func(*models.Draft) error) (*models.Draft, error) {
	const op = "repository.draft_repository.UpdateDraftSlots"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	query, args, err := r.sb.
		Select("id", "slots", "status", "created_at", "updated_at", "posted_at", "remote_media_ids").
		From("drafts").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	draft, err := scanDraft(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get draft: %w", op, err)
	}

	if err := mutate(draft); err != nil {
		return nil, err
	}

	draft.UpdatedAt = time.Now().UTC()

	update, args, err := r.sb.Update("drafts").
		Set("slots", draft.Slots).
		Set("status", draft.Status).
		Set("updated_at", draft.UpdatedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	if _, err := tx.Exec(ctx, update, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to update draft: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return draft, nil
}

// DeleteDraft is idempotent: deleting an absent draft is not an error.
func (r *DraftRepo) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	const op = "repository.draft_repository.DeleteDraft"

	query, args, err := r.sb.Delete("drafts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to delete draft: %w", op, err)
	}

	return nil
}

func (r *DraftRepo) MarkPosted(ctx context.Context, id uuid.UUID, remoteIDs models.RemoteMediaIDs, postedAt time.Time) error {
	const op = "repository.draft_repository.MarkPosted"

	query, args, err := r.sb.Update("drafts").
		Set("status", models.DraftStatusPosted).
		Set("posted_at", postedAt).
		Set("remote_media_ids", remoteIDs).
		Set("updated_at", postedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to mark posted: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
	}

	return nil
}

func (r *DraftRepo) AppendAttempt(ctx context.Context, attempt *models.PublishAttempt) error {
	const op = "repository.draft_repository.AppendAttempt"

	logJSON, err := json.Marshal(attempt.Log)
	if err != nil {
		return fmt.Errorf("%s: failed to encode log: %w", op, err)
	}

	query, args, err := r.sb.Insert("publish_attempts").
		Columns(
			"id",
			"draft_id",
			"started_at",
			"finished_at",
			"success",
			"forced",
			"outcomes",
			"log",
		).
		Values(
			attempt.ID,
			attempt.DraftID,
			attempt.StartedAt,
			attempt.FinishedAt,
			attempt.Success,
			attempt.Forced,
			attempt.Outcomes,
			logJSON,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to append attempt: %w", op, err)
	}

	return nil
}

func (r *DraftRepo) ListAttempts(ctx context.Context, draftID uuid.UUID) ([]models.PublishAttempt, error) {
	const op = "repository.draft_repository.ListAttempts"

	query, args, err := r.sb.
		Select("id", "draft_id", "started_at", "finished_at", "success", "forced", "outcomes", "log").
		From("publish_attempts").
		Where(sq.Eq{"draft_id": draftID}).
		OrderBy("started_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	var attempts []models.PublishAttempt
	for rows.Next() {
		var (
			a       models.PublishAttempt
			logJSON []byte
		)
		if err := rows.Scan(
			&a.ID,
			&a.DraftID,
			&a.StartedAt,
			&a.FinishedAt,
			&a.Success,
			&a.Forced,
			&a.Outcomes,
			&logJSON,
		); err != nil {
			return nil, fmt.Errorf("%s: row scanning failed: %w", op, err)
		}
		if len(logJSON) > 0 {
			if err := json.Unmarshal(logJSON, &a.Log); err != nil {
				return nil, fmt.Errorf("%s: failed to decode log: %w", op, err)
			}
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration error: %w", op, err)
	}

	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDraft(row rowScanner) (*models.Draft, error) {
	var (
		d      models.Draft
		status string
	)
	if err := row.Scan(
		&d.ID,
		&d.Slots,
		&status,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PostedAt,
		&d.RemoteMediaIDs,
	); err != nil {
		return nil, err
	}
	d.Status = models.DraftStatus(status)
	return &d, nil
}
