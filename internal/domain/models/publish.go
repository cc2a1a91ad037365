package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Credentials is the opaque remote identity a publish run operates under.
// Token lifecycle (exchange, refresh) happens outside this service.
type Credentials struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.UserID != ""
}

type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "pending"
	PublishStatusUploaded  PublishStatus = "uploaded"
	PublishStatusPublished PublishStatus = "published"
	PublishStatusFailed    PublishStatus = "failed"
	PublishStatusSkipped   PublishStatus = "skipped"
)

// SlotOutcome records what happened to one slot during a publish attempt.
// Position is the visual position (0 = left), not the submission index.
type SlotOutcome struct {
	Position      int           `json:"position"`
	ImageKey      string        `json:"image_key,omitempty"`
	ContainerID   string        `json:"container_id,omitempty"`
	RemoteMediaID string        `json:"remote_media_id,omitempty"`
	Status        PublishStatus `json:"status"`
	Error         string        `json:"error,omitempty"`
}

type SlotOutcomes []SlotOutcome

func (o SlotOutcomes) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

func (o *SlotOutcomes) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into SlotOutcomes", value)
	}
	return json.Unmarshal(b, o)
}

// PublishAttempt is one orchestrator run over a draft. Attempts are
// append-only: a forced re-post adds a new record and never erases old ones.
type PublishAttempt struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	DraftID    uuid.UUID    `json:"draft_id" db:"draft_id"`
	StartedAt  time.Time    `json:"started_at" db:"started_at"`
	FinishedAt time.Time    `json:"finished_at" db:"finished_at"`
	Success    bool         `json:"success" db:"success"`
	Forced     bool         `json:"forced" db:"forced"`
	Outcomes   SlotOutcomes `json:"outcomes" db:"outcomes"`
	Log        []string     `json:"log" db:"log"`
}

func NewPublishAttempt(draftID uuid.UUID, forced bool) *PublishAttempt {
	return &PublishAttempt{
		ID:        uuid.New(),
		DraftID:   draftID,
		StartedAt: time.Now().UTC(),
		Forced:    forced,
	}
}

func (a *PublishAttempt) Logf(format string, args ...any) {
	a.Log = append(a.Log, fmt.Sprintf(format, args...))
}

// RemoteMediaIDsInVisualOrder extracts published ids ordered by visual
// position. Returns false unless all three slots published.
func (a *PublishAttempt) RemoteMediaIDsInVisualOrder() (RemoteMediaIDs, bool) {
	ids := make(RemoteMediaIDs, GridSize)
	published := 0
	for _, o := range a.Outcomes {
		if o.Status == PublishStatusPublished && o.Position >= 0 && o.Position < GridSize {
			ids[o.Position] = o.RemoteMediaID
			published++
		}
	}
	if published != GridSize {
		return nil, false
	}
	return ids, true
}

// PublishPost is one publishable unit handed to the orchestrator: prepared
// image bytes (or a key to fetch them by) plus the effective caption.
type PublishPost struct {
	ImageKey   string
	ImageBytes []byte
	Caption    string
	CropRatio  CropRatio
	CropPos    CropPosition
}
