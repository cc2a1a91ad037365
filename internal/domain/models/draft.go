package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DraftStatus string

const (
	DraftStatusDraft  DraftStatus = "draft"
	DraftStatusPosted DraftStatus = "posted"
)

// GridSize is fixed: a grid unit is always one full row of the profile feed.
const GridSize = 3

type CropRatio string

const (
	CropRatioOriginal CropRatio = "original"
	CropRatioSquare   CropRatio = "1:1"
	CropRatioPortrait CropRatio = "4:5"
	CropRatioWide     CropRatio = "16:9"
)

var (
	ErrInvalidSlotCount    = errors.New("grid must contain exactly 3 slots")
	ErrInvalidPermutation  = errors.New("post order must be a permutation of {0,1,2}")
	ErrInvalidCropRatio    = errors.New("invalid crop ratio")
	ErrEmptyCaptionHistory = errors.New("caption history must not be empty")
)

// CropPosition is the focal point used when cropping, in percent of the
// cropable range along each axis.
type CropPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func DefaultCropPosition() CropPosition {
	return CropPosition{X: 50, Y: 50}
}

// Clamp bounds both axes to [0,100].
func (p CropPosition) Clamp() CropPosition {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 100 {
			return 100
		}
		return v
	}
	return CropPosition{X: clamp(p.X), Y: clamp(p.Y)}
}

func (r CropRatio) Valid() bool {
	switch r {
	case CropRatioOriginal, CropRatioSquare, CropRatioPortrait, CropRatioWide:
		return true
	}
	return false
}

// AspectValue returns width/height for the ratio. The second return value is
// false for "original", which leaves the image untouched.
func (r CropRatio) AspectValue() (float64, bool) {
	switch r {
	case CropRatioSquare:
		return 1.0, true
	case CropRatioPortrait:
		return 4.0 / 5.0, true
	case CropRatioWide:
		return 16.0 / 9.0, true
	default:
		return 0, false
	}
}

// GridSlot is one of the three fixed positions of a draft. Caption edits are
// versioned: new captions append to CaptionHistory and CurrentCaption always
// indexes a valid entry.
type GridSlot struct {
	ImageKey       string       `json:"image_key"`
	ImageURL       string       `json:"image_url,omitempty"`
	CropRatio      CropRatio    `json:"crop_ratio"`
	CropPosition   CropPosition `json:"crop_position"`
	CaptionHistory []string     `json:"caption_history"`
	CurrentCaption int          `json:"current_caption"`
}

func NewGridSlot(imageKey, caption string) GridSlot {
	return GridSlot{
		ImageKey:       imageKey,
		CropRatio:      CropRatioOriginal,
		CropPosition:   DefaultCropPosition(),
		CaptionHistory: []string{caption},
		CurrentCaption: 0,
	}
}

// Caption returns the effective caption of the slot.
func (s *GridSlot) Caption() string {
	if s.CurrentCaption < 0 || s.CurrentCaption >= len(s.CaptionHistory) {
		return ""
	}
	return s.CaptionHistory[s.CurrentCaption]
}

// AppendCaption records a new caption version and makes it current. Prior
// versions are never overwritten.
func (s *GridSlot) AppendCaption(caption string) {
	s.CaptionHistory = append(s.CaptionHistory, caption)
	s.CurrentCaption = len(s.CaptionHistory) - 1
}

// PrevCaption moves the current pointer one version back, stopping at the
// oldest entry.
func (s *GridSlot) PrevCaption() string {
	if s.CurrentCaption > 0 {
		s.CurrentCaption--
	}
	return s.Caption()
}

// NextCaption moves the current pointer one version forward, stopping at the
// newest entry.
func (s *GridSlot) NextCaption() string {
	if s.CurrentCaption < len(s.CaptionHistory)-1 {
		s.CurrentCaption++
	}
	return s.Caption()
}

func (s *GridSlot) Validate() error {
	if s.ImageKey == "" {
		return fmt.Errorf("slot image key is required")
	}
	if !s.CropRatio.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCropRatio, s.CropRatio)
	}
	if len(s.CaptionHistory) == 0 {
		return ErrEmptyCaptionHistory
	}
	if s.CurrentCaption < 0 || s.CurrentCaption >= len(s.CaptionHistory) {
		return fmt.Errorf("current caption index %d out of range [0,%d)", s.CurrentCaption, len(s.CaptionHistory))
	}
	return nil
}

// GridSlots is the ordered triplet of slots, serialized to a JSONB column.
type GridSlots []GridSlot

func (g GridSlots) Value() (driver.Value, error) {
	if g == nil {
		return nil, nil
	}
	return json.Marshal(g)
}

func (g *GridSlots) Scan(value interface{}) error {
	if value == nil {
		*g = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into GridSlots", value)
	}
	return json.Unmarshal(b, g)
}

func (g GridSlots) Validate() error {
	if len(g) != GridSize {
		return ErrInvalidSlotCount
	}
	for i := range g {
		if err := g[i].Validate(); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}
	return nil
}

// Reorder returns a new triplet with slot values rearranged so that position i
// holds the slot previously at order[i]. Crop data and caption history travel
// with the slot.
func (g GridSlots) Reorder(order []int) (GridSlots, error) {
	if err := ValidatePermutation(order); err != nil {
		return nil, err
	}
	if len(g) != GridSize {
		return nil, ErrInvalidSlotCount
	}
	out := make(GridSlots, GridSize)
	for i, from := range order {
		out[i] = g[from]
	}
	return out, nil
}

// ValidatePermutation checks that order is a permutation of {0,1,2}.
func ValidatePermutation(order []int) error {
	if len(order) != GridSize {
		return ErrInvalidPermutation
	}
	var seen [GridSize]bool
	for _, v := range order {
		if v < 0 || v >= GridSize || seen[v] {
			return ErrInvalidPermutation
		}
		seen[v] = true
	}
	return nil
}

// RemoteMediaIDs are the platform ids recorded after a successful publish,
// kept in visual slot order.
type RemoteMediaIDs []string

func (r RemoteMediaIDs) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *RemoteMediaIDs) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into RemoteMediaIDs", value)
	}
	return json.Unmarshal(b, r)
}

// Draft is a persisted, editable 3-image grid unit prior to publication.
type Draft struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Slots          GridSlots      `json:"slots" db:"slots"`
	Status         DraftStatus    `json:"status" db:"status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
	PostedAt       *time.Time     `json:"posted_at,omitempty" db:"posted_at"`
	RemoteMediaIDs RemoteMediaIDs `json:"remote_media_ids,omitempty" db:"remote_media_ids"`
}

func NewDraft(slots GridSlots) (*Draft, error) {
	if err := slots.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Draft{
		ID:        uuid.New(),
		Slots:     slots,
		Status:    DraftStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (d *Draft) Posted() bool {
	return d.Status == DraftStatusPosted
}
