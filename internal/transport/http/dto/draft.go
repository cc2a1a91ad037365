package dto

import (
	"instagrid/internal/domain/models"
)

// PostItem is one image + caption pair as submitted by the UI.
type PostItem struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	Caption     string `json:"caption"`
}

type SaveDraftRequest struct {
	Posts         []PostItem            `json:"posts" validate:"required"`
	CropRatios    []string              `json:"crop_ratios,omitempty"`
	CropPositions []models.CropPosition `json:"crop_positions,omitempty"`
}

// UpdateDraftRequest is a partial update: every field is optional and only
// present fields are applied. Validation of all present fields happens before
// any of them mutate the draft.
type UpdateDraftRequest struct {
	Captions      *[]string              `json:"captions,omitempty"`
	CropRatios    *[]string              `json:"crop_ratios,omitempty"`
	CropPositions *[]models.CropPosition `json:"crop_positions,omitempty"`
	PostOrder     *[]int                 `json:"post_order,omitempty"`
}

func (r UpdateDraftRequest) Empty() bool {
	return r.Captions == nil && r.CropRatios == nil && r.CropPositions == nil && r.PostOrder == nil
}

type DraftResponse struct {
	Draft *models.Draft `json:"draft"`
}

type DraftListResponse struct {
	Drafts []models.Draft `json:"drafts"`
}
