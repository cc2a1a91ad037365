package dto

import "instagrid/internal/domain/models"

// PublishGridRequest publishes three ad-hoc posts without saving a draft.
// Credentials fall back to the stored/configured ones when absent.
type PublishGridRequest struct {
	AccessToken string     `json:"access_token,omitempty"`
	IGUserID    string     `json:"ig_user_id,omitempty"`
	Posts       []PostItem `json:"posts" validate:"required"`
}

type PublishDraftRequest struct {
	AccessToken string `json:"access_token,omitempty"`
	IGUserID    string `json:"ig_user_id,omitempty"`
	Force       bool   `json:"force"`
}

type PublishResponse struct {
	DraftID        string                `json:"draft_id,omitempty"`
	Success        bool                  `json:"success"`
	RemoteMediaIDs models.RemoteMediaIDs `json:"remote_media_ids,omitempty"`
	Outcomes       models.SlotOutcomes   `json:"outcomes"`
	Logs           []string              `json:"logs"`
}
