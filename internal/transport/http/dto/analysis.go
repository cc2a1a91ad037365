package dto

// RegenerateCaptionRequest asks the captioning collaborator for a fresh
// caption for one image, given the grid's common thread and prior versions.
type RegenerateCaptionRequest struct {
	ImageBase64       string   `json:"image_base64" validate:"required"`
	CommonContext     string   `json:"common_context,omitempty"`
	IndividualContext string   `json:"individual_context,omitempty"`
	CaptionsHistory   []string `json:"captions_history,omitempty"`
	CommonThreadFR    string   `json:"common_thread_fr,omitempty"`
	CommonThreadEN    string   `json:"common_thread_en,omitempty"`
}

type RegenerateCaptionResponse struct {
	Caption string `json:"caption"`
}
