package models

// HashtagLadder groups suggested hashtags by reach.
type HashtagLadder struct {
	Broad    []string `json:"broad"`
	Niche    []string `json:"niche"`
	Specific []string `json:"specific"`
}

// AnalysisResult is what the captioning collaborator returns for a 3-image
// grid: a suggested visual order, one caption per image and coherence scoring.
type AnalysisResult struct {
	SuggestedOrder     []int           `json:"suggested_order"`
	Captions           []string        `json:"captions"`
	IndividualScores   []int           `json:"individual_scores"`
	Hashtags           []HashtagLadder `json:"hashtags"`
	CoherenceScore     int             `json:"coherence_score"`
	CoherenceReasoning string          `json:"coherence_reasoning"`
	CommonThreadFR     string          `json:"common_thread_fr,omitempty"`
	CommonThreadEN     string          `json:"common_thread_en,omitempty"`
}
