package models

// Stage contracts: the typed inputs and outputs exchanged with the external
// analysis collaborators. Pure data, no behavior.

// Detection is a single labeled object sighting in the video.
type Detection struct {
	Label            string  `json:"label"`
	Confidence       float64 `json:"confidence"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
}

// TranscriptWord is a single word with its timing.
type TranscriptWord struct {
	Text         string  `json:"text"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Transcript is the full speech-to-text result for a video.
type Transcript struct {
	FullText string           `json:"full_text"`
	Words    []TranscriptWord `json:"words"`
}

// MomentSelection is the smart filter's verdict: the one moment in the video
// that best shows the product described by the user hint.
type MomentSelection struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
}

// ListingContent is the generated marketing copy for the product.
type ListingContent struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	BulletPoints []string `json:"bullet_points"`
}
