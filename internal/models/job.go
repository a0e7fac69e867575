package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the client-visible lifecycle state of a listing job.
type JobStatus string

const (
	StatusProcessing JobStatus = "PROCESSING"
	StatusSuccess    JobStatus = "SUCCESS"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// JobStage identifies which pipeline stage a job last entered. It is a
// diagnostic marker: on failure it localizes where things broke, and after
// success it simply records the last stage that ran.
type JobStage string

const (
	StageDetection     JobStage = "DETECTION"
	StageTranscription JobStage = "TRANSCRIPTION"
	StageSmartFilter   JobStage = "SMART_FILTER"
	StageFrameExtract  JobStage = "FRAME_EXTRACT"
	StageContentGen    JobStage = "CONTENT_GEN"
)

// Job represents the structure of a listing job in the database.
type Job struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	VideoLocation string    `json:"video_location"`
	UserHint      string    `json:"user_hint"`
	Status        JobStatus `json:"status"`
	Stage         *JobStage `json:"stage,omitempty"`         // Nullable TEXT
	ErrorMessage  *string   `json:"error_message,omitempty"` // Nullable TEXT
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
