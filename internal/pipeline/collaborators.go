package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/aayushsingh7/vidchemy/internal/models"
)

// The executor composes external collaborators; it never implements the
// analysis itself. Each collaborator is behind its own small interface so
// tests can script failures at any stage.

// ObjectDetector finds labeled objects with timestamps in a video.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, videoLocation string) ([]models.Detection, error)
}

// Transcriber produces the speech-to-text transcript for a video.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, videoLocation string) (*models.Transcript, error)
}

// MomentSelector picks the single best product moment from the combined
// detection and transcript evidence.
type MomentSelector interface {
	SelectMoment(ctx context.Context, detections []models.Detection, transcript *models.Transcript, userHint string) (*models.MomentSelection, error)
}

// FrameSession is an open handle on one job's video: its duration and the
// ability to pull single frames out of it. Close releases any local scratch
// space.
type FrameSession interface {
	DurationSeconds() float64
	ExtractFrame(ctx context.Context, atSeconds float64) (string, error)
	Close() error
}

// FrameExtractor opens frame sessions. Opening is where the video is
// materialized locally, so it can fail like any collaborator call.
type FrameExtractor interface {
	Open(ctx context.Context, videoLocation string) (FrameSession, error)
}

// ListingGenerator writes the product listing copy from the chosen frame and
// the user's hint.
type ListingGenerator interface {
	GenerateListing(ctx context.Context, imageLocation, userHint, transcriptText string) (*models.ListingContent, error)
}

// JobStore is the slice of the persistence layer the executor mutates.
type JobStore interface {
	GetJob(id uuid.UUID) (*models.Job, error)
	UpdateStage(id uuid.UUID, stage models.JobStage) error
	MarkFailed(id uuid.UUID, stage *models.JobStage, message string) error
	CommitProductResult(jobID uuid.UUID, content models.ListingContent, imageLocation string, frameTimestamp float64) error
}
