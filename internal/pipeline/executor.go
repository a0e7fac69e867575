package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aayushsingh7/vidchemy/internal/models"
	"github.com/aayushsingh7/vidchemy/internal/store"
	"github.com/aayushsingh7/vidchemy/internal/utils"
)

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }

// Executor drives one job through the fixed stage sequence. It is the only
// component that mutates a job after creation. Failure policy is fail-fast:
// the first stage error flips the job to FAILED and nothing after it runs.
type Executor struct {
	store       JobStore
	detector    ObjectDetector
	transcriber Transcriber
	selector    MomentSelector
	frames      FrameExtractor
	generator   ListingGenerator

	log          *logrus.Logger
	stageTimeout time.Duration
}

// NewExecutor wires the executor with its collaborators. stageTimeout bounds
// every individual collaborator call.
func NewExecutor(
	store JobStore,
	detector ObjectDetector,
	transcriber Transcriber,
	selector MomentSelector,
	frames FrameExtractor,
	generator ListingGenerator,
	log *logrus.Logger,
	stageTimeout time.Duration,
) *Executor {
	return &Executor{
		store:        store,
		detector:     detector,
		transcriber:  transcriber,
		selector:     selector,
		frames:       frames,
		generator:    generator,
		log:          log,
		stageTimeout: stageTimeout,
	}
}

// runState carries stage outputs forward in memory. Adjacent stages compose
// directly; nothing is re-read from the store mid-pipeline.
type runState struct {
	jobID         uuid.UUID
	videoLocation string
	userHint      string

	detections    []models.Detection
	transcript    *models.Transcript
	session       FrameSession
	moment        *models.MomentSelection
	imageLocation string
	content       *models.ListingContent
}

// stageStep is one row of the transition table: the stage marker written
// before the step runs, and the step itself.
type stageStep struct {
	stage models.JobStage
	run   func(ctx context.Context, st *runState) error
}

// steps is the full pipeline in its fixed order. The table is the state
// machine: execution walks it front to back and stops at the first error.
func (e *Executor) steps() []stageStep {
	return []stageStep{
		{models.StageDetection, e.runDetection},
		{models.StageTranscription, e.runTranscription},
		{models.StageSmartFilter, e.runSmartFilter},
		{models.StageFrameExtract, e.runFrameExtract},
		{models.StageContentGen, e.runContentGen},
	}
}

// Execute processes one dispatch message to a terminal job state. The
// returned error is non-nil only when the executor could not even record a
// terminal state; the caller must then leave the message unacked.
func (e *Executor) Execute(ctx context.Context, msg models.DispatchMessage) error {
	jobID, err := uuid.Parse(msg.JobID)
	if err != nil {
		e.log.WithField("job_id", msg.JobID).Error("Dispatch message carries unparseable job id, dropping")
		return nil
	}
	entry := e.log.WithField("job_id", jobID.String())

	job, err := e.store.GetJob(jobID)
	if err != nil {
		if isNotFound(err) {
			// A message for a job that was never recorded can never make
			// progress; ack it away.
			entry.Error("Dispatch message references unknown job, dropping")
			return nil
		}
		// Transient store trouble: report upward so the message redelivers.
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	// At-least-once delivery means terminal jobs get redelivered. Treat that
	// as a clean no-op: no collaborator runs, no rows change.
	if job.Status.Terminal() {
		entry.WithField("job_status", string(job.Status)).Info("Job already terminal, ignoring redelivery")
		return nil
	}

	st := &runState{
		jobID:         jobID,
		videoLocation: job.VideoLocation,
		userHint:      job.UserHint,
	}
	defer func() {
		if st.session != nil {
			if err := st.session.Close(); err != nil {
				entry.WithField("error", err.Error()).Warn("Failed to close frame session")
			}
		}
	}()

	for _, step := range e.steps() {
		// Diagnostic checkpoint before the collaborator call. Best effort:
		// a failed marker write must never block business progress.
		if err := e.store.UpdateStage(jobID, step.stage); err != nil {
			entry.WithFields(logrus.Fields{
				"stage": string(step.stage),
				"error": err.Error(),
			}).Warn("Failed to write stage marker, continuing")
		}

		stageCtx, cancel := context.WithTimeout(ctx, e.stageTimeout)
		err := step.run(stageCtx, st)
		cancel()
		if err != nil {
			return e.fail(entry, jobID, step.stage, err)
		}
		entry.WithField("stage", string(step.stage)).Info("Stage completed")
	}

	// Terminal commit: product + image + SUCCESS as one transaction.
	if err := e.store.CommitProductResult(jobID, *st.content, st.imageLocation, st.moment.TimestampSeconds); err != nil {
		return e.fail(entry, jobID, models.StageContentGen, err)
	}

	entry.Info("Job completed successfully")
	return nil
}

// fail converts a stage error into the terminal FAILED state. Only a failure
// of that very write escapes upward, because it leaves the job invisibly
// stuck and the message must redeliver.
func (e *Executor) fail(entry *logrus.Entry, jobID uuid.UUID, stage models.JobStage, cause error) error {
	sanitized := utils.SanitizeErrorMessage(cause.Error())
	entry.WithFields(logrus.Fields{
		"stage": string(stage),
		"error": cause.Error(),
	}).Error("Pipeline stage failed")

	if err := e.store.MarkFailed(jobID, &stage, sanitized); err != nil {
		entry.WithFields(logrus.Fields{
			"stage": string(stage),
			"error": err.Error(),
		}).Error("CRITICAL: failed to record FAILED state, job is stuck")
		return fmt.Errorf("failed to record FAILED state for job %s: %w", jobID, err)
	}
	return nil
}

func (e *Executor) runDetection(ctx context.Context, st *runState) error {
	detections, err := e.detector.DetectObjects(ctx, st.videoLocation)
	if err != nil {
		return fmt.Errorf("object detection failed: %w", err)
	}
	// Zero detections is a legitimate outcome (nothing recognizable in
	// frame), not an error; downstream stages still get the transcript.
	st.detections = detections
	return nil
}

func (e *Executor) runTranscription(ctx context.Context, st *runState) error {
	transcript, err := e.transcriber.TranscribeAudio(ctx, st.videoLocation)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}
	if transcript == nil {
		return fmt.Errorf("transcription returned no result")
	}
	st.transcript = transcript
	return nil
}

func (e *Executor) runSmartFilter(ctx context.Context, st *runState) error {
	// The timestamp bound check needs the real duration, so the video is
	// materialized here; the session is reused by frame extraction.
	session, err := e.frames.Open(ctx, st.videoLocation)
	if err != nil {
		return fmt.Errorf("failed to open video for duration probe: %w", err)
	}
	st.session = session

	moment, err := e.selector.SelectMoment(ctx, st.detections, st.transcript, st.userHint)
	if err != nil {
		return fmt.Errorf("smart filter failed: %w", err)
	}
	if moment == nil {
		return fmt.Errorf("smart filter returned no selection")
	}

	duration := session.DurationSeconds()
	if moment.TimestampSeconds < 0 || moment.TimestampSeconds > duration {
		// Hard failure, never a silent clamp: a timestamp outside the video
		// means the reasoning service hallucinated and nothing downstream
		// can be trusted.
		return fmt.Errorf("invalid timestamp: %.3fs outside video bounds [0, %.3fs]", moment.TimestampSeconds, duration)
	}
	st.moment = moment
	return nil
}

func (e *Executor) runFrameExtract(ctx context.Context, st *runState) error {
	imageLocation, err := st.session.ExtractFrame(ctx, st.moment.TimestampSeconds)
	if err != nil {
		return fmt.Errorf("frame extraction failed: %w", err)
	}
	if imageLocation == "" {
		return fmt.Errorf("frame extraction produced no image location")
	}
	st.imageLocation = imageLocation
	return nil
}

func (e *Executor) runContentGen(ctx context.Context, st *runState) error {
	content, err := e.generator.GenerateListing(ctx, st.imageLocation, st.userHint, st.transcript.FullText)
	if err != nil {
		return fmt.Errorf("content generation failed: %w", err)
	}
	if err := validateListingContent(content); err != nil {
		return err
	}
	st.content = content
	return nil
}

// validateListingContent enforces the generation contract: all four fields
// present and non-empty.
func validateListingContent(content *models.ListingContent) error {
	if content == nil {
		return fmt.Errorf("content generation returned no result")
	}
	if content.Title == "" {
		return fmt.Errorf("content generation returned empty title")
	}
	if content.Description == "" {
		return fmt.Errorf("content generation returned empty description")
	}
	if len(content.Keywords) == 0 {
		return fmt.Errorf("content generation returned no keywords")
	}
	if len(content.BulletPoints) == 0 {
		return fmt.Errorf("content generation returned no bullet points")
	}
	return nil
}
