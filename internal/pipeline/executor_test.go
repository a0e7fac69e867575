package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aayushsingh7/vidchemy/internal/models"
	"github.com/aayushsingh7/vidchemy/internal/store"
)

type fakeStore struct {
	job            *models.Job
	getErr         error
	updateStageErr error
	markFailedErr  error
	commitErr      error

	stageWrites []models.JobStage
	failedStage *models.JobStage
	failedMsg   string
	failedCalls int

	commits          int
	committedContent models.ListingContent
	committedImage   string
	committedTS      float64
}

func (f *fakeStore) GetJob(id uuid.UUID) (*models.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.job == nil {
		return nil, store.ErrNotFound
	}
	cp := *f.job
	return &cp, nil
}

func (f *fakeStore) UpdateStage(id uuid.UUID, stage models.JobStage) error {
	f.stageWrites = append(f.stageWrites, stage)
	return f.updateStageErr
}

func (f *fakeStore) MarkFailed(id uuid.UUID, stage *models.JobStage, message string) error {
	if f.markFailedErr != nil {
		return f.markFailedErr
	}
	f.failedCalls++
	f.failedStage = stage
	f.failedMsg = message
	return nil
}

func (f *fakeStore) CommitProductResult(jobID uuid.UUID, content models.ListingContent, imageLocation string, frameTimestamp float64) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits++
	f.committedContent = content
	f.committedImage = imageLocation
	f.committedTS = frameTimestamp
	return nil
}

type fakeAI struct {
	detections  []models.Detection
	detectErr   error
	detectCalls int

	transcript      *models.Transcript
	transcribeErr   error
	transcribeCalls int

	moment      *models.MomentSelection
	selectErr   error
	selectCalls int

	content       *models.ListingContent
	generateErr   error
	generateCalls int
}

func (f *fakeAI) DetectObjects(ctx context.Context, videoLocation string) ([]models.Detection, error) {
	f.detectCalls++
	return f.detections, f.detectErr
}

func (f *fakeAI) TranscribeAudio(ctx context.Context, videoLocation string) (*models.Transcript, error) {
	f.transcribeCalls++
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeAI) SelectMoment(ctx context.Context, detections []models.Detection, transcript *models.Transcript, userHint string) (*models.MomentSelection, error) {
	f.selectCalls++
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.moment, nil
}

func (f *fakeAI) GenerateListing(ctx context.Context, imageLocation, userHint, transcriptText string) (*models.ListingContent, error) {
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.content, nil
}

type fakeSession struct {
	duration      float64
	frameLocation string
	extractErr    error
	extractCalls  int
	closed        bool
}

func (s *fakeSession) DurationSeconds() float64 { return s.duration }

func (s *fakeSession) ExtractFrame(ctx context.Context, atSeconds float64) (string, error) {
	s.extractCalls++
	if s.extractErr != nil {
		return "", s.extractErr
	}
	return s.frameLocation, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeExtractor struct {
	session   *fakeSession
	openErr   error
	openCalls int
}

func (f *fakeExtractor) Open(ctx context.Context, videoLocation string) (FrameSession, error) {
	f.openCalls++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.session, nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func processingJob(id uuid.UUID) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:            id,
		UserID:        uuid.New(),
		VideoLocation: "user/video.mp4",
		UserHint:      "water bottle",
		Status:        models.StatusProcessing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// happyAI scripts the bottle scenario: one strong detection at 12s, a
// matching transcript, a selection at 12s and complete listing copy.
func happyAI() *fakeAI {
	return &fakeAI{
		detections: []models.Detection{
			{Label: "bottle", Confidence: 0.9, TimestampSeconds: 12.0},
		},
		transcript: &models.Transcript{
			FullText: "this amazing bottle keeps water cold",
			Words: []models.TranscriptWord{
				{Text: "this", StartSeconds: 0.0, EndSeconds: 0.3},
				{Text: "amazing", StartSeconds: 0.3, EndSeconds: 0.8},
				{Text: "bottle", StartSeconds: 0.8, EndSeconds: 1.2},
			},
		},
		moment: &models.MomentSelection{TimestampSeconds: 12.0, Confidence: 0.85, Reasoning: "bottle clearly visible"},
		content: &models.ListingContent{
			Title:        "Insulated Water Bottle",
			Description:  "Keeps drinks cold for hours.",
			Keywords:     []string{"bottle", "insulated"},
			BulletPoints: []string{"Keeps water cold", "Leak-proof lid"},
		},
	}
}

func newTestSetup() (*fakeStore, *fakeAI, *fakeExtractor, models.DispatchMessage) {
	jobID := uuid.New()
	st := &fakeStore{job: processingJob(jobID)}
	ai := happyAI()
	fx := &fakeExtractor{session: &fakeSession{duration: 30.0, frameLocation: "frames/abc.jpg"}}
	msg := models.DispatchMessage{JobID: jobID.String(), VideoLocation: "user/video.mp4", UserHint: "water bottle"}
	return st, ai, fx, msg
}

func newTestExecutor(st *fakeStore, ai *fakeAI, fx *fakeExtractor) *Executor {
	return NewExecutor(st, ai, ai, ai, fx, ai, quietLogger(), time.Minute)
}

func TestExecuteHappyPath(t *testing.T) {
	st, ai, fx, msg := newTestSetup()
	exec := newTestExecutor(st, ai, fx)

	if err := exec.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if st.commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", st.commits)
	}
	if st.committedTS != 12.0 {
		t.Fatalf("committed frame timestamp = %v, want 12.0", st.committedTS)
	}
	if st.committedImage != "frames/abc.jpg" {
		t.Fatalf("committed image location = %q", st.committedImage)
	}
	if st.committedContent.Title == "" || st.committedContent.Description == "" ||
		len(st.committedContent.Keywords) == 0 || len(st.committedContent.BulletPoints) == 0 {
		t.Fatalf("committed content incomplete: %+v", st.committedContent)
	}
	if st.failedCalls != 0 {
		t.Fatalf("MarkFailed called %d times on a successful run", st.failedCalls)
	}

	wantStages := []models.JobStage{
		models.StageDetection,
		models.StageTranscription,
		models.StageSmartFilter,
		models.StageFrameExtract,
		models.StageContentGen,
	}
	if len(st.stageWrites) != len(wantStages) {
		t.Fatalf("stage writes = %v, want %v", st.stageWrites, wantStages)
	}
	for i, stage := range wantStages {
		if st.stageWrites[i] != stage {
			t.Fatalf("stage write %d = %s, want %s", i, st.stageWrites[i], stage)
		}
	}
	if !fx.session.closed {
		t.Fatal("frame session not closed")
	}
}

func TestExecuteFailFast(t *testing.T) {
	boom := errors.New("collaborator exploded")

	cases := []struct {
		name      string
		breakIt   func(ai *fakeAI, fx *fakeExtractor)
		wantStage models.JobStage
		check     func(t *testing.T, ai *fakeAI, fx *fakeExtractor)
	}{
		{
			name:      "detection failure stops everything",
			breakIt:   func(ai *fakeAI, fx *fakeExtractor) { ai.detectErr = boom },
			wantStage: models.StageDetection,
			check: func(t *testing.T, ai *fakeAI, fx *fakeExtractor) {
				if ai.transcribeCalls != 0 || ai.selectCalls != 0 || fx.openCalls != 0 || ai.generateCalls != 0 {
					t.Fatal("later collaborators invoked after detection failure")
				}
			},
		},
		{
			name:      "transcription failure discards detection result",
			breakIt:   func(ai *fakeAI, fx *fakeExtractor) { ai.transcribeErr = boom },
			wantStage: models.StageTranscription,
			check: func(t *testing.T, ai *fakeAI, fx *fakeExtractor) {
				if ai.selectCalls != 0 || fx.openCalls != 0 || ai.generateCalls != 0 {
					t.Fatal("later collaborators invoked after transcription failure")
				}
			},
		},
		{
			name:      "smart filter failure stops frame extraction",
			breakIt:   func(ai *fakeAI, fx *fakeExtractor) { ai.selectErr = boom },
			wantStage: models.StageSmartFilter,
			check: func(t *testing.T, ai *fakeAI, fx *fakeExtractor) {
				if fx.session.extractCalls != 0 || ai.generateCalls != 0 {
					t.Fatal("later collaborators invoked after smart filter failure")
				}
			},
		},
		{
			name:      "frame extraction failure stops content generation",
			breakIt:   func(ai *fakeAI, fx *fakeExtractor) { fx.session.extractErr = boom },
			wantStage: models.StageFrameExtract,
			check: func(t *testing.T, ai *fakeAI, fx *fakeExtractor) {
				if ai.generateCalls != 0 {
					t.Fatal("content generation invoked after frame extraction failure")
				}
			},
		},
		{
			name:      "content generation failure",
			breakIt:   func(ai *fakeAI, fx *fakeExtractor) { ai.generateErr = boom },
			wantStage: models.StageContentGen,
			check:     func(t *testing.T, ai *fakeAI, fx *fakeExtractor) {},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ai, fx, msg := newTestSetup()
			tc.breakIt(ai, fx)
			exec := newTestExecutor(st, ai, fx)

			if err := exec.Execute(context.Background(), msg); err != nil {
				t.Fatalf("Execute returned error: %v", err)
			}
			if st.commits != 0 {
				t.Fatal("commit happened despite stage failure")
			}
			if st.failedCalls != 1 {
				t.Fatalf("MarkFailed called %d times, want 1", st.failedCalls)
			}
			if st.failedStage == nil || *st.failedStage != tc.wantStage {
				t.Fatalf("failed stage = %v, want %s", st.failedStage, tc.wantStage)
			}
			if st.failedMsg == "" {
				t.Fatal("failed job has empty error message")
			}
			tc.check(t, ai, fx)
		})
	}
}

func TestExecuteTimestampOutOfBoundsFailsAtSmartFilter(t *testing.T) {
	for _, ts := range []float64{-1.0, 30.001, 999.0} {
		st, ai, fx, msg := newTestSetup()
		ai.moment.TimestampSeconds = ts
		exec := newTestExecutor(st, ai, fx)

		if err := exec.Execute(context.Background(), msg); err != nil {
			t.Fatalf("Execute returned error: %v", err)
		}
		if st.failedStage == nil || *st.failedStage != models.StageSmartFilter {
			t.Fatalf("timestamp %v: failed stage = %v, want SMART_FILTER", ts, st.failedStage)
		}
		if !strings.Contains(st.failedMsg, "invalid timestamp") {
			t.Fatalf("timestamp %v: error message %q does not name the invalid timestamp", ts, st.failedMsg)
		}
		if fx.session.extractCalls != 0 {
			t.Fatalf("timestamp %v: frame extraction ran on out-of-bounds timestamp", ts)
		}
		if st.commits != 0 {
			t.Fatalf("timestamp %v: commit happened", ts)
		}
	}
}

func TestExecuteTimestampAtBoundsPasses(t *testing.T) {
	for _, ts := range []float64{0.0, 30.0} {
		st, ai, fx, msg := newTestSetup()
		ai.moment.TimestampSeconds = ts
		exec := newTestExecutor(st, ai, fx)

		if err := exec.Execute(context.Background(), msg); err != nil {
			t.Fatalf("Execute returned error: %v", err)
		}
		if st.commits != 1 {
			t.Fatalf("timestamp %v: expected commit, got failure %q", ts, st.failedMsg)
		}
	}
}

func TestExecuteEmptyDetectionsPassThrough(t *testing.T) {
	st, ai, fx, msg := newTestSetup()
	ai.detections = nil
	exec := newTestExecutor(st, ai, fx)

	if err := exec.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if st.commits != 1 {
		t.Fatalf("empty detections treated as failure: %q", st.failedMsg)
	}
}

func TestExecuteIncompleteListingContentFails(t *testing.T) {
	cases := []struct {
		name  string
		strip func(c *models.ListingContent)
	}{
		{"empty title", func(c *models.ListingContent) { c.Title = "" }},
		{"empty description", func(c *models.ListingContent) { c.Description = "" }},
		{"empty keywords", func(c *models.ListingContent) { c.Keywords = nil }},
		{"empty bullet points", func(c *models.ListingContent) { c.BulletPoints = []string{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ai, fx, msg := newTestSetup()
			tc.strip(ai.content)
			exec := newTestExecutor(st, ai, fx)

			if err := exec.Execute(context.Background(), msg); err != nil {
				t.Fatalf("Execute returned error: %v", err)
			}
			if st.commits != 0 {
				t.Fatal("incomplete listing content was committed")
			}
			if st.failedStage == nil || *st.failedStage != models.StageContentGen {
				t.Fatalf("failed stage = %v, want CONTENT_GEN", st.failedStage)
			}
		})
	}
}

func TestExecuteTerminalJobIsIdempotentNoop(t *testing.T) {
	for _, status := range []models.JobStatus{models.StatusSuccess, models.StatusFailed} {
		st, ai, fx, msg := newTestSetup()
		st.job.Status = status
		if status == models.StatusFailed {
			errMsg := "already failed"
			st.job.ErrorMessage = &errMsg
		}
		exec := newTestExecutor(st, ai, fx)

		if err := exec.Execute(context.Background(), msg); err != nil {
			t.Fatalf("redelivery to %s job returned error: %v", status, err)
		}
		if ai.detectCalls != 0 || ai.transcribeCalls != 0 || ai.selectCalls != 0 || ai.generateCalls != 0 || fx.openCalls != 0 {
			t.Fatalf("collaborators invoked on redelivery to %s job", status)
		}
		if st.commits != 0 || st.failedCalls != 0 || len(st.stageWrites) != 0 {
			t.Fatalf("state mutated on redelivery to %s job", status)
		}
	}
}

func TestExecuteUnknownJobIsDropped(t *testing.T) {
	st, ai, fx, _ := newTestSetup()
	st.job = nil
	exec := newTestExecutor(st, ai, fx)

	msg := models.DispatchMessage{JobID: uuid.NewString()}
	if err := exec.Execute(context.Background(), msg); err != nil {
		t.Fatalf("unknown job should ack away, got error: %v", err)
	}
	if ai.detectCalls != 0 {
		t.Fatal("collaborators invoked for unknown job")
	}
}

func TestExecuteMalformedJobIDIsDropped(t *testing.T) {
	st, ai, fx, _ := newTestSetup()
	exec := newTestExecutor(st, ai, fx)

	msg := models.DispatchMessage{JobID: "not-a-uuid"}
	if err := exec.Execute(context.Background(), msg); err != nil {
		t.Fatalf("malformed job id should ack away, got error: %v", err)
	}
	if ai.detectCalls != 0 {
		t.Fatal("collaborators invoked for malformed job id")
	}
}

func TestExecuteTransientLoadErrorRedelivers(t *testing.T) {
	st, ai, fx, msg := newTestSetup()
	st.getErr = errors.New("store flapping")
	exec := newTestExecutor(st, ai, fx)

	if err := exec.Execute(context.Background(), msg); err == nil {
		t.Fatal("expected error so the message stays unacked")
	}
	if ai.detectCalls != 0 {
		t.Fatal("collaborators invoked while job state was unknown")
	}
}

func TestExecuteStageMarkerFailureDoesNotBlockPipeline(t *testing.T) {
	st, ai, fx, msg := newTestSetup()
	st.updateStageErr = errors.New("diagnostics table unavailable")
	exec := newTestExecutor(st, ai, fx)

	if err := exec.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if st.commits != 1 {
		t.Fatal("pipeline did not complete despite stage marker write failures")
	}
}

func TestExecuteCommitFailureMarksFailed(t *testing.T) {
	st, ai, fx, msg := newTestSetup()
	st.commitErr = errors.New("constraint violation")
	exec := newTestExecutor(st, ai, fx)

	if err := exec.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if st.failedCalls != 1 {
		t.Fatal("commit failure did not mark the job failed")
	}
	if st.failedStage == nil || *st.failedStage != models.StageContentGen {
		t.Fatalf("failed stage = %v, want CONTENT_GEN", st.failedStage)
	}
}

func TestExecuteMarkFailedFailureSurfaces(t *testing.T) {
	st, ai, fx, msg := newTestSetup()
	ai.transcribeErr = errors.New("timeout")
	st.markFailedErr = errors.New("store down")
	exec := newTestExecutor(st, ai, fx)

	if err := exec.Execute(context.Background(), msg); err == nil {
		t.Fatal("expected error when the FAILED state could not be recorded")
	}
}

func TestExecuteFailureMessageIsSanitized(t *testing.T) {
	st, ai, fx, msg := newTestSetup()
	ai.detectErr = errors.New("cannot read /var/lib/vidchemy/tmp/video.mp4 with apikey=sk-12345")
	exec := newTestExecutor(st, ai, fx)

	if err := exec.Execute(context.Background(), msg); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if strings.Contains(st.failedMsg, "/var/lib") || strings.Contains(st.failedMsg, "sk-12345") {
		t.Fatalf("persisted error message leaks internals: %q", st.failedMsg)
	}
}
