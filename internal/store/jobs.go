package store

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	postgrest "github.com/supabase-community/postgrest-go"

	"github.com/aayushsingh7/vidchemy/internal/models"
)

const (
	jobsTable     = "jobs"
	productsTable = "products"
)

// Store persists jobs, products and product images through PostgREST.
//
// Row reads and writes go through the postgrest query builder. The commit RPC
// does not: the builder's Rpc records failures in a mutable field on the
// shared client instead of returning them, so the RPC gets its own
// status-checked HTTP request.
type Store struct {
	db *postgrest.Client

	rpcURL     string
	serviceKey string
	httpClient *http.Client
}

// New wraps an initialized PostgREST client. supabaseURL and serviceKey back
// the direct RPC request used for the final commit.
func New(db *postgrest.Client, supabaseURL, serviceKey string) *Store {
	return &Store{
		db:         db,
		rpcURL:     strings.TrimRight(supabaseURL, "/") + "/rest/v1/rpc",
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateJob inserts a new job record. The caller fills identity and input
// fields; status starts at PROCESSING.
func (s *Store) CreateJob(job models.Job) (uuid.UUID, error) {
	now := time.Now().UTC()
	job.Status = models.StatusProcessing
	job.CreatedAt = now
	job.UpdatedAt = now

	var inserted []models.Job
	_, err := s.db.From(jobsTable).
		Insert(job, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert job record: %w", err)
	}
	if len(inserted) == 0 {
		return uuid.Nil, fmt.Errorf("no record returned after insert, job_id: %s", job.ID)
	}
	return inserted[0].ID, nil
}

// GetJob fetches a single job by id. Returns ErrNotFound for unknown ids.
func (s *Store) GetJob(id uuid.UUID) (*models.Job, error) {
	body, _, err := s.db.From(jobsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %s: %w", id, err)
	}

	var jobs []models.Job
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	if len(jobs) == 0 {
		return nil, ErrNotFound
	}
	return &jobs[0], nil
}

// UpdateStage records the stage a job is about to enter. The PROCESSING
// filter makes redelivered writes against terminal jobs a no-op instead of a
// corruption.
func (s *Store) UpdateStage(id uuid.UUID, stage models.JobStage) error {
	update := map[string]interface{}{
		"stage":      stage,
		"updated_at": time.Now().UTC(),
	}
	_, _, err := s.db.From(jobsTable).
		Update(update, "", "").
		Eq("id", id.String()).
		Eq("status", string(models.StatusProcessing)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update stage for job %s: %w", id, err)
	}
	return nil
}

// MarkFailed flips a job to FAILED with the stage it died in and a sanitized
// message. Stage is nil when the job never reached the pipeline (enqueue
// failures). Like UpdateStage it only touches jobs still PROCESSING, so a
// redelivery racing a terminal state cannot flip it back.
func (s *Store) MarkFailed(id uuid.UUID, stage *models.JobStage, message string) error {
	update := map[string]interface{}{
		"status":        models.StatusFailed,
		"error_message": message,
		"updated_at":    time.Now().UTC(),
	}
	if stage != nil {
		update["stage"] = *stage
	}
	_, _, err := s.db.From(jobsTable).
		Update(update, "", "").
		Eq("id", id.String()).
		Eq("status", string(models.StatusProcessing)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	return nil
}
