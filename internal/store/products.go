package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aayushsingh7/vidchemy/internal/models"
)

// completeJobFn is the Postgres function behind the final commit. PostgREST
// cannot span a transaction across multiple requests, so the product row, the
// image row and the SUCCESS flip happen inside one SQL function (see
// migrations/schema.sql). The function no-ops when the job is already
// terminal, which is what makes queue redelivery safe.
const completeJobFn = "complete_listing_job"

type completeJobParams struct {
	JobID          string   `json:"p_job_id"`
	Title          string   `json:"p_title"`
	Description    string   `json:"p_description"`
	Keywords       []string `json:"p_keywords"`
	BulletPoints   []string `json:"p_bullet_points"`
	ImageLocation  string   `json:"p_image_location"`
	FrameTimestamp float64  `json:"p_frame_timestamp"`
}

// CommitProductResult atomically writes the product, its image, and the
// terminal SUCCESS status. Either all three land or none do. The call goes
// over a direct status-checked request (see Store) so a constraint violation
// or auth failure inside the SQL function surfaces as an error here instead
// of an acked message over a job stuck in PROCESSING.
func (s *Store) CommitProductResult(jobID uuid.UUID, content models.ListingContent, imageLocation string, frameTimestamp float64) error {
	params := completeJobParams{
		JobID:          jobID.String(),
		Title:          content.Title,
		Description:    content.Description,
		Keywords:       content.Keywords,
		BulletPoints:   content.BulletPoints,
		ImageLocation:  imageLocation,
		FrameTimestamp: frameTimestamp,
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal commit params for job %s: %w", jobID, err)
	}

	req, err := http.NewRequest(http.MethodPost, s.rpcURL+"/"+completeJobFn, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build commit request for job %s: %w", jobID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to commit product result for job %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read commit response for job %s: %w", jobID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("failed to commit product result for job %s: postgrest returned status %d: %s", jobID, resp.StatusCode, snippet)
	}
	return nil
}

// productWithImages is the PostgREST embedded-resource shape for the
// success-path status projection.
type productWithImages struct {
	models.Product
	Images []models.ProductImage `json:"product_images"`
}

// GetProductByJobID returns the product and its image for a successful job.
// ErrNotFound when no product exists (job not successful, or unknown).
func (s *Store) GetProductByJobID(jobID uuid.UUID) (*models.Product, *models.ProductImage, error) {
	body, _, err := s.db.From(productsTable).
		Select("*, product_images(*)", "", false).
		Eq("job_id", jobID.String()).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch product for job %s: %w", jobID, err)
	}

	var rows []productWithImages
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal product for job %s: %w", jobID, err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrNotFound
	}

	product := rows[0].Product
	if len(rows[0].Images) == 0 {
		return nil, nil, fmt.Errorf("product %s has no image row", product.ID)
	}
	image := rows[0].Images[0]
	return &product, &image, nil
}
