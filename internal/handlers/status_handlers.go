package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aayushsingh7/vidchemy/internal/models"
	"github.com/aayushsingh7/vidchemy/internal/store"
	"github.com/aayushsingh7/vidchemy/internal/utils"
)

// StatusResponse is the client-facing projection of a job record.
type StatusResponse struct {
	JobID   string           `json:"job_id"`
	Status  models.JobStatus `json:"status"`
	Stage   *models.JobStage `json:"stage,omitempty"`
	Error   *string          `json:"error,omitempty"`
	Product *ProductResponse `json:"product,omitempty"`
}

// ProductResponse is the listing payload returned once a job succeeds.
type ProductResponse struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Keywords       []string `json:"keywords"`
	BulletPoints   []string `json:"bullet_points"`
	ImageLocation  string   `json:"image_location"`
	FrameTimestamp float64  `json:"frame_timestamp"`
}

// GetListingStatus answers the client polling loop with a single job lookup,
// joining the product only once the job has succeeded.
// GET /api/v1/listings/:jobId/status
func (h *ApplicationHandler) GetListingStatus(c *fiber.Ctx) error {
	jobIDStr := c.Params("jobId")
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid job ID format")
	}

	job, err := h.Store.GetJob(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.RespondWithError(c, fiber.StatusNotFound, "Job not found")
		}
		h.Logger.Errorf("Error fetching job %s: %v", jobID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve job status")
	}

	resp := StatusResponse{
		JobID:  job.ID.String(),
		Status: job.Status,
		Stage:  job.Stage,
		Error:  job.ErrorMessage,
	}

	if job.Status == models.StatusSuccess {
		product, image, err := h.Store.GetProductByJobID(jobID)
		if err != nil {
			h.Logger.Errorf("Error fetching product for successful job %s: %v", jobID, err)
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not retrieve listing result")
		}
		resp.Product = &ProductResponse{
			Title:          product.Title,
			Description:    product.Description,
			Keywords:       product.Keywords,
			BulletPoints:   product.BulletPoints,
			ImageLocation:  image.ImageLocation,
			FrameTimestamp: image.FrameTimestamp,
		}
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, resp)
}
