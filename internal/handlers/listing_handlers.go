package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aayushsingh7/vidchemy/internal/models"
	"github.com/aayushsingh7/vidchemy/internal/utils"
)

// CreateListingRequest defines the non-file fields of the multipart upload.
type CreateListingRequest struct {
	UserID   string `form:"user_id" validate:"required,uuid4"`
	UserHint string `form:"hint" validate:"required,min=2,max=500"`
}

var validate = validator.New()

var allowedVideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

// CreateListing ingests a video plus hint and kicks off the async pipeline.
// POST /api/v1/listings
//
// The request returns as soon as the video is stored, the job row exists and
// the dispatch message is enqueued; all analysis happens in the workers.
func (h *ApplicationHandler) CreateListing(c *fiber.Ctx) error {
	payload := CreateListingRequest{
		UserID:   c.FormValue("user_id"),
		UserHint: strings.TrimSpace(c.FormValue("hint")),
	}
	if err := validate.Struct(payload); err != nil {
		h.Logger.Infof("Rejected listing request: %v", err)
		return utils.RespondWithError(c, fiber.StatusBadRequest,
			fmt.Sprintf("Validation failed: %s", strings.Join(utils.FormatValidationErrors(err), "; ")))
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid user_id format")
	}

	file, err := c.FormFile("video")
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Missing 'video' file field")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedVideoExtensions[ext] {
		return utils.RespondWithError(c, fiber.StatusBadRequest,
			fmt.Sprintf("Unsupported video format %q", ext))
	}

	fileHandle, err := file.Open()
	if err != nil {
		h.Logger.Errorf("Error opening uploaded file: %v", err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not read uploaded file")
	}
	defer fileHandle.Close()

	jobID := uuid.New()
	storageKey := fmt.Sprintf("%s/%s%s", userID, jobID, ext)

	videoLocation, err := h.Storage.UploadVideo(storageKey, fileHandle)
	if err != nil {
		h.Logger.Errorf("Error storing video for job %s: %v", jobID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not store uploaded video")
	}

	job := models.Job{
		ID:            jobID,
		UserID:        userID,
		VideoLocation: videoLocation,
		UserHint:      payload.UserHint,
	}
	if _, err := h.Store.CreateJob(job); err != nil {
		h.Logger.Errorf("Error creating job record %s: %v", jobID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not create processing job")
	}

	msg := models.DispatchMessage{
		JobID:         jobID.String(),
		VideoLocation: videoLocation,
		UserHint:      payload.UserHint,
		HappenedAt:    time.Now().Unix(),
	}
	if err := h.Queue.PublishJob(msg); err != nil {
		// The job row exists but no worker will ever see it; fail it so the
		// client isn't left polling a job that cannot progress.
		h.Logger.Errorf("Error enqueueing job %s: %v", jobID, err)
		if mfErr := h.Store.MarkFailed(jobID, nil, "failed to enqueue processing job"); mfErr != nil {
			h.Logger.Errorf("Additionally failed to mark job %s failed: %v", jobID, mfErr)
		}
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not enqueue processing job")
	}

	h.Logger.Infof("Accepted listing job %s for user %s", jobID, userID)
	return utils.RespondWithJSON(c, fiber.StatusAccepted, fiber.Map{
		"job_id": jobID,
		"status": models.StatusProcessing,
	})
}
