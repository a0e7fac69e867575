package handlers

import (
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aayushsingh7/vidchemy/internal/models"
)

// ListingStore defines the store operations handlers expect. Narrowed to an
// interface so handler tests can run against fakes.
type ListingStore interface {
	CreateJob(job models.Job) (uuid.UUID, error)
	GetJob(id uuid.UUID) (*models.Job, error)
	MarkFailed(id uuid.UUID, stage *models.JobStage, message string) error
	GetProductByJobID(jobID uuid.UUID) (*models.Product, *models.ProductImage, error)
}

// Dispatcher enqueues a job for the processing workers.
type Dispatcher interface {
	PublishJob(msg models.DispatchMessage) error
}

// VideoStorage stores uploaded source videos.
type VideoStorage interface {
	UploadVideo(key string, data io.Reader) (string, error)
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Store   ListingStore
	Queue   Dispatcher
	Storage VideoStorage
	Logger  *logrus.Logger
}

// NewApplicationHandler creates a new ApplicationHandler with the given
// dependencies.
func NewApplicationHandler(store ListingStore, queue Dispatcher, storage VideoStorage, logger *logrus.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		Store:   store,
		Queue:   queue,
		Storage: storage,
		Logger:  logger,
	}
}
