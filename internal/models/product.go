package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents the structure of a generated product listing in the
// database. Exactly one exists per successful job, written atomically with
// its image by the completion RPC.
type Product struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Keywords     []string  `json:"keywords"`
	BulletPoints []string  `json:"bullet_points"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProductImage represents the single representative frame stored for a
// product.
type ProductImage struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	ImageLocation  string    `json:"image_location"`
	FrameTimestamp float64   `json:"frame_timestamp"` // seconds into the video
	CreatedAt      time.Time `json:"created_at"`
}
