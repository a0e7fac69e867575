// Package frames implements the frame-extraction collaborator: it
// materializes a stored video into local scratch space, probes its duration,
// cuts single frames with ffmpeg and pushes them back to blob storage.
package frames

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aayushsingh7/vidchemy/internal/ffmpeg"
	"github.com/aayushsingh7/vidchemy/internal/pipeline"
)

// BlobStore is the slice of blob storage the extractor needs.
type BlobStore interface {
	DownloadVideo(key string) ([]byte, error)
	UploadImage(key string, data io.Reader) (string, error)
}

// Extractor opens frame sessions backed by a local work directory.
type Extractor struct {
	storage BlobStore
	workDir string
}

func NewExtractor(storage BlobStore, workDir string) *Extractor {
	return &Extractor{storage: storage, workDir: workDir}
}

// Open downloads the video into scratch space and probes its duration. The
// returned session owns the scratch directory until Close.
func (e *Extractor) Open(ctx context.Context, videoLocation string) (pipeline.FrameSession, error) {
	dir := filepath.Join(e.workDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	data, err := e.storage.DownloadVideo(videoLocation)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	videoPath := filepath.Join(dir, "source"+filepath.Ext(videoLocation))
	if err := os.WriteFile(videoPath, data, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write video to work dir: %w", err)
	}

	duration, err := ffmpeg.GetVideoDuration(ctx, videoPath)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &session{
		storage:   e.storage,
		dir:       dir,
		videoPath: videoPath,
		duration:  duration.Seconds(),
	}, nil
}

type session struct {
	storage   BlobStore
	dir       string
	videoPath string
	duration  float64
}

func (s *session) DurationSeconds() float64 { return s.duration }

// ExtractFrame cuts the frame at atSeconds, uploads it and returns its
// storage location.
func (s *session) ExtractFrame(ctx context.Context, atSeconds float64) (string, error) {
	framePath := filepath.Join(s.dir, "frame.jpg")
	if err := ffmpeg.ExtractFrame(ctx, s.videoPath, framePath, atSeconds); err != nil {
		return "", err
	}

	frameData, err := os.ReadFile(framePath)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted frame: %w", err)
	}

	key := fmt.Sprintf("frames/%s.jpg", uuid.NewString())
	location, err := s.storage.UploadImage(key, bytes.NewReader(frameData))
	if err != nil {
		return "", err
	}
	return location, nil
}

func (s *session) Close() error {
	return os.RemoveAll(s.dir)
}
