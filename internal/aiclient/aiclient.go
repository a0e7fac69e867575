// Package aiclient talks to the AI analysis service over HTTP JSON. One
// endpoint per delegated stage: detection, transcription, moment selection
// and listing generation. The client reports errors and structurally empty
// responses; judging answer quality is not its job.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aayushsingh7/vidchemy/internal/models"
)

// AIClient wraps the HTTP client for the AI service.
type AIClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

// NewAIClient creates and returns a new AIClient. Per-call deadlines come
// from the caller's context; the transport timeout here is a backstop.
func NewAIClient(baseURL string, log *logrus.Logger) *AIClient {
	return &AIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		log:        log,
	}
}

// Close releases idle connections.
func (c *AIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type detectRequest struct {
	VideoLocation string `json:"video_location"`
}

type detectResponse struct {
	Detections []models.Detection `json:"detections"`
}

// DetectObjects runs object/label detection over the whole video.
func (c *AIClient) DetectObjects(ctx context.Context, videoLocation string) ([]models.Detection, error) {
	var resp detectResponse
	if err := c.postJSON(ctx, "/v1/detect", detectRequest{VideoLocation: videoLocation}, &resp); err != nil {
		return nil, err
	}
	return resp.Detections, nil
}

type transcribeRequest struct {
	VideoLocation string `json:"video_location"`
}

// TranscribeAudio runs speech-to-text over the video's audio track.
func (c *AIClient) TranscribeAudio(ctx context.Context, videoLocation string) (*models.Transcript, error) {
	var resp models.Transcript
	if err := c.postJSON(ctx, "/v1/transcribe", transcribeRequest{VideoLocation: videoLocation}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type selectMomentRequest struct {
	Detections []models.Detection `json:"detections"`
	Transcript *models.Transcript `json:"transcript"`
	UserHint   string             `json:"user_hint"`
}

// SelectMoment asks the reasoning service for the single timestamp that best
// shows the hinted product.
func (c *AIClient) SelectMoment(ctx context.Context, detections []models.Detection, transcript *models.Transcript, userHint string) (*models.MomentSelection, error) {
	var resp models.MomentSelection
	req := selectMomentRequest{Detections: detections, Transcript: transcript, UserHint: userHint}
	if err := c.postJSON(ctx, "/v1/select-moment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type generateListingRequest struct {
	ImageLocation  string `json:"image_location"`
	UserHint       string `json:"user_hint"`
	TranscriptText string `json:"transcript_text,omitempty"`
}

// GenerateListing produces the listing copy from the chosen frame and hint.
func (c *AIClient) GenerateListing(ctx context.Context, imageLocation, userHint, transcriptText string) (*models.ListingContent, error) {
	var resp models.ListingContent
	req := generateListingRequest{ImageLocation: imageLocation, UserHint: userHint, TranscriptText: transcriptText}
	if err := c.postJSON(ctx, "/v1/generate-listing", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *AIClient) postJSON(ctx context.Context, path string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.WithField("endpoint", path).Debug("Calling AI service")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("AI service call %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read AI service response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("AI service %s returned status %d: %s", path, resp.StatusCode, snippet)
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("failed to unmarshal AI service response from %s: %w", path, err)
	}
	return nil
}
