package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/profile"
	"go.uber.org/zap"
)

// FallbackFeedback fills a shot's feedback when the coaching model is
// unreachable or returns garbage. The shot is still recorded.
const FallbackFeedback = "Coaching feedback unavailable for this shot."

// ShotRequest is the per-shot payload sent to the coaching model:
// the sampled motion frames, the measured metrics, and the player's
// personal deviations when the profile has enough data.
type ShotRequest struct {
	ShotNumber int                   `json:"shot_number"`
	Frames     []models.ShotFrame    `json:"frames"`
	Metrics    models.MetricVector   `json:"metrics"`
	Deviations []profile.Deviation   `json:"deviations,omitempty"`
	Player     *models.PlayerContext `json:"player,omitempty"`
}

// ShotResponse is the model's verdict. Every field is nullable; a
// malformed response degrades to all-null, never to a session error.
type ShotResponse struct {
	Made       *bool            `json:"made"`
	MissType   *models.MissType `json:"miss_type"`
	FormRating *int             `json:"form_rating"`
	Feedback   string           `json:"feedback"`
	KeyIssue   *string          `json:"key_issue"`
	QuickCue   *string          `json:"quick_cue"`
}

// SessionRequest asks for a whole-session narrative once all shots are
// analyzed.
type SessionRequest struct {
	TotalShots         int                   `json:"total_shots"`
	ShotsMade          int                   `json:"shots_made"`
	ShootingPercentage float64               `json:"shooting_percentage"`
	AverageFormRating  *float64              `json:"average_form_rating"`
	ShotFeedback       []string              `json:"shot_feedback"`
	Player             *models.PlayerContext `json:"player,omitempty"`
}

type SessionResponse struct {
	SessionFeedback string `json:"session_feedback"`
}

// Model is the capability interface the analyzer depends on, so tests
// substitute a deterministic fake with no network.
type Model interface {
	AnalyzeShot(ctx context.Context, req *ShotRequest) (*ShotResponse, error)
	SummarizeSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error)
}

type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client calls the external vision-language coaching service over
// HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     *ClientConfig
}

func NewClient(baseURL string, cfg *ClientConfig, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = &ClientConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelay: time.Second,
		}
	}
	return &Client{
		baseURL: baseURL,
		logger:  logger,
		config:  cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: true,
			},
		},
	}
}

func (c *Client) AnalyzeShot(ctx context.Context, req *ShotRequest) (*ShotResponse, error) {
	var response ShotResponse
	if err := c.post(ctx, "/coach/shot", req, &response); err != nil {
		return nil, err
	}
	if response.FormRating != nil && (*response.FormRating < 1 || *response.FormRating > 10) {
		c.logger.Warn("Coach returned out-of-range form rating",
			zap.Int("form_rating", *response.FormRating))
		response.FormRating = nil
	}
	return &response, nil
}

func (c *Client) SummarizeSession(ctx context.Context, req *SessionRequest) (*SessionResponse, error) {
	var response SessionResponse
	if err := c.post(ctx, "/coach/session", req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest any) error {
	requestData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying coach request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		lastErr = c.execute(ctx, path, requestData, dest)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("coach request failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

func (c *Client) execute(ctx context.Context, path string, body []byte, dest any) error {
	url := c.baseURL + path
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return fmt.Errorf("coach service error (status %d): %s", response.StatusCode, string(bodyBytes))
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(StripCodeFence(raw), dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StripCodeFence removes a surrounding markdown code fence from a
// model response body. Language-model backends routinely wrap JSON in
// ```json blocks.
func StripCodeFence(raw []byte) []byte {
	text := strings.TrimSpace(string(raw))
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
	} else {
		return raw
	}
	if end := strings.Index(text, "```"); end >= 0 {
		text = text[:end]
	}
	return []byte(strings.TrimSpace(text))
}

var _ Model = (*Client)(nil)
