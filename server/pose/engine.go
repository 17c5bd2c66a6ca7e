package pose

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"go.uber.org/zap"
)

// FrameSource yields PoseFrames in temporal order. Next returns
// io.EOF when the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (*models.PoseFrame, error)
	Close() error
}

// Engine produces a pose stream from an uploaded video. The concrete
// estimator runs out of process; the core only sees its frame output.
type Engine interface {
	StreamPoses(ctx context.Context, video io.Reader, contentType string) (FrameSource, error)
}

type ClientConfig struct {
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
	HealthCheckInterval time.Duration
}

// Client talks to the pose-estimation sidecar over HTTP. The sidecar
// answers a video upload with an NDJSON stream of PoseFrames.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	config     *ClientConfig
}

func NewClient(baseURL string, cfg *ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = &ClientConfig{
			Timeout:             10 * time.Minute,
			MaxRetries:          3,
			RetryDelay:          time.Second,
			HealthCheckInterval: 30 * time.Second,
		}
	}

	client := &Client{
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

	if err := client.HealthCheck(); err != nil {
		logger.Warn("Pose engine not available at startup", zap.Error(err))
	}

	go client.startHealthChecker()

	return client, nil
}

// StreamPoses uploads the video and returns a FrameSource decoding the
// engine's NDJSON response. The body stays open until the source is
// closed.
func (c *Client) StreamPoses(ctx context.Context, video io.Reader, contentType string) (FrameSource, error) {
	url := fmt.Sprintf("%s/poses", c.baseURL)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, video)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType == "" {
		contentType = "video/mp4"
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/x-ndjson")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("pose engine request failed: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		response.Body.Close()
		return nil, fmt.Errorf("pose engine error (status %d): %s", response.StatusCode, string(body))
	}

	return &streamSource{
		body:    response.Body,
		scanner: newFrameScanner(response.Body),
	}, nil
}

type streamSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	last    int
}

func newFrameScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Frames carrying an inline JPEG can exceed the default token size.
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return scanner
}

func (s *streamSource) Next(ctx context.Context) (*models.PoseFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame models.PoseFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, fmt.Errorf("malformed pose frame: %w", err)
		}
		if frame.Index < s.last {
			return nil, fmt.Errorf("pose stream out of order: frame %d after %d", frame.Index, s.last)
		}
		s.last = frame.Index
		return &frame, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("pose stream read failed: %w", err)
	}
	return nil, io.EOF
}

func (s *streamSource) Close() error {
	return s.body.Close()
}

func (c *Client) HealthCheck() error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	response, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("pose engine unhealthy (status %d)", response.StatusCode)
	}

	return nil
}

func (c *Client) startHealthChecker() {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.HealthCheck(); err != nil {
			c.logger.Error("Pose engine health check failed", zap.Error(err))
		} else {
			c.logger.Debug("Pose engine health check passed")
		}
	}
}

// SliceSource adapts an in-memory frame slice to FrameSource. Used by
// tests and by the live websocket path.
type SliceSource struct {
	frames []models.PoseFrame
	pos    int
}

func NewSliceSource(frames []models.PoseFrame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next(ctx context.Context) (*models.PoseFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	frame := &s.frames[s.pos]
	s.pos++
	return frame, nil
}

func (s *SliceSource) Close() error { return nil }

var _ FrameSource = (*SliceSource)(nil)
var _ Engine = (*Client)(nil)
