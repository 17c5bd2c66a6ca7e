package cache

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"time"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores finished session summaries keyed by video fingerprint,
// so re-uploading the same clip skips segmentation and coaching calls.
type Cache interface {
	Set(ctx context.Context, key string, summary *models.SessionSummary) error

	Get(ctx context.Context, key string) (*models.SessionSummary, error)

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	SetWithTTL(ctx context.Context, key string, summary *models.SessionSummary, ttl time.Duration) error

	GetStats(ctx context.Context) (*CacheStats, error)

	Close() error
}

type CacheStats struct {
	Connected bool   `json:"connected"`
	Info      string `json:"info"`
}

// GenerateCacheKey fingerprints the analysis request: video bytes plus
// the request parameters that change the result.
func GenerateCacheKey(components ...string) string {
	h := md5.New()
	for _, component := range components {
		h.Write([]byte(component))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
