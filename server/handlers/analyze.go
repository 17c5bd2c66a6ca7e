package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Akash-Srinivasan/ShotDoctor/server/cache"
	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/pose"
	"github.com/Akash-Srinivasan/ShotDoctor/server/session"
)

// HealthChecker is satisfied by the pose engine client; fakes in tests
// skip it by passing nil.
type HealthChecker interface {
	HealthCheck() error
}

type AnalyzeHandler struct {
	engine   pose.Engine
	analyzer *session.Analyzer
	cache    cache.Cache
	health   HealthChecker
	maxVideo int64
	logger   *zap.Logger

	statsMu sync.Mutex
	stats   SystemStats
}

type SystemStats struct {
	TotalRequests  int64     `json:"total_requests"`
	ProcessedOK    int64     `json:"processed_ok"`
	ProcessedError int64     `json:"processed_error"`
	CacheHits      int64     `json:"cache_hits"`
	LastUpdated    time.Time `json:"last_updated"`
}

func NewAnalyzeHandler(engine pose.Engine, analyzer *session.Analyzer, resultCache cache.Cache, health HealthChecker, maxVideo int64, logger *zap.Logger) *AnalyzeHandler {
	if maxVideo <= 0 {
		maxVideo = 100 * 1024 * 1024
	}
	return &AnalyzeHandler{
		engine:   engine,
		analyzer: analyzer,
		cache:    resultCache,
		health:   health,
		maxVideo: maxVideo,
		logger:   logger,
		stats:    SystemStats{LastUpdated: time.Now()},
	}
}

func (h *AnalyzeHandler) recordRequest() {
	h.statsMu.Lock()
	h.stats.TotalRequests++
	h.statsMu.Unlock()
}

func (h *AnalyzeHandler) recordError() {
	h.statsMu.Lock()
	h.stats.ProcessedError++
	h.statsMu.Unlock()
}

func (h *AnalyzeHandler) recordSuccess(cacheHit bool) {
	h.statsMu.Lock()
	h.stats.ProcessedOK++
	if cacheHit {
		h.stats.CacheHits++
	}
	h.statsMu.Unlock()
}

func (h *AnalyzeHandler) statsSnapshot() SystemStats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	h.stats.LastUpdated = time.Now()
	return h.stats
}

// AnalyzeVideo accepts a multipart video upload plus player fields and
// returns the full session summary. Identical uploads with identical
// parameters are served from the result cache.
func (h *AnalyzeHandler) AnalyzeVideo(c *gin.Context) {
	startTime := time.Now()
	h.recordRequest()

	file, header, err := c.Request.FormFile("video")
	if err != nil {
		h.logger.Error("Failed to get uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file uploaded"})
		h.recordError()
		return
	}
	defer file.Close()

	if !isValidVideoFile(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		h.recordError()
		return
	}

	if header.Size > h.maxVideo {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("File too large (max %d bytes)", h.maxVideo),
		})
		h.recordError()
		return
	}

	videoData, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		h.recordError()
		return
	}

	opts, err := parseSessionOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		h.recordError()
		return
	}

	cacheKey := cache.GenerateCacheKey(string(videoData),
		string(opts.ShootingSide), strconv.FormatInt(opts.PlayerID, 10))
	if h.cache != nil {
		if cached, err := h.cache.Get(c.Request.Context(), cacheKey); err == nil {
			h.recordSuccess(true)
			c.JSON(http.StatusOK, gin.H{
				"summary": cached,
				"cached":  true,
			})
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	src, err := h.engine.StreamPoses(c.Request.Context(), bytes.NewReader(videoData), contentType)
	if err != nil {
		h.logger.Error("Pose engine unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Pose estimation service unavailable"})
		h.recordError()
		return
	}
	defer src.Close()

	summary, err := h.analyzer.AnalyzeSession(c.Request.Context(), src, opts)
	if err != nil {
		h.recordError()
		if errors.Is(err, session.ErrNoShotsDetected) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "No shots detected. Make sure the shooter's full body is visible.",
			})
			return
		}
		h.logger.Error("Session analysis failed",
			zap.Error(err), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Analysis failed"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request.Context(), cacheKey, summary); err != nil {
			h.logger.Warn("Failed to cache session summary", zap.Error(err))
		}
	}

	h.recordSuccess(false)
	c.JSON(http.StatusOK, gin.H{
		"summary":         summary,
		"cached":          false,
		"processing_time": time.Since(startTime).Milliseconds(),
	})
}

// GetStats reports handler counters, analyzer throughput and cache
// occupancy.
func (h *AnalyzeHandler) GetStats(c *gin.Context) {
	stats := h.statsSnapshot()

	var successRate float64
	if stats.TotalRequests > 0 {
		successRate = float64(stats.ProcessedOK) / float64(stats.TotalRequests) * 100
	}

	analyzerStats := h.analyzer.GetStats()

	response := gin.H{
		"system":   stats,
		"analyzer": analyzerStats,
		"metrics": gin.H{
			"success_rate":   successRate,
			"uptime_seconds": time.Since(analyzerStats.StartTime).Seconds(),
		},
	}

	if h.cache != nil {
		if cacheStats, err := h.cache.GetStats(c.Request.Context()); err == nil {
			response["cache"] = cacheStats
		}
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck reports service liveness plus the pose engine's
// reachability.
func (h *AnalyzeHandler) HealthCheck(c *gin.Context) {
	poseStatus := "healthy"
	status := http.StatusOK

	if h.health != nil {
		if err := h.health.HealthCheck(); err != nil {
			poseStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, gin.H{
		"status":      "healthy",
		"pose_engine": poseStatus,
		"timestamp":   time.Now().Unix(),
		"service":     "shotdoctor",
	})
}

func parseSessionOptions(c *gin.Context) (session.SessionOptions, error) {
	opts := session.SessionOptions{ShootingSide: models.SideRight}

	switch side := c.PostForm("shooting_side"); side {
	case "", "right":
	case "left":
		opts.ShootingSide = models.SideLeft
	default:
		return opts, fmt.Errorf("invalid shooting_side %q", side)
	}

	if raw := c.PostForm("player_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return opts, fmt.Errorf("invalid player_id %q", raw)
		}
		opts.PlayerID = id
	}

	player := models.PlayerContext{
		SkillLevel:  c.PostForm("skill_level"),
		WorkingOn:   c.PostForm("working_on"),
		Limitations: c.PostForm("limitations"),
	}
	if raw := c.PostForm("height_inches"); raw != "" {
		height, err := strconv.Atoi(raw)
		if err != nil || height <= 0 {
			return opts, fmt.Errorf("invalid height_inches %q", raw)
		}
		player.HeightInches = height
	}
	if player != (models.PlayerContext{}) {
		opts.Player = &player
	}

	return opts, nil
}

func isValidVideoFile(filename string) bool {
	validExtensions := []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}

	filename = strings.ToLower(filename)
	for _, ext := range validExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}
