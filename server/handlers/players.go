package handlers

import (
	"crypto/md5"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Akash-Srinivasan/ShotDoctor/server/community"
	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/profile"
	"github.com/Akash-Srinivasan/ShotDoctor/server/store"
)

type PlayerHandler struct {
	db       *store.Store
	registry *profile.Registry
	logger   *zap.Logger
}

type CreatePlayerRequest struct {
	Name         string `json:"name" binding:"required"`
	SkillLevel   string `json:"skill_level"`
	WorkingOn    string `json:"working_on"`
	Limitations  string `json:"limitations"`
	HeightInches int    `json:"height_inches"`
}

func NewPlayerHandler(db *store.Store, registry *profile.Registry, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{db: db, registry: registry, logger: logger}
}

func (h *PlayerHandler) CreatePlayer(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence disabled"})
		return
	}

	var request CreatePlayerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	id, err := h.db.CreatePlayer(c.Request.Context(), request.Name, models.PlayerContext{
		SkillLevel:   request.SkillLevel,
		WorkingOn:    request.WorkingOn,
		Limitations:  request.Limitations,
		HeightInches: request.HeightInches,
	})
	if err != nil {
		h.logger.Error("Failed to create player", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create player"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"player_id": id})
}

func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence disabled"})
		return
	}

	id, err := parsePlayerID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player id"})
		return
	}

	player, err := h.db.GetPlayer(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch player", zap.Int64("player_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch player"})
		return
	}
	if player == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}

	c.JSON(http.StatusOK, player)
}

// GetProfile reports the player's per-metric running statistics. A
// profile below the minimum sample count is returned with a flag so
// clients know comparisons are not yet meaningful.
func (h *PlayerHandler) GetProfile(c *gin.Context) {
	id, err := parsePlayerID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player id"})
		return
	}

	prof := h.registry.Get(id)
	if prof == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No profile for player"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":     prof.Snapshot(),
		"established": prof.SampleCount() >= profile.MinSamples,
	})
}

// GetPatterns reports the player's historical tendencies: averages over
// made shots, miss-type distribution and recent session results.
func (h *PlayerHandler) GetPatterns(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence disabled"})
		return
	}

	id, err := parsePlayerID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player id"})
		return
	}

	patterns, err := h.db.GetPlayerPatterns(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch player patterns", zap.Int64("player_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch patterns"})
		return
	}

	c.JSON(http.StatusOK, patterns)
}

// GetComparison compares the player against anonymized community
// segments: same height band, skill level and accuracy band. Players
// with no segment data get an unavailable report, not an error.
func (h *PlayerHandler) GetComparison(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence disabled"})
		return
	}

	id, err := parsePlayerID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player id"})
		return
	}

	player, err := h.db.GetPlayer(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch player", zap.Int64("player_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch player"})
		return
	}
	if player == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}

	patterns, err := h.db.GetPlayerPatterns(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch player patterns", zap.Int64("player_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch patterns"})
		return
	}

	metrics := community.UserMetrics{}
	if patterns.MakeAverages != nil {
		metrics.ElbowAngleLoad = patterns.MakeAverages.ElbowAngleLoad
		metrics.WristHeightRelease = patterns.MakeAverages.WristHeightRelease
	}
	if player.TotalShots > 0 {
		pct := float64(player.TotalMakes) / float64(player.TotalShots) * 100
		metrics.MakePct = &pct
	}

	segments, err := h.db.ComparisonSegments(c.Request.Context(),
		player.HeightInches, player.SkillLevel, metrics.MakePct)
	if err != nil {
		h.logger.Error("Failed to fetch comparison segments", zap.Int64("player_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comparison"})
		return
	}

	c.JSON(http.StatusOK, community.BuildReport(metrics, segments))
}

type ContributeRequest struct {
	Shots int `json:"shots"`
}

// Contribute records an opt-in contribution of the player's session
// data to the community aggregates. Only a hash of the player id is
// stored; the aggregation job folds the data in offline.
func (h *PlayerHandler) Contribute(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence disabled"})
		return
	}

	id, err := parsePlayerID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player id"})
		return
	}

	player, err := h.db.GetPlayer(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch player", zap.Int64("player_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch player"})
		return
	}
	if player == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}

	var request ContributeRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Shots < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	userHash := fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("player:%d", id))))
	if err := h.db.RecordContribution(c.Request.Context(), userHash, 1, request.Shots); err != nil {
		h.logger.Error("Failed to record contribution", zap.Int64("player_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record contribution"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"contributed": true})
}

func parsePlayerID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
