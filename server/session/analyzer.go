package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Akash-Srinivasan/ShotDoctor/server/coach"
	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/pose"
	"github.com/Akash-Srinivasan/ShotDoctor/server/profile"
	"github.com/Akash-Srinivasan/ShotDoctor/server/segmenter"
	"github.com/Akash-Srinivasan/ShotDoctor/server/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoShotsDetected is the user-facing condition for a video that
// contained no recognizable shooting motion. The caller should ask for
// clearer framing, not report a crash.
var ErrNoShotsDetected = errors.New("no shots detected in video")

type Config struct {
	Segmenter       segmenter.Config
	MinVisibility   float64
	ThumbnailHeight int
	MaxWorkers      int
	MaxQueueSize    int
	ShotTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Segmenter:       segmenter.DefaultConfig(),
		MinVisibility:   0.5,
		ThumbnailHeight: 200,
		MaxWorkers:      4,
		MaxQueueSize:    64,
		ShotTimeout:     30 * time.Second,
	}
}

// Stats tracks analyzer throughput for the stats endpoint.
type Stats struct {
	StartTime         time.Time `json:"start_time"`
	SessionsProcessed int64     `json:"sessions_processed"`
	SessionsFailed    int64     `json:"sessions_failed"`
	ShotsDetected     int64     `json:"shots_detected"`
	AverageLatency    float64   `json:"average_latency_ms"`
	QueueSize         int       `json:"queue_size"`
	ActiveWorkers     int       `json:"active_workers"`
}

// Analyzer is the single entry point for turning a pose stream into a
// SessionSummary. Segmentation is one sequential pass; detected shots
// fan out across a bounded worker pool for coaching analysis.
type Analyzer struct {
	model    coach.Model
	registry *profile.Registry
	db       *store.Store
	logger   *zap.Logger
	cfg      Config

	mutex sync.RWMutex
	stats Stats
}

// NewAnalyzer builds an analyzer. The store may be nil when
// persistence is disabled (tests, ephemeral deployments).
func NewAnalyzer(model coach.Model, registry *profile.Registry, db *store.Store, cfg Config, logger *zap.Logger) *Analyzer {
	if cfg.MaxWorkers <= 0 {
		cfg = DefaultConfig()
	}
	return &Analyzer{
		model:    model,
		registry: registry,
		db:       db,
		logger:   logger,
		cfg:      cfg,
		stats:    Stats{StartTime: time.Now(), ActiveWorkers: cfg.MaxWorkers},
	}
}

// SessionOptions carries the per-request parameters of one analysis.
type SessionOptions struct {
	ShootingSide models.ShootingSide
	PlayerID     int64
	Player       *models.PlayerContext
}

// AnalyzeSession consumes the pose stream, segments it into shots,
// scores every shot against the player's personal baseline and returns
// the aggregated summary.
//
// Error policy: an unreadable pose stream fails the whole call; zero
// detected shots returns ErrNoShotsDetected; anything that goes wrong
// for a single shot degrades that shot's record and nothing else.
func (a *Analyzer) AnalyzeSession(ctx context.Context, src pose.FrameSource, opts SessionOptions) (*models.SessionSummary, error) {
	start := time.Now()
	side := opts.ShootingSide
	if side != models.SideLeft {
		side = models.SideRight
	}

	var prof *profile.FormProfile
	if a.registry != nil && opts.PlayerID > 0 {
		prof = a.registry.GetOrCreate(opts.PlayerID)
	}

	calc := pose.NewCalculator(side, a.cfg.MinVisibility)
	seg := segmenter.New(calc, a.cfg.Segmenter, a.logger)
	builder := NewRecordBuilder(calc, a.model, a.cfg.ThumbnailHeight, a.logger)

	queue := newWorkQueue(a.cfg.MaxQueueSize, a.cfg.MaxWorkers, func(job *shotJob) {
		shotCtx, cancel := context.WithTimeout(ctx, a.cfg.ShotTimeout)
		defer cancel()
		record := builder.Build(shotCtx, job, prof, opts.Player)
		job.ResultChan <- &shotResult{Record: record}
	})
	defer queue.Shutdown(30 * time.Second)

	var jobs []*shotJob
	frameCount := 0

	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			a.recordFailure()
			return nil, fmt.Errorf("pose stream failed at frame %d: %w", frameCount, err)
		}
		frameCount++

		interval := seg.Observe(frame)
		if interval == nil {
			continue
		}

		// Capture frames and metrics now, while the interval is still
		// inside the joint-track buffer.
		job := &shotJob{
			ShotNumber: len(jobs) + 1,
			Interval:   *interval,
			Frames:     builder.CaptureFrames(*interval, seg.Frame),
			Metrics:    builder.MeasureShot(*interval, seg.Frame),
			ResultChan: make(chan *shotResult, 1),
			StartTime:  time.Now(),
		}
		jobs = append(jobs, job)

		if !queue.Enqueue(job) {
			// Queue saturated; analyze inline rather than dropping the shot.
			shotCtx, cancel := context.WithTimeout(ctx, a.cfg.ShotTimeout)
			record := builder.Build(shotCtx, job, prof, opts.Player)
			cancel()
			job.ResultChan <- &shotResult{Record: record}
		}

		a.logger.Info("shot detected",
			zap.Int("shot", job.ShotNumber),
			zap.Int("load_frame", interval.LoadFrame),
			zap.Int("release_frame", interval.ReleaseFrame))
	}

	if len(jobs) == 0 {
		a.recordFailure()
		return nil, ErrNoShotsDetected
	}

	records := make([]models.ShotRecord, 0, len(jobs))
	for _, job := range jobs {
		result := <-job.ResultChan
		if result.Error != nil || result.Record == nil {
			// Worker panic: keep the shot with metrics but no verdict.
			a.logger.Error("shot analysis failed", zap.Int("shot", job.ShotNumber),
				zap.Error(result.Error))
			records = append(records, models.ShotRecord{
				ShotNumber:         job.ShotNumber,
				ElbowAngleLoad:     job.Metrics.ElbowAngleLoad,
				ElbowAngleRelease:  job.Metrics.ElbowAngleRelease,
				WristHeightRelease: job.Metrics.WristHeightRelease,
				KneeBendLoad:       job.Metrics.KneeBendLoad,
				Frames:             job.Frames,
				Feedback:           coach.FallbackFeedback,
			})
			continue
		}
		records = append(records, *result.Record)
	}

	summary := Aggregate(records)
	summary.SessionID = uuid.NewString()
	summary.SessionFeedback = a.sessionNarrative(ctx, &summary, opts.Player)

	a.persist(ctx, opts.PlayerID, prof, &summary)
	a.recordSuccess(len(jobs), time.Since(start), queue.Size())

	return &summary, nil
}

// sessionNarrative asks the coaching model for the whole-session
// write-up. The summary survives with a generic line when the call
// fails.
func (a *Analyzer) sessionNarrative(ctx context.Context, summary *models.SessionSummary, player *models.PlayerContext) string {
	feedback := make([]string, 0, len(summary.Shots))
	for _, shot := range summary.Shots {
		feedback = append(feedback, fmt.Sprintf("Shot %d: %s", shot.ShotNumber, shot.Feedback))
	}

	response, err := a.model.SummarizeSession(ctx, &coach.SessionRequest{
		TotalShots:         summary.TotalShots,
		ShotsMade:          summary.ShotsMade,
		ShootingPercentage: summary.ShootingPercentage,
		AverageFormRating:  summary.AverageFormRating,
		ShotFeedback:       feedback,
		Player:             player,
	})
	if err != nil || response == nil || response.SessionFeedback == "" {
		if err != nil {
			a.logger.Warn("Session narrative failed", zap.Error(err))
		}
		return fmt.Sprintf("Session complete: %d/%d made (%.1f%%).",
			summary.ShotsMade, summary.TotalShots, summary.ShootingPercentage)
	}
	return response.SessionFeedback
}

func (a *Analyzer) persist(ctx context.Context, playerID int64, prof *profile.FormProfile, summary *models.SessionSummary) {
	if a.db == nil || playerID <= 0 {
		return
	}
	if err := a.db.SaveSession(ctx, playerID, summary); err != nil {
		a.logger.Error("Failed to persist session", zap.Error(err))
	}
	if prof != nil {
		if err := a.db.SaveProfile(ctx, prof.Snapshot()); err != nil {
			a.logger.Error("Failed to persist profile", zap.Error(err))
		}
	}
}

func (a *Analyzer) recordSuccess(shots int, latency time.Duration, queueSize int) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.stats.SessionsProcessed++
	a.stats.ShotsDetected += int64(shots)
	a.stats.QueueSize = queueSize

	current := float64(latency.Milliseconds())
	if a.stats.AverageLatency == 0 {
		a.stats.AverageLatency = current
	} else {
		alpha := 0.1
		a.stats.AverageLatency = alpha*current + (1-alpha)*a.stats.AverageLatency
	}
}

func (a *Analyzer) recordFailure() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.stats.SessionsFailed++
}

// GetStats returns a copy of the analyzer's counters.
func (a *Analyzer) GetStats() Stats {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.stats
}

// Registry exposes the profile registry for inspection endpoints.
func (a *Analyzer) Registry() *profile.Registry { return a.registry }

// Config returns the analyzer configuration in use.
func (a *Analyzer) Config() Config { return a.cfg }
