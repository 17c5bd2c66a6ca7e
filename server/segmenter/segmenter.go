package segmenter

import (
	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/pose"
	"go.uber.org/zap"
)

// State is the segmenter's detection phase. Transitions:
// Searching → ReleaseCandidate (release condition holds) →
// Cooldown (interval emitted) → Searching (refractory period over).
type State int

const (
	Searching State = iota
	ReleaseCandidate
	Cooldown
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case ReleaseCandidate:
		return "release_candidate"
	case Cooldown:
		return "cooldown"
	}
	return "unknown"
}

type Config struct {
	// ReleaseAngle is the elbow extension threshold (degrees) that,
	// together with the wrist above the shoulder, marks a release.
	ReleaseAngle float64
	// LookBack bounds the backward search for the load point.
	LookBack int
	// CooldownFrames is the refractory period after a detection, so a
	// follow-through cannot re-trigger the same shot.
	CooldownFrames int
	// StabilityFrames is how many consecutive frames of good joint
	// visibility are required before a release may fire.
	StabilityFrames int
	// BufferSize bounds the joint-track buffer.
	BufferSize int
}

func DefaultConfig() Config {
	return Config{
		ReleaseAngle:    155,
		LookBack:        60,
		CooldownFrames:  45,
		StabilityFrames: 8,
		BufferSize:      180,
	}
}

// trackedFrame is one joint-track buffer entry: the frame plus its
// derived elbow angle (nil when the arm was occluded).
type trackedFrame struct {
	frame      *models.PoseFrame
	elbowAngle *float64
}

// Segmenter walks a pose stream in order and emits ShotIntervals. It
// detects the unambiguous release condition first and then searches
// backward for the load point; forward-only threshold detection cannot
// tell a shot's load from a dribble's low-elbow posture.
type Segmenter struct {
	calc   *pose.Calculator
	cfg    Config
	logger *zap.Logger

	state     State
	buffer    []trackedFrame
	offset    int // absolute frame index of buffer[0]
	stability int
	cooldown  int
}

func New(calc *pose.Calculator, cfg Config, logger *zap.Logger) *Segmenter {
	if cfg.BufferSize <= 0 {
		cfg = DefaultConfig()
	}
	return &Segmenter{
		calc:   calc,
		cfg:    cfg,
		logger: logger,
		state:  Searching,
	}
}

// State returns the current detection phase.
func (s *Segmenter) Phase() State { return s.state }

// Frame returns the buffered frame at absolute index idx, or nil when
// it has been trimmed away.
func (s *Segmenter) Frame(idx int) *models.PoseFrame {
	rel := idx - s.offset
	if rel < 0 || rel >= len(s.buffer) {
		return nil
	}
	return s.buffer[rel].frame
}

// Observe feeds the next frame in temporal order. It returns a
// ShotInterval when the frame completes a detection, else nil.
func (s *Segmenter) Observe(frame *models.PoseFrame) *models.ShotInterval {
	elbow, elbowErr := s.calc.ElbowAngle(frame)
	wristUp, wristErr := s.calc.WristAboveShoulder(frame)

	entry := trackedFrame{frame: frame}
	if elbowErr == nil {
		v := elbow
		entry.elbowAngle = &v
	}
	s.push(entry)

	if elbowErr == nil && wristErr == nil {
		s.stability++
	} else {
		s.stability = 0
	}

	switch s.state {
	case Cooldown:
		s.cooldown--
		if s.cooldown <= 0 {
			s.state = Searching
		}
		return nil

	case Searching:
		if elbowErr != nil || wristErr != nil {
			return nil
		}
		if s.stability < s.cfg.StabilityFrames {
			return nil
		}
		if elbow > s.cfg.ReleaseAngle && wristUp {
			// Release found; resolve the load point immediately.
			s.state = ReleaseCandidate
			interval := s.resolveRelease(frame.Index)
			s.state = Cooldown
			s.cooldown = s.cfg.CooldownFrames
			return interval
		}
		return nil
	}
	return nil
}

// resolveRelease scans backward from the release for the globally
// minimum elbow angle within the look-back window. When no angle is
// available in the window the load clamps to the window start rather
// than discarding the shot.
func (s *Segmenter) resolveRelease(releaseIdx int) *models.ShotInterval {
	windowStart := releaseIdx - s.cfg.LookBack
	if windowStart < s.offset {
		windowStart = s.offset
	}
	if windowStart < 0 {
		windowStart = 0
	}

	loadIdx := windowStart
	found := false
	var minAngle float64

	for idx := windowStart; idx < releaseIdx; idx++ {
		entry := s.buffer[idx-s.offset]
		if entry.elbowAngle == nil {
			continue
		}
		if !found || *entry.elbowAngle < minAngle {
			minAngle = *entry.elbowAngle
			loadIdx = idx
			found = true
		}
	}

	if loadIdx >= releaseIdx {
		loadIdx = releaseIdx - 1
		if loadIdx < 0 {
			loadIdx = 0
		}
	}

	if s.logger != nil {
		s.logger.Debug("shot interval resolved",
			zap.Int("load_frame", loadIdx),
			zap.Int("release_frame", releaseIdx),
			zap.Bool("load_from_minimum", found))
	}

	return &models.ShotInterval{LoadFrame: loadIdx, ReleaseFrame: releaseIdx}
}

func (s *Segmenter) push(entry trackedFrame) {
	s.buffer = append(s.buffer, entry)
	for len(s.buffer) > s.cfg.BufferSize {
		s.buffer = s.buffer[1:]
		s.offset++
	}
}
