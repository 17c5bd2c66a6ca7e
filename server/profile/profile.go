package profile

import (
	"errors"
	"math"
	"sync"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

// MinSamples is the number of made shots a profile needs before its
// statistics are considered meaningful. Below it, Compare reports
// insufficient data and callers fall back to generic heuristics.
const MinSamples = 3

// ErrInsufficientData is returned by Compare when a metric has fewer
// than MinSamples made-shot observations.
var ErrInsufficientData = errors.New("insufficient profile data")

// metricStats holds Welford running statistics for one metric.
// Incremental updates avoid re-reading history and stay numerically
// stable on long sessions.
type metricStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	m2    float64
}

func (m *metricStats) update(x float64) {
	m.Count++
	delta := x - m.Mean
	m.Mean += delta / float64(m.Count)
	m.m2 += delta * (x - m.Mean)
}

func (m *metricStats) variance() float64 {
	if m.Count < 2 {
		return 0
	}
	return m.m2 / float64(m.Count-1)
}

func (m *metricStats) stdDev() float64 {
	return math.Sqrt(m.variance())
}

// FormProfile is one player's running statistics over their historical
// made shots. Only made shots feed it. All methods are safe for
// concurrent use; updates from concurrent shots serialize on the
// profile's lock so partial increments never interleave.
type FormProfile struct {
	mu       sync.Mutex
	playerID int64
	metrics  map[string]*metricStats
}

func NewFormProfile(playerID int64) *FormProfile {
	return &FormProfile{
		playerID: playerID,
		metrics:  make(map[string]*metricStats),
	}
}

func (p *FormProfile) PlayerID() int64 { return p.playerID }

// Update folds one made shot's metrics into the running statistics.
// Missing metrics are skipped, so per-metric sample counts can differ.
func (p *FormProfile) Update(v models.MetricVector) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, name := range models.MetricNames {
		value := v.Get(name)
		if value == nil {
			continue
		}
		stats, ok := p.metrics[name]
		if !ok {
			stats = &metricStats{}
			p.metrics[name] = stats
		}
		stats.update(*value)
	}
}

// Deviation is one metric's distance from the player's personal mean.
type Deviation struct {
	Metric  string  `json:"metric"`
	ZScore  float64 `json:"z_score"`
	Mean    float64 `json:"optimal"`
	StdDev  float64 `json:"consistency"`
	Samples int     `json:"samples"`
}

// Compare returns per-metric z-scores of the candidate shot against
// the profile. Metrics with missing values or fewer than MinSamples
// observations are omitted; when nothing qualifies it returns
// ErrInsufficientData.
func (p *FormProfile) Compare(v models.MetricVector) ([]Deviation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var deviations []Deviation
	for _, name := range models.MetricNames {
		value := v.Get(name)
		if value == nil {
			continue
		}
		stats, ok := p.metrics[name]
		if !ok || stats.Count < MinSamples {
			continue
		}
		sd := stats.stdDev()
		z := 0.0
		if sd > 1e-9 {
			z = (*value - stats.Mean) / sd
		}
		deviations = append(deviations, Deviation{
			Metric:  name,
			ZScore:  z,
			Mean:    stats.Mean,
			StdDev:  sd,
			Samples: stats.Count,
		})
	}
	if len(deviations) == 0 {
		return nil, ErrInsufficientData
	}
	return deviations, nil
}

// Snapshot is the serializable view of a profile.
type Snapshot struct {
	PlayerID int64                  `json:"player_id"`
	Metrics  map[string]MetricRange `json:"metrics"`
}

// MetricRange is one metric's optimal value and consistency band.
type MetricRange struct {
	Optimal     float64 `json:"optimal"`
	Consistency float64 `json:"consistency"`
	Samples     int     `json:"samples"`
}

func (p *FormProfile) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{PlayerID: p.playerID, Metrics: make(map[string]MetricRange, len(p.metrics))}
	for name, stats := range p.metrics {
		snap.Metrics[name] = MetricRange{
			Optimal:     stats.Mean,
			Consistency: stats.stdDev(),
			Samples:     stats.Count,
		}
	}
	return snap
}

// SampleCount returns the smallest per-metric sample count across the
// metrics that have been observed at least once, which is what the
// insufficient-data policy keys on.
func (p *FormProfile) SampleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	min := 0
	first := true
	for _, stats := range p.metrics {
		if first || stats.Count < min {
			min = stats.Count
			first = false
		}
	}
	if first {
		return 0
	}
	return min
}

// Restore seeds a metric's statistics from persisted values. Used when
// loading profiles from the store at startup.
func (p *FormProfile) Restore(metric string, count int, mean, stdDev float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	variance := stdDev * stdDev
	m2 := 0.0
	if count > 1 {
		m2 = variance * float64(count-1)
	}
	p.metrics[metric] = &metricStats{Count: count, Mean: mean, m2: m2}
}

// Registry owns the per-player profiles. It hands out a single
// FormProfile instance per player so all updates serialize on that
// profile's lock.
type Registry struct {
	mu       sync.RWMutex
	profiles map[int64]*FormProfile
}

func NewRegistry() *Registry {
	return &Registry{profiles: make(map[int64]*FormProfile)}
}

// Get returns the player's profile, or nil when none exists yet.
func (r *Registry) Get(playerID int64) *FormProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[playerID]
}

// GetOrCreate returns the player's profile, creating it on first use.
func (r *Registry) GetOrCreate(playerID int64) *FormProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[playerID]
	if !ok {
		p = NewFormProfile(playerID)
		r.profiles[playerID] = p
	}
	return p
}
