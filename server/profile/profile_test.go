package profile

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

func f(v float64) *float64 { return &v }

func vector(elbowLoad, elbowRelease, wristHeight, kneeBend float64) models.MetricVector {
	return models.MetricVector{
		ElbowAngleLoad:     f(elbowLoad),
		ElbowAngleRelease:  f(elbowRelease),
		WristHeightRelease: f(wristHeight),
		KneeBendLoad:       f(kneeBend),
	}
}

func TestUpdateRunningStats(t *testing.T) {
	p := NewFormProfile(1)

	for _, v := range []float64{80, 90, 100} {
		p.Update(vector(v, 170, 0.5, 120))
	}

	snap := p.Snapshot()
	r, ok := snap.Metrics["elbow_angle_load"]
	require.True(t, ok)
	assert.Equal(t, 3, r.Samples)
	assert.InDelta(t, 90, r.Optimal, 1e-9)
	// Sample standard deviation of {80,90,100} is 10.
	assert.InDelta(t, 10, r.Consistency, 1e-9)
}

func TestUpdateSkipsMissingMetrics(t *testing.T) {
	p := NewFormProfile(1)

	p.Update(models.MetricVector{ElbowAngleLoad: f(85)})
	p.Update(vector(90, 170, 0.5, 120))

	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Metrics["elbow_angle_load"].Samples)
	assert.Equal(t, 1, snap.Metrics["knee_bend_load"].Samples)
}

func TestCompareInsufficientData(t *testing.T) {
	p := NewFormProfile(1)

	p.Update(vector(90, 170, 0.5, 120))
	p.Update(vector(92, 171, 0.52, 121))

	_, err := p.Compare(vector(95, 172, 0.5, 119))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCompareZScores(t *testing.T) {
	p := NewFormProfile(1)

	for _, v := range []float64{80, 90, 100} {
		p.Update(vector(v, 170, 0.5, 120))
	}

	deviations, err := p.Compare(models.MetricVector{ElbowAngleLoad: f(110)})
	require.NoError(t, err)
	require.Len(t, deviations, 1)

	d := deviations[0]
	assert.Equal(t, "elbow_angle_load", d.Metric)
	// (110 - 90) / 10
	assert.InDelta(t, 2.0, d.ZScore, 1e-9)
	assert.Equal(t, 3, d.Samples)
}

func TestCompareZeroVariance(t *testing.T) {
	p := NewFormProfile(1)

	for i := 0; i < 5; i++ {
		p.Update(models.MetricVector{ElbowAngleLoad: f(90)})
	}

	deviations, err := p.Compare(models.MetricVector{ElbowAngleLoad: f(95)})
	require.NoError(t, err)
	require.Len(t, deviations, 1)
	// Degenerate spread reports a zero z-score instead of dividing by
	// zero.
	assert.Equal(t, 0.0, deviations[0].ZScore)
}

func TestWelfordMatchesBatchComputation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	values := make([]float64, 200)
	p := NewFormProfile(1)
	for i := range values {
		values[i] = 90 + rng.NormFloat64()*8
		p.Update(models.MetricVector{ElbowAngleLoad: f(values[i])})
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}

	snap := p.Snapshot().Metrics["elbow_angle_load"]
	assert.InDelta(t, mean, snap.Optimal, 1e-9)
	assert.InDelta(t, ss/float64(len(values)-1), snap.Consistency*snap.Consistency, 1e-6)
}

func TestRestoreRoundTrip(t *testing.T) {
	original := NewFormProfile(7)
	for _, v := range []float64{80, 90, 100, 95} {
		original.Update(models.MetricVector{ElbowAngleLoad: f(v)})
	}
	snap := original.Snapshot().Metrics["elbow_angle_load"]

	restored := NewFormProfile(7)
	restored.Restore("elbow_angle_load", snap.Samples, snap.Optimal, snap.Consistency)

	got := restored.Snapshot().Metrics["elbow_angle_load"]
	assert.Equal(t, snap.Samples, got.Samples)
	assert.InDelta(t, snap.Optimal, got.Optimal, 1e-9)
	assert.InDelta(t, snap.Consistency, got.Consistency, 1e-9)

	// A restored profile keeps accumulating correctly.
	restored.Update(models.MetricVector{ElbowAngleLoad: f(85)})
	original.Update(models.MetricVector{ElbowAngleLoad: f(85)})
	assert.InDelta(t,
		original.Snapshot().Metrics["elbow_angle_load"].Consistency,
		restored.Snapshot().Metrics["elbow_angle_load"].Consistency,
		1e-6)
}

func TestRegistrySingleInstance(t *testing.T) {
	r := NewRegistry()

	a := r.GetOrCreate(3)
	b := r.GetOrCreate(3)
	assert.Same(t, a, b)

	assert.Nil(t, r.Get(4))
	assert.NotNil(t, r.GetOrCreate(4))
	assert.NotSame(t, a, r.Get(4))
}

func TestSampleCount(t *testing.T) {
	p := NewFormProfile(1)
	assert.Equal(t, 0, p.SampleCount())

	p.Update(vector(90, 170, 0.5, 120))
	p.Update(models.MetricVector{ElbowAngleLoad: f(92)})

	// The gating count is the smallest across observed metrics.
	assert.Equal(t, 1, p.SampleCount())
}
