package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }
func i(v int) *int         { return &v }

func mt(v models.MissType) *models.MissType { return &v }

func record(n int, made bool, rating *int, miss *models.MissType) models.ShotRecord {
	return models.ShotRecord{
		ShotNumber:         n,
		Made:               b(made),
		MissType:           miss,
		FormRating:         rating,
		ElbowAngleLoad:     f(90),
		ElbowAngleRelease:  f(170),
		WristHeightRelease: f(0.5),
		KneeBendLoad:       f(120),
	}
}

func TestAggregateBasicCounts(t *testing.T) {
	var records []models.ShotRecord
	for n := 1; n <= 6; n++ {
		records = append(records, record(n, true, i(8), nil))
	}
	for n := 7; n <= 10; n++ {
		records = append(records, record(n, false, i(7), mt(models.MissShortLeft)))
	}

	summary := Aggregate(records)

	assert.Equal(t, 10, summary.TotalShots)
	assert.Equal(t, 6, summary.ShotsMade)
	assert.Equal(t, 4, summary.ShotsMissed)
	assert.InDelta(t, 60.0, summary.ShootingPercentage, 1e-9)
	require.NotNil(t, summary.AverageFormRating)
	assert.InDelta(t, 7.6, *summary.AverageFormRating, 1e-9)
	assert.Len(t, summary.Shots, 10)
}

func TestAggregateZeroShots(t *testing.T) {
	summary := Aggregate(nil)

	assert.Equal(t, 0, summary.TotalShots)
	assert.Equal(t, 0.0, summary.ShootingPercentage)
	assert.Nil(t, summary.AverageFormRating)
	assert.NotEmpty(t, summary.DrillSuggestions)
}

func TestAggregateNullRatingsExcluded(t *testing.T) {
	records := []models.ShotRecord{
		record(1, true, i(6), nil),
		record(2, true, nil, nil),
		record(3, false, i(8), mt(models.MissLongRight)),
	}

	summary := Aggregate(records)

	require.NotNil(t, summary.AverageFormRating)
	// Average over the two rated shots only.
	assert.InDelta(t, 7.0, *summary.AverageFormRating, 1e-9)
}

func TestAggregateUnknownOutcomeCountsNeither(t *testing.T) {
	records := []models.ShotRecord{
		record(1, true, i(7), nil),
		{ShotNumber: 2, ElbowAngleLoad: f(90)},
	}

	summary := Aggregate(records)

	assert.Equal(t, 2, summary.TotalShots)
	assert.Equal(t, 1, summary.ShotsMade)
	assert.Equal(t, 0, summary.ShotsMissed)
	// Percentage is made over total attempts, unknowns included.
	assert.InDelta(t, 50.0, summary.ShootingPercentage, 1e-9)
}

func TestPrimaryInconsistencyPicksHighestRelativeSpread(t *testing.T) {
	var records []models.ShotRecord
	wrist := []float64{0.1, 0.9, 0.2, 0.8, 0.15}
	for n, w := range wrist {
		r := record(n+1, true, i(7), nil)
		r.WristHeightRelease = f(w)
		records = append(records, r)
	}

	summary := Aggregate(records)
	assert.Equal(t, "wrist_height_release", summary.PrimaryInconsistency)

	drills := drillCatalogue["wrist_height_release"][""]
	assert.Equal(t, drills, summary.DrillSuggestions)
}

func TestPrimaryInconsistencyNeedsTwoSamples(t *testing.T) {
	summary := Aggregate([]models.ShotRecord{record(1, true, i(7), nil)})
	assert.Empty(t, summary.PrimaryInconsistency)
}

func TestMostCommonMissDeterministicTieBreak(t *testing.T) {
	records := []models.ShotRecord{
		record(1, false, i(5), mt(models.MissShortRight)),
		record(2, false, i(5), mt(models.MissLongLeft)),
	}

	// Equal counts: alphabetical order wins, so long-left beats
	// short-right every run.
	assert.Equal(t, models.MissLongLeft, mostCommonMiss(records))
}

func TestMostCommonMissIgnoresMadeShots(t *testing.T) {
	records := []models.ShotRecord{
		record(1, true, i(7), mt(models.MissShortLeft)),
		record(2, false, i(5), mt(models.MissLongRight)),
	}

	assert.Equal(t, models.MissLongRight, mostCommonMiss(records))
}

func TestSuggestDrillsFallsBackToGeneric(t *testing.T) {
	drills := suggestDrills("unknown_metric", "")
	assert.Equal(t, genericDrills, drills)

	// Returned slices are copies; mutating one must not corrupt the
	// catalogue.
	drills[0] = "mutated"
	assert.NotEqual(t, "mutated", genericDrills[0])
}

func TestSuggestDrillsMissSpecific(t *testing.T) {
	drills := suggestDrills("knee_bend_load", models.MissShortLeft)
	assert.Equal(t, drillCatalogue["knee_bend_load"][models.MissShortLeft], drills)
}
