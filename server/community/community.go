// Package community compares a player's form against anonymized,
// aggregated segments of other players: same height band, same skill
// level, same accuracy band. Only aggregate statistics are ever stored
// or exposed; a segment below the minimum sample size is not queryable.
package community

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// MinSegmentSize is the smallest user count a segment needs before it
// may be returned in comparisons.
const MinSegmentSize = 20

// AggregateProfile is the stored aggregate for one segment of players.
type AggregateProfile struct {
	SegmentType  string `json:"segment_type"`
	SegmentValue string `json:"segment_value"`
	SampleSize   int    `json:"sample_size"`

	AvgMakePct         float64 `json:"avg_make_pct"`
	TopQuartileMakePct float64 `json:"top_quartile_make_pct"`

	AvgElbowLoad    float64 `json:"avg_elbow_load"`
	AvgElbowRelease float64 `json:"avg_elbow_release"`
	AvgWristHeight  float64 `json:"avg_wrist_height"`
	AvgKneeBend     float64 `json:"avg_knee_bend"`

	StdElbowLoad   float64 `json:"std_elbow_load"`
	StdWristHeight float64 `json:"std_wrist_height"`

	CommonMissType string `json:"common_miss_type,omitempty"`
	CommonStrength string `json:"common_strength,omitempty"`
}

func (p AggregateProfile) SegmentName() string {
	return p.SegmentType + ":" + p.SegmentValue
}

// UserMetrics is the player side of a comparison. Nil fields are
// skipped, matching the rest of the pipeline's missing-data policy.
type UserMetrics struct {
	ElbowAngleLoad     *float64
	WristHeightRelease *float64
	MakePct            *float64
}

// Comparison is one segment's result: raw differences from the segment
// average and, where the segment has spread data, estimated
// percentiles assuming a normal distribution.
type Comparison struct {
	Segment     string             `json:"segment"`
	SampleSize  int                `json:"sample_size"`
	Differences map[string]float64 `json:"differences"`
	Percentiles map[string]int     `json:"percentile_estimates"`
	Insights    []string           `json:"insights"`
}

// Ranking is one percentile estimate attributed to its segment.
type Ranking struct {
	Segment    string `json:"segment"`
	Percentile int    `json:"percentile"`
}

// Report is the full community comparison for one player.
type Report struct {
	Available   bool                 `json:"available"`
	Message     string               `json:"message,omitempty"`
	Comparisons []Comparison         `json:"comparisons,omitempty"`
	Insights    []string             `json:"insights,omitempty"`
	Rankings    map[string][]Ranking `json:"how_you_rank,omitempty"`
}

// HeightSegment maps a height in inches to its segment value.
func HeightSegment(inches int) string {
	switch {
	case inches < 66:
		return "under_5-6"
	case inches < 70:
		return "5-6_to_5-10"
	case inches < 74:
		return "5-10_to_6-2"
	case inches < 78:
		return "6-2_to_6-6"
	default:
		return "over_6-6"
	}
}

// AccuracySegment maps a shooting percentage to its segment value.
func AccuracySegment(makePct float64) string {
	switch {
	case makePct < 30:
		return "under_30"
	case makePct < 45:
		return "30_to_45"
	case makePct < 55:
		return "45_to_55"
	case makePct < 65:
		return "55_to_65"
	case makePct < 75:
		return "65_to_75"
	default:
		return "over_75"
	}
}

// CompareToSegment measures one player against one segment. Metrics
// missing on either side are left out rather than compared against
// zero.
func CompareToSegment(m UserMetrics, segment AggregateProfile) Comparison {
	comparison := Comparison{
		Segment:     segment.SegmentName(),
		SampleSize:  segment.SampleSize,
		Differences: make(map[string]float64),
		Percentiles: make(map[string]int),
	}

	if m.ElbowAngleLoad != nil && segment.AvgElbowLoad > 0 {
		diff := *m.ElbowAngleLoad - segment.AvgElbowLoad
		comparison.Differences["elbow_angle_load"] = diff
		if segment.StdElbowLoad > 0 {
			comparison.Percentiles["elbow_angle_load"] = zToPercentile(diff / segment.StdElbowLoad)
		}
	}

	if m.WristHeightRelease != nil && segment.AvgWristHeight > 0 {
		diff := *m.WristHeightRelease - segment.AvgWristHeight
		comparison.Differences["wrist_height_release"] = diff
		if segment.StdWristHeight > 0 {
			comparison.Percentiles["wrist_height_release"] = zToPercentile(diff / segment.StdWristHeight)
		}
	}

	if m.MakePct != nil {
		switch {
		case *m.MakePct > segment.TopQuartileMakePct:
			comparison.Insights = append(comparison.Insights,
				"Your accuracy is in the top 25% for this group")
		case *m.MakePct > segment.AvgMakePct:
			comparison.Insights = append(comparison.Insights,
				fmt.Sprintf("Your accuracy is above average for this group (%.0f%%)", segment.AvgMakePct))
		}
	}

	return comparison
}

// BuildReport assembles the comparison report over every segment the
// player belongs to. With no queryable segments the report says so
// instead of returning empty comparisons.
func BuildReport(m UserMetrics, segments []AggregateProfile) Report {
	if len(segments) == 0 {
		return Report{
			Available: false,
			Message: "Not enough community data for comparison yet. " +
				"Keep shooting and check back later!",
		}
	}

	report := Report{
		Available: true,
		Rankings:  make(map[string][]Ranking),
	}

	for _, segment := range segments {
		comparison := CompareToSegment(m, segment)
		report.Comparisons = append(report.Comparisons, comparison)
		report.Insights = append(report.Insights, comparison.Insights...)

		for metric, percentile := range comparison.Percentiles {
			report.Rankings[metric] = append(report.Rankings[metric], Ranking{
				Segment:    segment.SegmentName(),
				Percentile: percentile,
			})
		}
	}

	return report
}

// zToPercentile converts a z-score to an integer percentile under the
// standard normal CDF.
func zToPercentile(z float64) int {
	return int(distuv.UnitNormal.CDF(z) * 100)
}
