package session

import (
	"sort"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"gonum.org/v1/gonum/stat"
)

// drillCatalogue maps a primary inconsistency metric to drills, keyed
// further by the session's most common miss type. Suggestions come
// from a fixed table rather than the coaching model so they stay
// stable and explainable across runs.
var drillCatalogue = map[string]map[models.MissType][]string{
	"elbow_angle_load": {
		"": {
			"Form shooting from 3 feet: pause at the set point and check elbow alignment",
			"Wall elbow drill: 20 reps holding the gather position",
		},
		models.MissShortLeft:  {"One-hand form shooting with a deliberate 90-degree gather", "Chair shooting: force a consistent set point"},
		models.MissShortRight: {"One-hand form shooting with a deliberate 90-degree gather", "Chair shooting: force a consistent set point"},
		models.MissLongLeft:   {"Slow-motion gathers: freeze at the set point for a two count", "Mirror checks of the load position between reps"},
		models.MissLongRight:  {"Slow-motion gathers: freeze at the set point for a two count", "Mirror checks of the load position between reps"},
	},
	"elbow_angle_release": {
		"": {
			"Follow-through holds: full extension, hand in the rim, three-second freeze",
			"Snap-through drill: exaggerate wrist snap on 15 close-range makes",
		},
		models.MissShortLeft:  {"Extension ladder: 10 shots each at 5, 10, 15 feet finishing tall", "Follow-through holds with a three-second freeze"},
		models.MissShortRight: {"Extension ladder: 10 shots each at 5, 10, 15 feet finishing tall", "Follow-through holds with a three-second freeze"},
		models.MissLongLeft:   {"Soft-touch arc shooting over a raised hand", "High-release form shooting at the front rim"},
		models.MissLongRight:  {"Soft-touch arc shooting over a raised hand", "High-release form shooting at the front rim"},
	},
	"wrist_height_release": {
		"": {
			"High-release form shooting: finish with the wrist above the eyebrow line",
			"Wall-reach drill: release against a wall to groove a higher window",
		},
		models.MissShortLeft:  {"Release-point ladder: raise the finish one inch every five makes", "Shoot over a contest pad to force a higher window"},
		models.MissShortRight: {"Release-point ladder: raise the finish one inch every five makes", "Shoot over a contest pad to force a higher window"},
		models.MissLongLeft:   {"Consistent-window drill: same release height on 20 straight attempts", "Film one set and check the release point frame by frame"},
		models.MissLongRight:  {"Consistent-window drill: same release height on 20 straight attempts", "Film one set and check the release point frame by frame"},
	},
	"knee_bend_load": {
		"": {
			"Down-and-up rhythm shooting: one fluid dip into every release",
			"Legs-only drill: 15 makes powered entirely from the lower body",
		},
		models.MissShortLeft:  {"Deep-dip free throws: exaggerate knee bend for 20 attempts", "Jump-stop into shot to load the legs every rep"},
		models.MissShortRight: {"Deep-dip free throws: exaggerate knee bend for 20 attempts", "Jump-stop into shot to load the legs every rep"},
		models.MissLongLeft:   {"Quiet-legs drill: shallow consistent dip on 20 close-range makes", "Metronome shooting to even out the dip tempo"},
		models.MissLongRight:  {"Quiet-legs drill: shallow consistent dip on 20 close-range makes", "Metronome shooting to even out the dip tempo"},
	},
}

var genericDrills = []string{
	"Form shooting from 3 feet: 25 makes focusing on one motion",
	"Free-throw routine: 20 attempts with identical setup every time",
	"Catch-and-shoot spot work: 10 makes from five spots inside the arc",
}

// Aggregate folds the session's shot records into a SessionSummary.
// Division guards: zero shots yields 0% and a nil average rating.
func Aggregate(records []models.ShotRecord) models.SessionSummary {
	summary := models.SessionSummary{
		TotalShots: len(records),
		Shots:      records,
	}

	var ratingSum float64
	var ratingCount int
	for _, r := range records {
		if r.Made != nil {
			if *r.Made {
				summary.ShotsMade++
			} else {
				summary.ShotsMissed++
			}
		}
		if r.FormRating != nil {
			ratingSum += float64(*r.FormRating)
			ratingCount++
		}
	}

	if summary.TotalShots > 0 {
		summary.ShootingPercentage = float64(summary.ShotsMade) / float64(summary.TotalShots) * 100
	}
	if ratingCount > 0 {
		avg := ratingSum / float64(ratingCount)
		summary.AverageFormRating = &avg
	}

	summary.PrimaryInconsistency = primaryInconsistency(records)
	summary.DrillSuggestions = suggestDrills(summary.PrimaryInconsistency, mostCommonMiss(records))

	return summary
}

// primaryInconsistency finds the metric with the highest relative
// spread across the session's shots. Spread is the coefficient of
// variation so metrics on different scales compare fairly.
func primaryInconsistency(records []models.ShotRecord) string {
	best := ""
	bestCV := 0.0

	for _, name := range models.MetricNames {
		var values []float64
		for _, r := range records {
			if v := r.Metrics().Get(name); v != nil {
				values = append(values, *v)
			}
		}
		if len(values) < 2 {
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		if mean == 0 {
			continue
		}
		cv := std / abs(mean)
		if cv > bestCV {
			bestCV = cv
			best = name
		}
	}
	return best
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// mostCommonMiss returns the modal miss type across missed shots, or
// empty when no misses carry one. Ties break alphabetically so the
// output is deterministic.
func mostCommonMiss(records []models.ShotRecord) models.MissType {
	counts := make(map[models.MissType]int)
	for _, r := range records {
		if r.Made != nil && !*r.Made && r.MissType != nil {
			counts[*r.MissType]++
		}
	}
	if len(counts) == 0 {
		return ""
	}

	types := make([]models.MissType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})
	return types[0]
}

func suggestDrills(metric string, miss models.MissType) []string {
	byMiss, ok := drillCatalogue[metric]
	if !ok {
		return append([]string(nil), genericDrills...)
	}
	if drills, ok := byMiss[miss]; ok {
		return append([]string(nil), drills...)
	}
	return append([]string(nil), byMiss[""]...)
}
