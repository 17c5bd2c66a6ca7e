package segmenter

import "github.com/Akash-Srinivasan/ShotDoctor/server/models"

// SampleCount is the fixed number of representative frames selected
// per shot, so downstream consumers get a uniform contract.
const SampleCount = 8

// FrameLabels names the sampled positions in motion order.
var FrameLabels = []string{
	"1_Load",
	"2_Rise1",
	"3_Rise2",
	"4_Rise3",
	"5_Extend1",
	"6_Extend2",
	"7_Extend3",
	"8_Release",
}

// SampleInterval selects up to SampleCount equidistant frame indices
// spanning [load, release] inclusive: the first is the load, the last
// is the release, and the rest are evenly spaced with nearest-integer
// rounding. When the interval holds fewer than SampleCount frames,
// duplicates are nudged to the next unused index, yielding
// min(N, SampleCount) unique, strictly increasing indices.
func SampleInterval(interval models.ShotInterval) []int {
	load, release := interval.LoadFrame, interval.ReleaseFrame
	n := release - load + 1
	if n <= 0 {
		return nil
	}
	if n <= SampleCount {
		indices := make([]int, 0, n)
		for idx := load; idx <= release; idx++ {
			indices = append(indices, idx)
		}
		return indices
	}

	used := make(map[int]bool, SampleCount)
	indices := make([]int, 0, SampleCount)
	step := float64(release-load) / float64(SampleCount-1)

	for i := 0; i < SampleCount; i++ {
		idx := load + int(float64(i)*step+0.5)
		if idx > release {
			idx = release
		}
		for used[idx] && idx < release {
			idx++
		}
		if used[idx] {
			continue
		}
		used[idx] = true
		indices = append(indices, idx)
	}
	return indices
}
