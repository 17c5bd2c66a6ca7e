package segmenter

import (
	"testing"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

func TestSampleIntervalLongShot(t *testing.T) {
	tests := []struct {
		name          string
		load, release int
	}{
		{"typical shot", 100, 160},
		{"full lookback", 0, 60},
		{"just over eight", 10, 18},
		{"very long", 0, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indices := SampleInterval(models.ShotInterval{LoadFrame: tt.load, ReleaseFrame: tt.release})

			if len(indices) != SampleCount {
				t.Fatalf("got %d indices, want %d", len(indices), SampleCount)
			}
			if indices[0] != tt.load {
				t.Errorf("first index = %d, want load %d", indices[0], tt.load)
			}
			if indices[len(indices)-1] != tt.release {
				t.Errorf("last index = %d, want release %d", indices[len(indices)-1], tt.release)
			}
			for i := 1; i < len(indices); i++ {
				if indices[i] <= indices[i-1] {
					t.Fatalf("indices not strictly increasing at %d: %v", i, indices)
				}
			}
		})
	}
}

func TestSampleIntervalShortShot(t *testing.T) {
	// Fewer frames than SampleCount: every frame, no duplicates.
	indices := SampleInterval(models.ShotInterval{LoadFrame: 20, ReleaseFrame: 24})

	want := []int{20, 21, 22, 23, 24}
	if len(indices) != len(want) {
		t.Fatalf("got %v, want %v", indices, want)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Fatalf("got %v, want %v", indices, want)
		}
	}
}

func TestSampleIntervalExactlyEight(t *testing.T) {
	indices := SampleInterval(models.ShotInterval{LoadFrame: 5, ReleaseFrame: 12})
	if len(indices) != SampleCount {
		t.Fatalf("got %d indices, want %d", len(indices), SampleCount)
	}
	for i, idx := range indices {
		if idx != 5+i {
			t.Fatalf("got %v, want consecutive run from 5", indices)
		}
	}
}

func TestSampleIntervalEquidistantSpacing(t *testing.T) {
	// 71 frames, step 10: spacing must be uniform.
	indices := SampleInterval(models.ShotInterval{LoadFrame: 0, ReleaseFrame: 70})

	want := []int{0, 10, 20, 30, 40, 50, 60, 70}
	for i := range want {
		if indices[i] != want[i] {
			t.Fatalf("got %v, want %v", indices, want)
		}
	}
}

func TestFrameLabelsMatchSampleCount(t *testing.T) {
	if len(FrameLabels) != SampleCount {
		t.Fatalf("have %d labels for %d samples", len(FrameLabels), SampleCount)
	}
}
