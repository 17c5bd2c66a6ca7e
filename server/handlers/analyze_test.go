package handlers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSystemStatsConcurrentRecording(t *testing.T) {
	h := NewAnalyzeHandler(nil, nil, nil, nil, 0, zap.NewNop())

	const workers = 32
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				h.recordRequest()
				switch {
				case i%10 == 0:
					h.recordError()
				case i%3 == 0:
					h.recordSuccess(true)
				default:
					h.recordSuccess(false)
				}
			}
		}(w)
	}
	wg.Wait()

	stats := h.statsSnapshot()
	assert.Equal(t, int64(workers*perWorker), stats.TotalRequests)
	assert.Equal(t, stats.TotalRequests, stats.ProcessedOK+stats.ProcessedError)
	// Per worker: i%10==0 fires 5 times; of the 17 multiples of 3 in
	// [0,50), two (0 and 30) already took the error branch.
	assert.Equal(t, int64(workers*5), stats.ProcessedError)
	assert.Equal(t, int64(workers*15), stats.CacheHits)
	assert.False(t, stats.LastUpdated.IsZero())
}

func TestIsValidVideoFile(t *testing.T) {
	assert.True(t, isValidVideoFile("clip.mp4"))
	assert.True(t, isValidVideoFile("SESSION.MOV"))
	assert.False(t, isValidVideoFile("notes.txt"))
	assert.False(t, isValidVideoFile("clip.mp4.exe"))
}
