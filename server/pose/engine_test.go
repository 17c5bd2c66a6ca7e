package pose

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

func newStreamingClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	// The client probes /health on construction; answer it before
	// delegating to the test handler.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, &ClientConfig{HealthCheckInterval: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func drain(t *testing.T, src FrameSource) []models.PoseFrame {
	t.Helper()
	var frames []models.PoseFrame
	for {
		frame, err := src.Next(context.Background())
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, *frame)
	}
}

func TestStreamPosesDecodesNDJSON(t *testing.T) {
	body := strings.Join([]string{
		`{"index": 0, "timestamp": 0.0, "landmarks": {"right_wrist": {"x": 0.5, "y": 0.3, "visibility": 0.9}}}`,
		``,
		`{"index": 1, "timestamp": 0.033, "landmarks": {}}`,
		`{"index": 2, "timestamp": 0.066, "landmarks": {}}`,
	}, "\n")

	client := newStreamingClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/poses", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(body))
	})

	src, err := client.StreamPoses(context.Background(), strings.NewReader("fake video"), "video/mp4")
	require.NoError(t, err)
	defer src.Close()

	frames := drain(t, src)
	require.Len(t, frames, 3)
	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, 2, frames[2].Index)
	assert.InDelta(t, 0.9, frames[0].Landmarks["right_wrist"].Visibility, 1e-9)
}

func TestStreamPosesOutOfOrder(t *testing.T) {
	body := "{\"index\": 5, \"landmarks\": {}}\n{\"index\": 3, \"landmarks\": {}}\n"

	client := newStreamingClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	src, err := client.StreamPoses(context.Background(), strings.NewReader("x"), "")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
}

func TestStreamPosesMalformedLine(t *testing.T) {
	client := newStreamingClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json\n"))
	})

	src, err := client.StreamPoses(context.Background(), strings.NewReader("x"), "")
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	assert.Error(t, err)
}

func TestStreamPosesEngineError(t *testing.T) {
	client := newStreamingClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported codec", http.StatusBadRequest)
	})

	_, err := client.StreamPoses(context.Background(), strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestSliceSource(t *testing.T) {
	frames := []models.PoseFrame{{Index: 0}, {Index: 1}}
	src := NewSliceSource(frames)

	first, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.Index)

	_, err = src.Next(context.Background())
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestSliceSourceHonorsContext(t *testing.T) {
	src := NewSliceSource([]models.PoseFrame{{Index: 0}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
