package coach

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", `{"made": true}`, `{"made": true}`},
		{"json fence", "```json\n{\"made\": true}\n```", `{"made": true}`},
		{"bare fence", "```\n{\"made\": true}\n```", `{"made": true}`},
		{"fence with prose", "Here is the result:\n```json\n{\"made\": false}\n```\nHope that helps!", `{"made": false}`},
		{"unterminated fence", "```json\n{\"made\": true}", `{"made": true}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(StripCodeFence([]byte(tt.in))))
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, &ClientConfig{MaxRetries: 0}, zap.NewNop())
}

func TestAnalyzeShotParsesFencedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coach/shot", r.URL.Path)
		w.Write([]byte("```json\n{\"made\": true, \"form_rating\": 8, \"feedback\": \"nice arc\"}\n```"))
	})

	response, err := client.AnalyzeShot(context.Background(), &ShotRequest{ShotNumber: 1})
	require.NoError(t, err)
	require.NotNil(t, response.Made)
	assert.True(t, *response.Made)
	require.NotNil(t, response.FormRating)
	assert.Equal(t, 8, *response.FormRating)
	assert.Equal(t, "nice arc", response.Feedback)
}

func TestAnalyzeShotRejectsOutOfRangeRating(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"made": false, "miss_type": "short-left", "form_rating": 14}`))
	})

	response, err := client.AnalyzeShot(context.Background(), &ShotRequest{ShotNumber: 1})
	require.NoError(t, err)
	// Out-of-range rating is dropped; the rest of the verdict survives.
	assert.Nil(t, response.FormRating)
	require.NotNil(t, response.MissType)
	assert.Equal(t, "short-left", string(*response.MissType))
}

func TestAnalyzeShotServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.AnalyzeShot(context.Background(), &ShotRequest{ShotNumber: 1})
	assert.Error(t, err)
}

func TestAnalyzeShotRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"made": true, "feedback": "ok"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, &ClientConfig{MaxRetries: 2, RetryDelay: 1}, zap.NewNop())

	response, err := client.AnalyzeShot(context.Background(), &ShotRequest{ShotNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.True(t, *response.Made)
}

func TestSummarizeSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coach/session", r.URL.Path)
		w.Write([]byte(`{"session_feedback": "strong outing"}`))
	})

	response, err := client.SummarizeSession(context.Background(), &SessionRequest{TotalShots: 5})
	require.NoError(t, err)
	assert.Equal(t, "strong outing", response.SessionFeedback)
}
