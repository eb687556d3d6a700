package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sstent/vo2sync-go/internal/models"
)

// setup establishes a test Server that can be used to provide mock responses
// during testing. It returns a client, a mux and a teardown function that
// must be called when testing is complete.
func setup(t *testing.T) (c *Client, mux *http.ServeMux, teardown func()) {
	t.Helper()
	mux = http.NewServeMux()
	server := httptest.NewServer(mux)

	c, err := NewClient(server.URL+"/api/v3", nil)
	require.NoError(t, err)

	return c, mux, server.Close
}

func serveFile(t *testing.T, name string) http.HandlerFunc {
	t.Helper()
	body, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, string(body))
	}
}

func TestGetActivity(t *testing.T) {
	c, mux, teardown := setup(t)
	defer teardown()

	mux.HandleFunc("/api/v3/activities/999", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		serveFile(t, "activity.json")(w, r)
	})

	got, err := c.GetActivity(context.Background(), 999)
	require.NoError(t, err)
	assert.Equal(t, int64(999), got.ID)
	assert.Equal(t, "Lunch VO2 Intervals", got.Name)
	assert.Equal(t, "2024-03-02T11:30:00Z", got.StartDate)
	require.NotNil(t, got.Kilojoules)
	assert.InDelta(t, 786.8, *got.Kilojoules, 1e-9)
}

func TestGetActivityStreams(t *testing.T) {
	c, mux, teardown := setup(t)
	defer teardown()

	mux.HandleFunc("/api/v3/activities/999/streams", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "time,heartrate,watts,cadence", r.URL.Query().Get("keys"))
		assert.Equal(t, "true", r.URL.Query().Get("key_by_type"))
		serveFile(t, "streams.json")(w, r)
	})

	got, err := c.GetActivityStreams(context.Background(), 999, Channels)
	require.NoError(t, err)
	assert.Equal(t, 3, got[ChannelTime].Len())
	assert.Equal(t, 2, got[ChannelHeartRate].Len())
	assert.Equal(t, 3, got[ChannelCadence].Len())
}

func TestGetAthleteAndActivities(t *testing.T) {
	c, mux, teardown := setup(t)
	defer teardown()

	mux.HandleFunc("/api/v3/athlete", serveFile(t, "athlete.json"))
	mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		serveFile(t, "activities.json")(w, r)
	})

	athlete, err := c.GetAthlete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vo2rider", athlete.Username)

	activities, err := c.GetActivities(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, int64(1001), activities[0].ID)
}

func TestFetchErrors(t *testing.T) {
	c, mux, teardown := setup(t)
	defer teardown()

	mux.HandleFunc("/api/v3/activities/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "900")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/api/v3/activities/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/v3/activities/3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	})

	_, err := c.GetActivity(context.Background(), 1)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, models.ErrRemoteFetch)
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
	assert.True(t, fe.Retryable)
	assert.Equal(t, 900*time.Second, fe.RetryAfter)

	_, err = c.GetActivity(context.Background(), 2)
	require.True(t, errors.As(err, &fe))
	assert.False(t, fe.Retryable)

	_, err = c.GetActivity(context.Background(), 3)
	assert.ErrorIs(t, err, models.ErrParse)
	assert.NotErrorIs(t, err, models.ErrRemoteFetch)
}

func TestFetchTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/activities/5", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := NewClient(server.URL+"/api/v3", &http.Client{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.GetActivity(context.Background(), 5)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Retryable)
	assert.Zero(t, fe.StatusCode)
}
