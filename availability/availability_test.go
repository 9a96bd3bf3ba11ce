package availability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitUntilHealthyAfterWarmup(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/actuator/health", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"DOWN"}`))
			return
		}
		w.Write([]byte(`{"status":"UP"}`))
	}))
	defer ts.Close()

	err := WaitUntilHealthy(context.Background(), strings.TrimPrefix(ts.URL, "http://"), Options{
		Timeout:  2 * time.Second,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWaitUntilHealthyTimesOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"DOWN"}`))
	}))
	defer ts.Close()

	err := WaitUntilHealthy(context.Background(), strings.TrimPrefix(ts.URL, "http://"), Options{
		Timeout:  50 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestWaitUntilHealthyIgnoresConnectionErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := strings.TrimPrefix(ts.URL, "http://")
	ts.Close()

	err := WaitUntilHealthy(context.Background(), host, Options{
		Timeout:  50 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestWaitUntilHealthyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitUntilHealthy(ctx, "127.0.0.1:1", Options{Interval: 10 * time.Millisecond})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8097/actuator/health", HealthURL("localhost:8097"))
}
