package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(published.WithLabelValues(KindNoise))
	IncPublished(KindNoise)
	assert.Equal(t, before+1, testutil.ToFloat64(published.WithLabelValues(KindNoise)))

	IncWSConnections()
	IncWSConnections()
	DecWSConnections()
	assert.Equal(t, float64(1), testutil.ToFloat64(wsSubscribers))
	DecWSConnections()
}

func TestHandlerExposesEventsourceMetrics(t *testing.T) {
	IncRequest("/dosomething", "200")
	ObservePublishSeconds(0.02)

	w := httptest.NewRecorder()
	Handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(w.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `eventsource_requests_total{code="200",route="/dosomething"}`)
	assert.Contains(t, string(body), "eventsource_publish_duration_seconds_bucket")
}
