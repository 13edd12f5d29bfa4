package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_exposesRecordedValues(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RecordMessage("match_events")
	m.RecordMessage("match_events")
	m.RecordDuplicateEvent()
	m.RecordReconnect()
	m.SetConnected(true)
	m.RecordTaskFailure("spectator_leave")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, `livematch_stream_messages_total{topic_kind="match_events"} 2`)
	assert.Contains(t, out, "livematch_duplicate_events_total 1")
	assert.Contains(t, out, "livematch_stream_reconnects_total 1")
	assert.Contains(t, out, "livematch_stream_connected 1")
	assert.Contains(t, out, `livematch_task_failures_total{task="spectator_leave"} 1`)
}

func TestNoOpCollector_satisfiesInterface(t *testing.T) {
	var c Collector = NoOpCollector{}
	c.RecordMessage("x")
	c.SetConnected(false)
}
