package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.KeyframeRecorded("camera")
	m.KeyframeRecorded("camera")
	m.KeyframeDispatched("script")
	m.PlaybackEvent("finished")
	m.ScriptExecuted(nil)
	m.ScriptExecuted(errors.New("boom"))
	m.SetTimelineEntries(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.keyframesRecorded.WithLabelValues("camera")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.keyframesDispatched.WithLabelValues("script")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playbacks.WithLabelValues("finished")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.scriptsExecuted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scriptErrors))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.timelineEntries))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.KeyframeRecorded("camera")
		m.ParseError()
		m.WriteError()
		m.TrackFinished("clock")
		m.SetSessionState(2)
	})
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ParseError()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "replay_parse_errors_total 1"))
}
