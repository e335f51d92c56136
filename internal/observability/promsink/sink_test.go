package promsink

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Count(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(Options{Namespace: "brandpulse", Registry: reg})

	s.Count("job.transition", 1, map[string]string{"job_type": "CLEANUP", "result": "success"})
	s.Count("job.transition", 2, map[string]string{"job_type": "CLEANUP", "result": "error", "error_class": "net_operror"})
	s.Count("job.transition", 1, map[string]string{"job_type": "CLEANUP", "result": "success"})

	c := s.counters["job_transition_total"]
	require.NotNil(t, c)
	assert.Equal(t, []string{"error_class", "job_type", "result"}, c.labels)
	assert.InDelta(t, 2.0, testutil.ToFloat64(c.v.WithLabelValues("", "CLEANUP", "success")), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(c.v.WithLabelValues("net_operror", "CLEANUP", "error")), 1e-9)
}

func TestSink_GaugeAndTiming(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New(Options{Namespace: "brandpulse", Registry: reg})

	s.Gauge("analytics.average_positioning", 2.5, map[string]string{"provider": "chatgpt"})
	s.Gauge("analytics.average_positioning", 3.5, map[string]string{"provider": "chatgpt", "unknown": "x"})
	s.Timing("consumer.cycle_duration", 1500*time.Millisecond, nil)

	g := s.gauges["analytics_average_positioning"]
	require.NotNil(t, g)
	assert.InDelta(t, 3.5, testutil.ToFloat64(g.v.WithLabelValues("chatgpt")), 1e-9)

	count, err := testutil.GatherAndCount(reg, "brandpulse_consumer_cycle_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSink_Handler(t *testing.T) {
	s := New(Options{Namespace: "brandpulse"})
	s.Count("scheduler.tick", 1, map[string]string{"result": "noop"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "brandpulse_scheduler_tick_total{")
	assert.Contains(t, string(body), `result="noop"`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "job_transition", sanitizeName(" job.transition "))
	assert.Equal(t, "a_b_c", sanitizeName("a/b-c"))
	assert.Empty(t, sanitizeName("..."))
}
