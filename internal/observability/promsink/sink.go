// Package promsink adapts StatsD-style metric calls to a Prometheus registry.
package promsink

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/target/brandpulse/internal/observability/statsd"
)

// durationBuckets are coarse on purpose to keep the series count low.
var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// Options configures a Sink.
type Options struct {
	Namespace string
	Logger    *slog.Logger
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

// Sink implements statsd.Sink by lazily registering one vector per metric name.
// The label set of a metric is fixed by its first emission; later emissions fill
// missing labels with "" and drop unknown ones.
type Sink struct {
	namespace string
	registry  *prometheus.Registry
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*vec[*prometheus.CounterVec]
	gauges     map[string]*vec[*prometheus.GaugeVec]
	histograms map[string]*vec[*prometheus.HistogramVec]
}

type vec[T any] struct {
	v      T
	labels []string
}

var _ statsd.Sink = (*Sink)(nil)

// New creates a Sink.
func New(opts Options) *Sink {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		namespace:  sanitizeName(opts.Namespace),
		registry:   reg,
		logger:     logger.With("component", "prometheus_sink"),
		counters:   make(map[string]*vec[*prometheus.CounterVec]),
		gauges:     make(map[string]*vec[*prometheus.GaugeVec]),
		histograms: make(map[string]*vec[*prometheus.HistogramVec]),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Count adds value to the counter name_total.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	if s == nil || value < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sanitizeName(name) + "_total"
	c, ok := s.counters[key]
	if !ok {
		labels := labelNames(tags)
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      key,
			Help:      "Counter " + name,
		}, labels)
		if !s.register(key, cv) {
			return
		}
		c = &vec[*prometheus.CounterVec]{v: cv, labels: labels}
		s.counters[key] = c
	}
	c.v.WithLabelValues(labelValues(c.labels, tags)...).Add(float64(value))
}

// Gauge sets the gauge name.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sanitizeName(name)
	g, ok := s.gauges[key]
	if !ok {
		labels := labelNames(tags)
		gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      key,
			Help:      "Gauge " + name,
		}, labels)
		if !s.register(key, gv) {
			return
		}
		g = &vec[*prometheus.GaugeVec]{v: gv, labels: labels}
		s.gauges[key] = g
	}
	g.v.WithLabelValues(labelValues(g.labels, tags)...).Set(value)
}

// Timing observes value in the histogram name_seconds.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sanitizeName(name) + "_seconds"
	h, ok := s.histograms[key]
	if !ok {
		labels := labelNames(tags)
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      key,
			Help:      "Duration of " + name,
			Buckets:   durationBuckets,
		}, labels)
		if !s.register(key, hv) {
			return
		}
		h = &vec[*prometheus.HistogramVec]{v: hv, labels: labels}
		s.histograms[key] = h
	}
	h.v.WithLabelValues(labelValues(h.labels, tags)...).Observe(value.Seconds())
}

func (s *Sink) register(name string, c prometheus.Collector) bool {
	if err := s.registry.Register(c); err != nil {
		s.logger.Warn("prometheus register failed", "metric", name, "error", err)
		return false
	}
	return true
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags)+1)
	for k := range tags {
		if n := sanitizeName(k); n != "" {
			names = append(names, n)
		}
	}
	// error_class is only present on failures; reserve it so the first success does not lock it out.
	if _, ok := tags["result"]; ok {
		if _, has := tags["error_class"]; !has {
			names = append(names, "error_class")
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, tags map[string]string) []string {
	values := make([]string, len(names))
	normalized := make(map[string]string, len(tags))
	for k, v := range tags {
		normalized[sanitizeName(k)] = strings.TrimSpace(v)
	}
	for i, n := range names {
		values[i] = normalized[n]
	}
	return values
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
