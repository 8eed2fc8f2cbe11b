package observability

import (
	"strings"
	"sync"
	"time"
)

// Metrics is the sink every component records into.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// Snapshot is the JSON shape served on /metrics.
type Snapshot struct {
	Counters map[string]int64   `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
}

// InMemoryMetrics keeps every series in process. It backs /metrics in a
// single-node deployment and doubles as the test recorder.
type InMemoryMetrics struct {
	mu      sync.RWMutex
	series  map[string]*series
	started time.Time
}

type series struct {
	count   int64
	gauge   float64
	gauged  bool
	samples []float64
	timings []time.Duration
}

// NewInMemoryMetrics creates an empty recorder.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{series: make(map[string]*series), started: time.Now()}
}

func (m *InMemoryMetrics) record(name string, tags []Tag, fn func(*series)) {
	key := formatKey(name, tags)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[key]
	if !ok {
		s = &series{}
		m.series[key] = s
	}
	fn(s)
}

func (m *InMemoryMetrics) lookup(name string, tags []Tag) series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.series[formatKey(name, tags)]; ok {
		return *s
	}
	return series{}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.count += value })
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.gauge, s.gauged = value, true })
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.samples = append(s.samples, value) })
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.record(name, tags, func(s *series) { s.timings = append(s.timings, duration) })
}

// GetCounter returns the running total of a counter.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	return m.lookup(name, tags).count
}

// GetGauge returns the last value set.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	return m.lookup(name, tags).gauge
}

// GetHistogram returns the recorded samples.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	return append([]float64(nil), m.lookup(name, tags).samples...)
}

// GetTimings returns the recorded durations.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	return append([]time.Duration(nil), m.lookup(name, tags).timings...)
}

// Counters returns a copy of every non-zero counter keyed by name and tags.
func (m *InMemoryMetrics) Counters() map[string]int64 {
	return m.Snapshot().Counters
}

// Snapshot copies non-zero counters and every gauge set. Histogram samples are summarised as
// "<key>.count" and "<key>.sum" gauges, and the recorder's uptime is
// reported as MetricUptimeSeconds.
func (m *InMemoryMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Counters: make(map[string]int64),
		Gauges:   map[string]float64{MetricUptimeSeconds: time.Since(m.started).Seconds()},
	}
	for key, s := range m.series {
		if s.count != 0 {
			snap.Counters[key] = s.count
		}
		if s.gauged {
			snap.Gauges[key] = s.gauge
		}
		if len(s.samples) > 0 {
			var sum float64
			for _, v := range s.samples {
				sum += v
			}
			snap.Gauges[key+".count"] = float64(len(s.samples))
			snap.Gauges[key+".sum"] = sum
		}
	}
	return snap
}

// Reset drops every series.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.series)
}

// formatKey renders name and tags as "name:k1=v1:k2=v2", tags in call order.
func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for _, t := range tags {
		b.WriteByte(':')
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String()
}

// Metric names used across coachpay.
const (
	MetricOperationTotal    = "coachpay.operation.total"
	MetricOperationDuration = "coachpay.operation.duration"
	MetricOperationErrors   = "coachpay.operation.errors"
	MetricUptimeSeconds     = "coachpay.uptime_seconds"

	// Tagged with event_type once the event is authenticated.
	MetricWebhookReceived     = "webhook.received"
	MetricWebhookApplied      = "webhook.applied"
	MetricWebhookDuplicate    = "webhook.duplicate"
	MetricWebhookIgnored      = "webhook.ignored"
	MetricWebhookAbsorbed     = "webhook.absorbed"
	MetricWebhookRejected     = "webhook.rejected"
	MetricWebhookFailed       = "webhook.failed"
	MetricWebhookPayloadBytes = "webhook.payload_bytes"

	MetricSyncCompleted = "sync.completed"
	MetricSyncBusy      = "sync.busy"
	MetricSyncFailed    = "sync.failed"

	// Tagged with level.
	MetricRiskChanged = "risk.changed"

	MetricOutboxLagSeconds = "outbox.lag_seconds"
)
