// Package metrics is the observability boundary contract: stage timings
// and event counters the pipeline reports through on every segment.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the interface pipeline stages depend on. Kept minimal so a
// no-op implementation costs nothing when metrics aren't wired up.
type Recorder interface {
	Record(stage string, d time.Duration)
	Incr(name string)
}

// Noop discards everything it's given; it's the default when no
// Prometheus registry is configured.
type Noop struct{}

func (Noop) Record(string, time.Duration) {}
func (Noop) Incr(string)                  {}

// Prometheus reports stage durations as a histogram and named events as
// counters, grouped under the swictation_ namespace.
type Prometheus struct {
	stageDuration *prometheus.HistogramVec
	events        *prometheus.CounterVec
}

// NewPrometheus registers its collectors on reg and returns a Recorder
// backed by them. Call once per process; reg is typically
// prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swictation",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage per segment.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swictation",
			Name:      "events_total",
			Help:      "Count of named pipeline events (segments, drops, errors).",
		}, []string{"name"}),
	}
	if err := reg.Register(p.stageDuration); err != nil {
		return nil, err
	}
	if err := reg.Register(p.events); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Prometheus) Record(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *Prometheus) Incr(name string) {
	p.events.WithLabelValues(name).Inc()
}
