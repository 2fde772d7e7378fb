// Package metrics records provisioning step durations and session outcomes
// and writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kvmbootstrap"

// Recorder owns a private registry so several sessions in one process, and
// tests, never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	stepDuration *prometheus.HistogramVec
	stepTotal    *prometheus.CounterVec
	sessions     *prometheus.CounterVec
	lastSuccess  *prometheus.GaugeVec
}

// NewRecorder returns a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Duration of provisioning steps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
			},
			[]string{"family", "step"},
		),
		stepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "total",
				Help:      "Total number of provisioning steps by result",
			},
			[]string{"family", "step", "result"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "total",
				Help:      "Total number of provisioning sessions by final state",
			},
			[]string{"family", "state"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful session",
			},
			[]string{"family"},
		),
	}
	r.registry.MustRegister(r.stepDuration, r.stepTotal, r.sessions, r.lastSuccess)
	return r
}

// ObserveStep records one finished step.
func (r *Recorder) ObserveStep(family, step string, elapsed time.Duration, err error) {
	r.stepDuration.WithLabelValues(family, step).Observe(elapsed.Seconds())
	r.stepTotal.WithLabelValues(family, step, result(err)).Inc()
}

// ObserveSession records a session's terminal state.
func (r *Recorder) ObserveSession(family, state string) {
	r.sessions.WithLabelValues(family, state).Inc()
	if state == "succeeded" {
		r.lastSuccess.WithLabelValues(family).SetToCurrentTime()
	}
}

// Registry exposes the underlying registry (for tests and custom export).
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
