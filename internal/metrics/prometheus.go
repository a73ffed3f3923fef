// Package metrics counts pipeline steps, handshakes and API requests in a
// dedicated Prometheus registry.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "lenspost"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the application's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	stepTotal       *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	handshakeTotal  *prometheus.CounterVec
	apiRequestTotal *prometheus.CounterVec
	publishInFlight prometheus.Gauge
}

// NewCollector registers all metrics in a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	stepTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "step_total",
		Help:      "Pipeline steps by step name and outcome.",
	}, []string{"step", "outcome"})

	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Pipeline step latency by step name.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"step"})

	handshakeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "handshake_total",
		Help:      "Authentication handshakes by outcome.",
	}, []string{"outcome"})

	apiRequestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_request_total",
		Help:      "GraphQL API requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "publish_in_flight",
		Help:      "1 while a publish is running.",
	})

	reg.MustRegister(stepTotal, stepDuration, handshakeTotal, apiRequestTotal, inFlight)

	return &Collector{
		registry:        reg,
		stepTotal:       stepTotal,
		stepDuration:    stepDuration,
		handshakeTotal:  handshakeTotal,
		apiRequestTotal: apiRequestTotal,
		publishInFlight: inFlight,
	}
}

// Registry returns the dedicated registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveStep records one pipeline step.
func (c *Collector) ObserveStep(step string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.stepTotal.WithLabelValues(step, outcome(err)).Inc()
	c.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// ObserveHandshake records one login attempt.
func (c *Collector) ObserveHandshake(err error) {
	if c == nil {
		return
	}
	c.handshakeTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveAPIRequest records one GraphQL operation.
func (c *Collector) ObserveAPIRequest(operation string, err error) {
	if c == nil {
		return
	}
	c.apiRequestTotal.WithLabelValues(operation, outcome(err)).Inc()
}

// SetPublishInFlight flips the in-flight gauge.
func (c *Collector) SetPublishInFlight(active bool) {
	if c == nil {
		return
	}
	if active {
		c.publishInFlight.Set(1)
	} else {
		c.publishInFlight.Set(0)
	}
}

// Handler serves the registry in the Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Dump writes a compact "name{labels} value" listing of all non-histogram
// series, sorted by name.
func (c *Collector) Dump(w io.Writer) error {
	if c == nil {
		return nil
	}

	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				lines = append(lines, fmt.Sprintf("%s_count%s %d", mf.GetName(), formatLabels(m), m.GetHistogram().GetSampleCount()))
				continue
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), formatLabels(m), value))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatLabels(m *dto.Metric) string {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, lp := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
