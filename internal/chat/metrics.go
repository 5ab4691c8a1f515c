package chat

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for failed exchanges. Completed exchanges use their CompletionReason.
const (
	outcomeStream     = "stream_error"
	outcomeTerminated = "terminated"
	outcomeClosed     = "closed"
	outcomeCanceled   = "canceled"
)

// Metrics holds the Prometheus collectors of a Session.
// A nil *Metrics records nothing.
type Metrics struct {
	opens            *prometheus.CounterVec
	exchanges        *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	responseBytes    prometheus.Histogram
	liveProcesses    prometheus.Gauge
}

// NewMetrics creates the session collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gptrepl",
				Subsystem: "session",
				Name:      "opens_total",
				Help:      "Total number of session open attempts",
			},
			[]string{"result"},
		),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gptrepl",
				Subsystem: "session",
				Name:      "exchanges_total",
				Help:      "Total number of prompt exchanges by outcome",
			},
			[]string{"outcome"},
		),
		exchangeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gptrepl",
				Subsystem: "session",
				Name:      "exchange_duration_seconds",
				Help:      "Duration of completed prompt exchanges in seconds",
				Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64, 128},
			},
		),
		responseBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gptrepl",
				Subsystem: "session",
				Name:      "response_bytes",
				Help:      "Raw output size of completed prompt exchanges",
				Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
			},
		),
		liveProcesses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gptrepl",
				Subsystem: "session",
				Name:      "live_processes",
				Help:      "Chat program processes currently owned by sessions",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.opens, m.exchanges, m.exchangeDuration, m.responseBytes, m.liveProcesses)
	}

	return m
}

func (m *Metrics) openResult(err error) {
	if m == nil {
		return
	}

	if err != nil {
		m.opens.WithLabelValues("error").Inc()
		return
	}

	m.opens.WithLabelValues("ok").Inc()
}

func (m *Metrics) processStarted() {
	if m == nil {
		return
	}

	m.liveProcesses.Inc()
}

func (m *Metrics) processExited() {
	if m == nil {
		return
	}

	m.liveProcesses.Dec()
}

func (m *Metrics) exchangeDone(res *Result) {
	if m == nil {
		return
	}

	m.exchanges.WithLabelValues(string(res.Reason)).Inc()
	m.exchangeDuration.Observe(res.Duration.Seconds())
	m.responseBytes.Observe(float64(len(res.Raw)))
}

func (m *Metrics) exchangeFailed(err error) {
	if m == nil {
		return
	}

	m.exchanges.WithLabelValues(outcomeFor(err)).Inc()
}

// outcomeFor maps an exchange error to its outcome label.
func outcomeFor(err error) string {
	var term *UnexpectedTerminationError

	switch {
	case errors.Is(err, ErrSessionClosed):
		return outcomeClosed
	case errors.As(err, &term):
		return outcomeTerminated
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeStream
	}
}
