package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Instruments exposes live run counters through a Prometheus registry.
type Instruments struct {
	requests  *prometheus.CounterVec
	latency   prometheus.Histogram
	alerts    *prometheus.CounterVec
	stability prometheus.Gauge
	memoryMB  prometheus.Gauge
	errorRate prometheus.Gauge
}

// NewInstruments registers the harness metrics on the given registry.
// The run label distinguishes concurrent runs.
func NewInstruments(reg *prometheus.Registry, runID string) *Instruments {
	labels := prometheus.Labels{"run": runID}

	ins := &Instruments{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "marathon_requests_total",
				Help:        "Total requests executed, by result.",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "marathon_request_duration_seconds",
			Help:        "Request latency in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "marathon_alerts_total",
				Help:        "Alerts raised, by type and severity.",
				ConstLabels: labels,
			},
			[]string{"type", "severity"},
		),
		stability: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "marathon_stability_score",
			Help:        "Composite stability score, 0-100.",
			ConstLabels: labels,
		}),
		memoryMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "marathon_memory_mb",
			Help:        "Latest sampled memory usage in MB.",
			ConstLabels: labels,
		}),
		errorRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "marathon_error_rate_percent",
			Help:        "Latest error rate percentage.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(ins.requests, ins.latency, ins.alerts,
		ins.stability, ins.memoryMB, ins.errorRate)
	return ins
}

func (i *Instruments) observe(o Outcome) {
	result := "success"
	switch {
	case o.Caught:
		result = "caught"
	case o.Uncaught:
		result = "uncaught"
	case !o.Success:
		result = "failure"
	}
	i.requests.WithLabelValues(result).Inc()
	i.latency.Observe(o.ResponseTime.Seconds())
}

func (i *Instruments) observeAlert(a *Alert) {
	i.alerts.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
}

func (i *Instruments) observeStability(score float64) {
	i.stability.Set(score)
}

func (i *Instruments) observeResources(s TrendSample) {
	i.memoryMB.Set(s.MemoryMB)
	i.errorRate.Set(s.ErrorRate)
}
