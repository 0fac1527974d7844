package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "pi_a2u"

// PrometheusRecorder exports events as pi_a2u_events_total, latencies as
// pi_a2u_latency_seconds and moved amounts as pi_a2u_amount_pi_total.
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	amounts   *prometheus.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the collectors with reg. A nil reg uses the
// default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "A2U payment lifecycle events",
		},
		[]string{"type", "network"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "latency_seconds",
			Help:      "A2U operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "network"},
	)

	amounts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "amount_pi_total",
			Help:      "Pi moved by A2U payments",
		},
		[]string{"type", "network"},
	)

	for _, c := range []prometheus.Collector{counters, histogram, amounts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
		amounts:   amounts,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":    name,
		"network": labels["network"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"network":   labels["network"],
	}).Observe(d.Seconds())
}

// AddAmount ignores negative amounts, which a prometheus counter rejects.
func (p *PrometheusRecorder) AddAmount(name string, amount float64, labels map[string]string) {
	if amount < 0 {
		return
	}
	p.amounts.With(prometheus.Labels{
		"type":    name,
		"network": labels["network"],
	}).Add(amount)
}
