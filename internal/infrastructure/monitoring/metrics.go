package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/credkit/pkg/tokenprovider"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	TokenCache       *prometheus.CounterVec
	TokenRenewals    *prometheus.CounterVec
	TokenRenewalTime prometheus.Histogram
	StorageOps       *prometheus.CounterVec
	StorageOpLatency *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "credkit"
	}
	factory := promauto.With(reg)
	return &Metrics{
		TokenCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_total",
				Help:      "Token lookups by cache result.",
			},
			[]string{"result"},
		),
		TokenRenewals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_renewals_total",
				Help:      "Token renewal calls by outcome.",
			},
			[]string{"result"},
		),
		TokenRenewalTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "token_renewal_seconds",
				Help:      "Latency of token renewal calls.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		StorageOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_ops_total",
				Help:      "Storage adapter operations by backend, operation and outcome.",
			},
			[]string{"backend", "op", "result"},
		),
		StorageOpLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_op_seconds",
				Help:      "Latency of storage adapter operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "op"},
		),
	}
}

// RecordTokenCache records a cache hit or miss.
func (m *Metrics) RecordTokenCache(hit bool) {
	m.TokenCache.WithLabelValues(resultLabel(hit, "hit", "miss")).Inc()
}

// RecordTokenRenewal records a renewal call.
func (m *Metrics) RecordTokenRenewal(success bool, duration time.Duration) {
	m.TokenRenewals.WithLabelValues(resultLabel(success, "success", "failure")).Inc()
	m.TokenRenewalTime.Observe(duration.Seconds())
}

// RecordStorageOp records a storage adapter call.
func (m *Metrics) RecordStorageOp(backend, op string, err error, duration time.Duration) {
	m.StorageOps.WithLabelValues(backend, op, resultLabel(err == nil, "success", "failure")).Inc()
	m.StorageOpLatency.WithLabelValues(backend, op).Observe(duration.Seconds())
}

func resultLabel(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

var _ tokenprovider.Metrics = (*Metrics)(nil)
