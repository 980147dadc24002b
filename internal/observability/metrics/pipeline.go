package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts proxy pipeline outcomes and upstream vendor
// health. Vendor health feeds failover diagnostics.
type PipelineMetrics struct {
	requests          *prometheus.CounterVec
	providerCalls     *prometheus.CounterVec
	quotaOverage      prometheus.Counter
	sweptReservations prometheus.Counter
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the process-wide pipeline metrics, registering them
// on first use. Prometheus forbids duplicate registration, hence the
// once guard.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tokengate"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "tokengate_proxy_requests_total",
			Help:        "Proxy requests by terminal outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"}, // committed | released | rejected
	)

	providerCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "tokengate_provider_calls_total",
			Help:        "Upstream vendor calls by vendor and result.",
			ConstLabels: constLabels,
		},
		[]string{"vendor", "result"}, // success | transient | rejected
	)

	quotaOverage := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "tokengate_quota_overage_total",
			Help:        "Commits whose actual usage crossed the account period limit.",
			ConstLabels: constLabels,
		},
	)

	sweptReservations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "tokengate_reservations_swept_total",
			Help:        "Expired quota reservations reclaimed by the background sweep.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		requests,
		providerCalls,
		quotaOverage,
		sweptReservations,
	)

	return &PipelineMetrics{
		requests:          requests,
		providerCalls:     providerCalls,
		quotaOverage:      quotaOverage,
		sweptReservations: sweptReservations,
	}
}

func (m *PipelineMetrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) IncProviderCall(vendor, result string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(vendor, result).Inc()
}

func (m *PipelineMetrics) IncQuotaOverage() {
	if m == nil {
		return
	}
	m.quotaOverage.Inc()
}

func (m *PipelineMetrics) IncSweptReservation() {
	if m == nil {
		return
	}
	m.sweptReservations.Inc()
}
