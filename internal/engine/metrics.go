package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: решения по статусам
	OrchestrationsTotal *prometheus.CounterVec

	// Latency: длительность полной оркестрации (гейты + персистенс)
	OrchestrationDuration prometheus.Histogram

	// Traffic: одиночные события по видам (face/epi)
	EventsTotal *prometheus.CounterVec

	// Errors: отказы хранилища по операциям
	StoreErrorsTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker хранилища (0 - ок, 1 - выбило)
	StoreBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		OrchestrationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "epigate_orchestrations_total",
			Help: "Total number of orchestration decisions by status.",
		}, []string{"decision"}),

		OrchestrationDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "epigate_orchestration_duration_seconds",
			Help:    "Histogram of orchestration latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		EventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "epigate_events_total",
			Help: "Total number of directly submitted detection events.",
		}, []string{"kind"}), // виды: face, epi

		StoreErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "epigate_store_errors_total",
			Help: "Total number of event store failures by operation.",
		}, []string{"op"}),

		StoreBreakerState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "epigate_store_breaker_state",
			Help: "Current state of the store circuit breaker (0=closed, 1=open).",
		}),
	}
}
