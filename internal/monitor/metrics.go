package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics собственная телеметрия хаба (не путать с доменными Metric).
type Metrics struct {
	// Ingest: принятые события по статусу
	IngestTotal *prometheus.CounterVec

	// Ingest: отказы по типу (invalid_input, not_found, unavailable)
	IngestErrors *prometheus.CounterVec

	// Latency приема, включая транзакцию в хранилище
	IngestDuration prometheus.Histogram

	// Переходы статуса интеграции, выведенные из метрик
	StatusTransitions *prometheus.CounterVec

	// Latency агрегаций по области (integration, system, dashboard)
	AggregationDuration *prometheus.HistogramVec

	// Fan-out: анонсы, доставки, сброшенные и упавшие доставки
	Announcements     *prometheus.CounterVec
	Deliveries        prometheus.Counter
	DeliveryFailures  prometheus.Counter
	DroppedDeliveries prometheus.Counter
	Observers         prometheus.Gauge

	// Relay: заполненность буфера ретрансляции в Redis (backpressure)
	RelayBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern: если реестр не передан, используем локальный, никуда не подключенный
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		IngestTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hub_ingest_total",
			Help: "Total number of persisted metric events.",
		}, []string{"status"}),

		IngestErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hub_ingest_errors_total",
			Help: "Total number of rejected metric events by reason.",
		}, []string{"reason"}),

		IngestDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "hub_ingest_duration_seconds",
			Help:    "Histogram of ingest latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),

		StatusTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hub_status_transitions_total",
			Help: "Integration status transitions derived from metrics.",
		}, []string{"to"}),

		AggregationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hub_aggregation_duration_seconds",
			Help:    "Histogram of summary computation latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"scope"}),

		Announcements: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hub_announcements_total",
			Help: "Announcements routed to observers by event kind.",
		}, []string{"event"}),

		Deliveries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hub_deliveries_total",
			Help: "Announcements delivered to observers.",
		}),

		DeliveryFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hub_delivery_failures_total",
			Help: "Deliveries that returned an error from the observer.",
		}),

		DroppedDeliveries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hub_dropped_deliveries_total",
			Help: "Announcements dropped because an observer mailbox was full.",
		}),

		Observers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hub_observers",
			Help: "Currently registered observers.",
		}),

		RelayBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hub_relay_buffer_utilization",
			Help: "Current number of announcements waiting in the Redis relay buffer.",
		}),
	}
}
