package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Общее количество запросов к API",
		},
		[]string{"endpoint"},
	)

	RequestHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Длительность обработки запроса",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "landed_cost_calculations_total",
			Help: "Количество расчетов пошлин по каналам (http, kafka-json, kafka-xml, iso8583)",
		},
		[]string{"channel"},
	)

	PIBEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pib_events_total",
			Help: "Применённые события отслеживания PIB",
		},
		[]string{"stage", "status"},
	)
)

// Init - регистрация метрик
func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestHistogram)
	prometheus.MustRegister(CalculationsTotal)
	prometheus.MustRegister(PIBEventsTotal)
}

// ObserveRequest - счетчик и длительность запроса к endpoint
func ObserveRequest(endpoint string, start time.Time) {
	RequestCounter.WithLabelValues(endpoint).Inc()
	RequestHistogram.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// RecordCalculation - расчет по каналу, попадает и в скользящее окно
func RecordCalculation(channel string) {
	CalculationsTotal.WithLabelValues(channel).Inc()
	RecordRequest()
}
