package apigw

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Общие метрики запросов
	RequestsTotal  *prometheus.CounterVec   // Общее количество обработанных запросов
	RequestLatency *prometheus.HistogramVec // Латентность запросов
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics возвращает общий экземпляр метрик пакета
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "blobgate_apigw_requests_total",
					Help: "Total number of processed blob API requests",
				},
				[]string{"method", "code"},
			),
			RequestLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "blobgate_apigw_request_latency_seconds",
					Help:    "Latency of blob API requests in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
		}
	})
	return metrics
}
