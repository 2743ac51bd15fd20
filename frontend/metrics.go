package frontend

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Метрики операций диспетчера
	OpsTotal  *prometheus.CounterVec   // Количество операций по исходам
	OpLatency *prometheus.HistogramVec // Латентность операций диспетчера
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics возвращает общий экземпляр метрик пакета
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			OpsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "blobgate_frontend_ops_total",
					Help: "Total number of dispatcher operations",
				},
				[]string{"op", "result"},
			),
			OpLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "blobgate_frontend_op_latency_seconds",
					Help:    "Latency of dispatcher operations in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
		}
	})
	return metrics
}
