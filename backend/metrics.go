package backend

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Метрики операций сокетов
	OpsTotal  *prometheus.CounterVec   // Количество операций по сокетам
	OpLatency *prometheus.HistogramVec // Латентность операций сокетов

	// Метрика доступности (1=online, 0=offline) по последней проверке
	SocketOnline *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics возвращает общий экземпляр метрик пакета. Регистрация в
// default registry выполняется один раз на процесс.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			OpsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "blobgate_backend_ops_total",
					Help: "Total number of socket operations",
				},
				[]string{"socket", "op", "result"},
			),
			OpLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "blobgate_backend_op_latency_seconds",
					Help:    "Latency of socket operations in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"socket", "op"},
			),
			SocketOnline: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "blobgate_backend_online",
					Help: "Result of the last liveness probe (1=online, 0=offline)",
				},
				[]string{"socket"},
			),
		}
	})
	return metrics
}
