package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит системные метрики процесса. Метрики предметной
// области живут в своих пакетах (apigw, backend, frontend) и попадают
// в тот же default registry.
type Metrics struct {
	MemoryUsage prometheus.Gauge // Текущее выделение памяти процесса
	Goroutines  prometheus.Gauge // Число горутин процесса
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics возвращает общий экземпляр метрик пакета
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			MemoryUsage: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "blobgate_memory_usage_bytes",
					Help: "Current heap allocation of the process",
				},
			),
			Goroutines: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "blobgate_goroutines",
					Help: "Current number of goroutines",
				},
			),
		}
	})
	return metrics
}
