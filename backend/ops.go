package backend

import (
	"time"

	"blobgate/promise"
)

// runOp выполняет fn в отдельной задаче, ограничивая ее бюджетом budget
// через гонку с таймером, и записывает метрики операции по завершении.
// Проигравшая гонку задача бросается: ее исход игнорируется.
func runOp[T any](m *Metrics, alias, op string, budget time.Duration, fn func() (T, error)) *promise.Promise[T] {
	start := time.Now()
	var zero T

	raced := promise.Race([]*promise.Promise[T]{
		promise.Run(fn),
		promise.Timeout[T](0, budget, zero, ErrOpTimeout),
	})

	return promise.Then(raced, func(v T) (T, error) {
		m.observe(alias, op, "success", start)
		return v, nil
	}).Catch(func(err error) (T, error) {
		m.observe(alias, op, "error", start)
		return zero, err
	})
}

// observe записывает счетчик и латентность одной операции
func (m *Metrics) observe(alias, op, result string, start time.Time) {
	m.OpsTotal.WithLabelValues(alias, op, result).Inc()
	m.OpLatency.WithLabelValues(alias, op).Observe(time.Since(start).Seconds())
}
