package promise

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrTimeout - причина отклонения таймера по умолчанию
var ErrTimeout = errors.New("promise: timed out")

// All возвращает Promise, выполняющийся срезом значений в порядке входа,
// независимо от порядка завершения. Пустой вход дает синхронно выполненный
// Promise с пустым срезом. Первое отклонение среди входов отклоняет
// результат его причиной.
func All[T any](ps []*Promise[T]) *Promise[[]T] {
	out := New[[]T]()
	if len(ps) == 0 {
		out.Resolve([]T{})
		return out
	}

	results := make([]T, len(ps))
	var remaining int32 = int32(len(ps))

	for i, p := range ps {
		i, p := i, p
		if p == nil {
			out.Reject(errors.New("promise: all over nil promise"))
			break
		}
		p.subscribe(func() {
			if p.State() == Rejected {
				_, err := p.Value()
				out.Reject(err)
				return
			}
			v, _ := p.Value()
			results[i] = v
			if atomic.AddInt32(&remaining, -1) == 0 {
				out.Resolve(results)
			}
		})
	}
	return out
}

// Race возвращает Promise, принимающий исход первого завершившегося входа,
// будь то выполнение или отклонение.
func Race[T any](ps []*Promise[T]) *Promise[T] {
	out := New[T]()
	if len(ps) == 0 {
		out.Reject(errors.New("promise: race over empty input"))
		return out
	}
	for _, p := range ps {
		if p == nil {
			out.Reject(errors.New("promise: race over nil promise"))
			break
		}
		out.Adopt(p)
	}
	return out
}

// Timeout возвращает Promise, который выполняется значением value через
// fulfillAfter либо отклоняется причиной reason через rejectAfter; более
// короткий таймер выигрывает. Нулевая длительность отключает
// соответствующий таймер; при обоих нулях Promise сам не завершается.
func Timeout[T any](fulfillAfter, rejectAfter time.Duration, value T, reason error) *Promise[T] {
	out := New[T]()
	if fulfillAfter > 0 {
		time.AfterFunc(fulfillAfter, func() {
			out.Resolve(value)
		})
	}
	if rejectAfter > 0 {
		if reason == nil {
			reason = ErrTimeout
		}
		r := reason
		time.AfterFunc(rejectAfter, func() {
			out.Reject(r)
		})
	}
	return out
}
