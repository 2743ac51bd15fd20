package frontend

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"blobgate/backend"
	"blobgate/logger"
	"blobgate/promise"
)

// Stateless - диспетчер без собственного хранилища. Запись уходит на
// случайный доступный сокет, чтение раскрывается веером по всем сокетам.
// Список сокетов неизменен после конструирования.
type Stateless struct {
	sockets []backend.Socket
	metrics *Metrics

	mu       sync.Mutex
	ready    *promise.Promise[bool]
	excluded []bool // сокеты, чей Init провалился, исключаются из выбора
}

// NewStateless создает диспетчер над упорядоченным набором сокетов
func NewStateless(sockets []backend.Socket) *Stateless {
	return &Stateless{
		sockets:  sockets,
		metrics:  NewMetrics(),
		ready:    promise.New[bool](),
		excluded: make([]bool, len(sockets)),
	}
}

// Init инициализирует каждый сокет и дожидается всех попыток.
// Отдельные сбои терпимы: сокет логируется и исключается из выбора,
// но готовность диспетчера наступает в любом случае.
func (f *Stateless) Init() *promise.Promise[bool] {
	f.mu.Lock()
	f.ready = promise.New[bool]()
	ready := f.ready
	f.excluded = make([]bool, len(f.sockets))
	f.mu.Unlock()

	attempts := make([]*promise.Promise[bool], len(f.sockets))
	for i, s := range f.sockets {
		i := i
		attempts[i] = s.Init().Catch(func(err error) (bool, error) {
			logger.Warn("Frontend: backend %d failed to initialize, excluding: %v", i, err)
			f.mu.Lock()
			f.excluded[i] = true
			f.mu.Unlock()
			return false, nil
		})
	}

	ready.Adopt(promise.Then(promise.All(attempts), func(results []bool) (bool, error) {
		up := 0
		for _, ok := range results {
			if ok {
				up++
			}
		}
		logger.Info("Frontend initialized: %d of %d backends up", up, len(results))
		return true, nil
	}))
	return ready
}

// IsReady возвращает текущую ячейку готовности
func (f *Stateless) IsReady() *promise.Promise[bool] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// SocketCount возвращает число присоединенных сокетов
func (f *Stateless) SocketCount() int {
	return len(f.sockets)
}

// eligible возвращает индексы сокетов, не исключенных при инициализации
func (f *Stateless) eligible() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	indices := make([]int, 0, len(f.sockets))
	for i := range f.sockets {
		if !f.excluded[i] {
			indices = append(indices, i)
		}
	}
	return indices
}

// ReadObject запрашивает метаданные и тело у каждого из выбранных
// сокетов параллельно. Отклонение отдельной попытки превращается в
// отсутствие. Результат - первый непустой в порядке входа; если пусто
// везде, выполняется nil без ошибки.
func (f *Stateless) ReadObject(id string, indices []int) *promise.Promise[*StoredObject] {
	start := time.Now()
	if indices == nil {
		indices = f.eligible()
	}

	attempts := make([]*promise.Promise[*StoredObject], len(indices))
	for slot, idx := range indices {
		if idx < 0 || idx >= len(f.sockets) {
			attempts[slot] = promise.Resolved[*StoredObject](nil)
			continue
		}
		s := f.sockets[idx]
		attempts[slot] = promise.ThenP(s.GetObjectMetadata(id), func(meta backend.ObjectMetadata) *promise.Promise[*StoredObject] {
			return promise.Then(s.GetObject(id), func(data []byte) (*StoredObject, error) {
				return &StoredObject{Meta: meta, Data: data}, nil
			})
		}).Catch(func(error) (*StoredObject, error) {
			return nil, nil
		})
	}

	return promise.Then(promise.All(attempts), func(results []*StoredObject) (*StoredObject, error) {
		for _, obj := range results {
			if obj != nil {
				f.observe("read_object", "hit", start)
				return obj, nil
			}
		}
		f.observe("read_object", "miss", start)
		return nil, nil
	})
}

// WriteObject обходит сокеты в случайном порядке и записывает блоб на
// первый доступный. Тело декодируется из base64 лениво - только когда
// нашелся доступный сокет. Отказ выбранного сокета из-за занятого id
// прерывает запись без попыток на других: коллизия означает, что id
// занят глобально. Выполняется индексом выбранного сокета.
func (f *Stateless) WriteObject(id string, data string) *promise.Promise[int] {
	start := time.Now()
	order := f.eligible()
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return f.writeWalk(id, data, order, start)
}

// writeWalk выполняет запись по заданному порядку обхода сокетов
func (f *Stateless) writeWalk(id string, data string, order []int, start time.Time) *promise.Promise[int] {
	return promise.Run(func() (int, error) {
		var blob []byte
		decoded := false

		for _, idx := range order {
			s := f.sockets[idx]

			live, _ := s.IsOnline().Wait()
			if !live.Online {
				logger.Debug("Frontend: backend %d offline, skipping", idx)
				continue
			}

			if !decoded {
				raw, err := base64.StdEncoding.DecodeString(data)
				if err != nil {
					logger.Warn("Frontend: write of %q aborted, payload is not valid base64: %v", id, err)
					f.observe("write_object", "bad_payload", start)
					return -1, fmt.Errorf("%w: %v", ErrBadPayload, err)
				}
				blob = raw
				decoded = true
			}

			if _, err := s.ApproveObjectMetadata(id, int64(len(blob))).Wait(); err != nil {
				logger.Warn("Frontend: backend %d refused id %q: %v", idx, id, err)
				f.observe("write_object", "refused", start)
				return -1, err
			}

			if _, err := s.SetObject(id, blob).Wait(); err != nil {
				logger.Error("Frontend: backend %d failed to store %q: %v", idx, id, err)
				f.observe("write_object", "error", start)
				return -1, err
			}

			logger.Debug("Frontend: stored %q (%d bytes) on backend %d", id, len(blob), idx)
			f.observe("write_object", "success", start)
			return idx, nil
		}

		logger.Warn("Frontend: write of %q failed, no backend online", id)
		f.observe("write_object", "offline", start)
		return -1, ErrNoBackendOnline
	})
}

// Backup раскрывается веером по всем сокетам; ошибки всплывают через all
func (f *Stateless) Backup() *promise.Promise[bool] {
	backups := make([]*promise.Promise[bool], len(f.sockets))
	for i, s := range f.sockets {
		backups[i] = s.Backup()
	}
	return promise.Then(promise.All(backups), func([]bool) (bool, error) {
		return true, nil
	})
}

// Close отклоняет готовность, сбрасывает состояние и закрывает все
// сокеты параллельно. Операции в полете не прерываются.
func (f *Stateless) Close() *promise.Promise[bool] {
	f.mu.Lock()
	f.ready = promise.Rejected[bool](ErrFrontendClosed)
	f.mu.Unlock()

	afterBackup := f.Backup().Catch(func(err error) (bool, error) {
		logger.Error("Frontend: backup on close failed: %v", err)
		return false, nil
	})

	return promise.ThenP(afterBackup, func(bool) *promise.Promise[bool] {
		closes := make([]*promise.Promise[bool], len(f.sockets))
		for i, s := range f.sockets {
			closes[i] = s.Close()
		}
		return promise.Then(promise.All(closes), func([]bool) (bool, error) {
			logger.Info("Frontend closed")
			return true, nil
		})
	})
}

// observe записывает метрики одной операции диспетчера
func (f *Stateless) observe(op, result string, start time.Time) {
	f.metrics.OpsTotal.WithLabelValues(op, result).Inc()
	f.metrics.OpLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
