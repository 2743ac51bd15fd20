package backend

import (
	"fmt"
	"sync"
	"time"

	"blobgate/promise"
)

// MemorySocket - сокет в памяти для тестов.
// Поведение контракта воспроизводится полностью; доступностью и
// сбоями инициализации можно управлять из теста.
type MemorySocket struct {
	alias string

	mu       sync.Mutex
	objects  map[string]memObject
	online   bool
	failInit bool
	closed   bool
	ready    *promise.Promise[bool]

	// Счетчики обращений для проверок в тестах
	SetCalls int
	GetCalls int
}

type memObject struct {
	data []byte
	meta ObjectMetadata
}

// NewMemorySocket создает пустой сокет в памяти
func NewMemorySocket(alias string) *MemorySocket {
	return &MemorySocket{
		alias:   alias,
		objects: make(map[string]memObject),
		online:  true,
		ready:   promise.New[bool](),
	}
}

// SetOnline управляет результатом IsOnline
func (s *MemorySocket) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

// FailInit заставляет следующий Init завершиться ошибкой
func (s *MemorySocket) FailInit(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInit = fail
}

// Contains сообщает, хранится ли объект в сокете
func (s *MemorySocket) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok
}

func (s *MemorySocket) Init() *promise.Promise[bool] {
	s.mu.Lock()
	s.ready = promise.New[bool]()
	ready := s.ready
	fail := s.failInit
	s.closed = false
	s.mu.Unlock()

	if fail {
		ready.Reject(fmt.Errorf("memory socket %s: init failed", s.alias))
	} else {
		ready.Resolve(true)
	}
	return ready
}

func (s *MemorySocket) IsReady() *promise.Promise[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *MemorySocket) IsOnline() *promise.Promise[Liveness] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.online {
		return promise.Resolved(Liveness{})
	}
	return promise.Resolved(Liveness{Online: true, LatencyMs: 0})
}

func (s *MemorySocket) GetObjectMetadata(id string) *promise.Promise[ObjectMetadata] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return promise.Rejected[ObjectMetadata](ErrSocketClosed)
	}
	obj, ok := s.objects[id]
	if !ok {
		return promise.Rejected[ObjectMetadata](fmt.Errorf("%w: %s", ErrObjectNotFound, id))
	}
	return promise.Resolved(obj.meta)
}

func (s *MemorySocket) ApproveObjectMetadata(id string, size int64) *promise.Promise[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return promise.Rejected[bool](ErrSocketClosed)
	}
	if _, ok := s.objects[id]; ok {
		return promise.Rejected[bool](fmt.Errorf("%w: %s", ErrObjectExists, id))
	}
	return promise.Resolved(true)
}

func (s *MemorySocket) GetObject(id string) *promise.Promise[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.closed {
		return promise.Rejected[[]byte](ErrSocketClosed)
	}
	obj, ok := s.objects[id]
	if !ok {
		return promise.Rejected[[]byte](fmt.Errorf("%w: %s", ErrObjectNotFound, id))
	}
	return promise.Resolved(obj.data)
}

func (s *MemorySocket) SetObject(id string, data []byte) *promise.Promise[ObjectMetadata] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetCalls++
	if s.closed {
		return promise.Rejected[ObjectMetadata](ErrSocketClosed)
	}
	if _, ok := s.objects[id]; ok {
		return promise.Rejected[ObjectMetadata](fmt.Errorf("%w: %s", ErrObjectExists, id))
	}
	meta := ObjectMetadata{ID: id, Size: int64(len(data)), CreatedAt: time.Now().UnixMilli()}
	s.objects[id] = memObject{data: append([]byte(nil), data...), meta: meta}
	return promise.Resolved(meta)
}

func (s *MemorySocket) DelObject(id string) *promise.Promise[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return promise.Rejected[bool](ErrSocketClosed)
	}
	_, ok := s.objects[id]
	delete(s.objects, id)
	return promise.Resolved(ok)
}

func (s *MemorySocket) Backup() *promise.Promise[bool] {
	return promise.Resolved(true)
}

func (s *MemorySocket) Close() *promise.Promise[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ready = promise.Rejected[bool](ErrSocketClosed)
	return promise.Resolved(true)
}
