// Package backend определяет единый контракт сокета хранилища и три его
// реализации: таблица SQLite, дерево файловой системы и S3-совместимое
// объектное хранилище.
package backend

import (
	"errors"
	"fmt"

	"blobgate/promise"
)

// ObjectMetadata описывает сохраненный объект
type ObjectMetadata struct {
	// ID - идентификатор объекта, заданный клиентом
	ID string `json:"id"`

	// Size - размер блоба в байтах после декодирования
	Size int64 `json:"size"`

	// CreatedAt - момент фиксации блоба бэкендом, миллисекунды Unix-эпохи
	CreatedAt int64 `json:"created_at"`
}

// Liveness - результат легковесной проверки доступности сокета
type Liveness struct {
	// Online - true, если проверка прошла
	Online bool

	// LatencyMs - задержка проверки в миллисекундах; осмысленно
	// только при Online
	LatencyMs int64
}

// Socket - единый контракт, которому удовлетворяет каждый бэкенд.
// Все операции возвращают Promise; блокирующая работа выполняется
// в отдельной задаче.
type Socket interface {
	// Init выполняет идемпотентный ввод в строй: заменяет is_ready
	// свежей ячейкой и затем завершает ее
	Init() *promise.Promise[bool]

	// IsReady выполняется true после успешной инициализации;
	// после Close отклонен с причиной ErrSocketClosed
	IsReady() *promise.Promise[bool]

	// IsOnline - проверка доступности. Никогда не отклоняется:
	// любой сбой дает Liveness{Online: false}
	IsOnline() *promise.Promise[Liveness]

	// GetObjectMetadata отклоняется с ErrObjectNotFound, если id отсутствует
	GetObjectMetadata(id string) *promise.Promise[ObjectMetadata]

	// ApproveObjectMetadata отклоняется с ErrObjectExists, если id уже
	// занят; иначе выполняется true
	ApproveObjectMetadata(id string, size int64) *promise.Promise[bool]

	// GetObject отклоняется с ErrObjectNotFound, если id отсутствует
	GetObject(id string) *promise.Promise[[]byte]

	// SetObject отклоняется с ErrObjectExists, если id уже занят;
	// при успехе возвращает зафиксированные метаданные
	SetObject(id string, data []byte) *promise.Promise[ObjectMetadata]

	// DelObject удаляет объект; true, если объект существовал.
	// Используется только тестами.
	DelObject(id string) *promise.Promise[bool]

	// Backup сохраняет на диск состояние, которое еще не долговечно.
	// Для изначально долговечных хранилищ - no-op.
	Backup() *promise.Promise[bool]

	// Close освобождает ресурсы; последующие операции отклоняются
	Close() *promise.Promise[bool]
}

// Ошибки уровня одного бэкенда
var (
	// ErrObjectNotFound - объект с таким id отсутствует в сокете
	ErrObjectNotFound = errors.New("backend: object not found")

	// ErrObjectExists - объект с таким id уже зафиксирован в сокете
	ErrObjectExists = errors.New("backend: object already exists")

	// ErrSocketClosed - сокет закрыт, операции невозможны
	ErrSocketClosed = errors.New("backend: socket closed")

	// ErrOpTimeout - ограниченная операция превысила бюджет времени
	ErrOpTimeout = errors.New("backend: operation timed out")
)

// NetworkError - сетевой сбой при обращении к удаленному хранилищу
type NetworkError struct {
	// Host - адрес хранилища, с которым не удалось связаться
	Host string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("backend: network failure talking to %s: %v", e.Host, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
