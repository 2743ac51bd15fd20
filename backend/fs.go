package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"blobgate/logger"
	"blobgate/promise"
)

// fsEntry - запись метаданных одного блоба в sidecar-файле
type fsEntry struct {
	ID        string `json:"id"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
	File      string `json:"file"`
}

// FSSocket хранит блобы в файлах с числовыми именами под корневым
// каталогом. Метаданные живут в памяти и сбрасываются в sidecar JSON
// при Backup.
type FSSocket struct {
	cfg     Config
	metrics *Metrics

	mu      sync.Mutex
	entries map[string]fsEntry
	counter int64
	closed  bool
	ready   *promise.Promise[bool]
}

// NewFSSocket создает сокет над деревом каталогов. До вызова Init
// сокет не готов.
func NewFSSocket(cfg Config) *FSSocket {
	return &FSSocket{
		cfg:     cfg,
		metrics: NewMetrics(),
		entries: make(map[string]fsEntry),
		ready:   promise.New[bool](),
	}
}

// Init создает корневой каталог, читает sidecar и восстанавливает
// счетчик имен как максимум из существующих числовых имен
func (s *FSSocket) Init() *promise.Promise[bool] {
	s.mu.Lock()
	s.ready = promise.New[bool]()
	ready := s.ready
	s.mu.Unlock()

	ready.Adopt(promise.Run(func() (bool, error) {
		if err := os.MkdirAll(s.cfg.Root, 0o755); err != nil {
			return false, fmt.Errorf("create blob root %s: %w", s.cfg.Root, err)
		}

		entries := make(map[string]fsEntry)
		if raw, err := os.ReadFile(s.cfg.MetaTable); err == nil {
			// Некорректное содержимое считается пустым
			if err := json.Unmarshal(raw, &entries); err != nil {
				logger.Warn("FS socket '%s': malformed meta sidecar %s, starting empty: %v",
					s.cfg.Alias, s.cfg.MetaTable, err)
				entries = make(map[string]fsEntry)
			}
		}

		var counter int64
		dirEntries, err := os.ReadDir(s.cfg.Root)
		if err != nil {
			return false, fmt.Errorf("scan blob root %s: %w", s.cfg.Root, err)
		}
		for _, de := range dirEntries {
			if de.IsDir() {
				continue
			}
			if n, err := strconv.ParseInt(de.Name(), 10, 64); err == nil && n > counter {
				counter = n
			}
		}

		s.mu.Lock()
		s.entries = entries
		s.counter = counter
		s.closed = false
		s.mu.Unlock()

		logger.Info("FS socket '%s' initialized at %s (%d objects, counter %d)",
			s.cfg.Alias, s.cfg.Root, len(entries), counter)
		return true, nil
	}))
	return ready
}

// IsReady возвращает текущую ячейку готовности
func (s *FSSocket) IsReady() *promise.Promise[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// IsOnline проверяет доступность корневого каталога
func (s *FSSocket) IsOnline() *promise.Promise[Liveness] {
	return promise.Run(func() (Liveness, error) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(0)
			return Liveness{}, nil
		}

		start := time.Now()
		if _, err := os.Stat(s.cfg.Root); err != nil {
			s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(0)
			return Liveness{}, nil
		}

		s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(1)
		return Liveness{Online: true, LatencyMs: time.Since(start).Milliseconds()}, nil
	})
}

// GetObjectMetadata читает метаданные из карты
func (s *FSSocket) GetObjectMetadata(id string) *promise.Promise[ObjectMetadata] {
	return runOp(s.metrics, s.cfg.Alias, "get_object_metadata", s.cfg.opTimeout(), func() (ObjectMetadata, error) {
		entry, err := s.lookup(id)
		if err != nil {
			return ObjectMetadata{}, err
		}
		return ObjectMetadata{ID: entry.ID, Size: entry.Size, CreatedAt: entry.CreatedAt}, nil
	})
}

// ApproveObjectMetadata выполняется true, если id свободен
func (s *FSSocket) ApproveObjectMetadata(id string, size int64) *promise.Promise[bool] {
	return runOp(s.metrics, s.cfg.Alias, "approve_object_metadata", s.cfg.opTimeout(), func() (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return false, ErrSocketClosed
		}
		if _, ok := s.entries[id]; ok {
			return false, fmt.Errorf("%w: %s", ErrObjectExists, id)
		}
		return true, nil
	})
}

// GetObject читает файл блоба
func (s *FSSocket) GetObject(id string) *promise.Promise[[]byte] {
	return runOp(s.metrics, s.cfg.Alias, "get_object", s.cfg.opTimeout(), func() ([]byte, error) {
		entry, err := s.lookup(id)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.cfg.Root, entry.File))
		if err != nil {
			return nil, fmt.Errorf("read blob file for %s: %w", id, err)
		}
		return data, nil
	})
}

// SetObject пишет файл под следующим числовым именем, затем обновляет
// карту. При ошибке записи карта не меняется.
func (s *FSSocket) SetObject(id string, data []byte) *promise.Promise[ObjectMetadata] {
	return runOp(s.metrics, s.cfg.Alias, "set_object", s.cfg.opTimeout(), func() (ObjectMetadata, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return ObjectMetadata{}, ErrSocketClosed
		}
		if _, ok := s.entries[id]; ok {
			return ObjectMetadata{}, fmt.Errorf("%w: %s", ErrObjectExists, id)
		}

		name := strconv.FormatInt(s.counter+1, 10)
		if err := os.WriteFile(filepath.Join(s.cfg.Root, name), data, 0o644); err != nil {
			return ObjectMetadata{}, fmt.Errorf("write blob file for %s: %w", id, err)
		}
		s.counter++

		entry := fsEntry{
			ID:        id,
			Size:      int64(len(data)),
			CreatedAt: time.Now().UnixMilli(),
			File:      name,
		}
		s.entries[id] = entry
		return ObjectMetadata{ID: entry.ID, Size: entry.Size, CreatedAt: entry.CreatedAt}, nil
	})
}

// DelObject удаляет файл и запись карты; true, если объект существовал
func (s *FSSocket) DelObject(id string) *promise.Promise[bool] {
	return runOp(s.metrics, s.cfg.Alias, "del_object", s.cfg.opTimeout(), func() (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return false, ErrSocketClosed
		}
		entry, ok := s.entries[id]
		if !ok {
			return false, nil
		}
		if err := os.Remove(filepath.Join(s.cfg.Root, entry.File)); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("remove blob file for %s: %w", id, err)
		}
		delete(s.entries, id)
		return true, nil
	})
}

// Backup сериализует карту метаданных в sidecar как pretty JSON
func (s *FSSocket) Backup() *promise.Promise[bool] {
	return runOp(s.metrics, s.cfg.Alias, "backup", s.cfg.opTimeout(), func() (bool, error) {
		s.mu.Lock()
		snapshot := make(map[string]fsEntry, len(s.entries))
		for id, entry := range s.entries {
			snapshot[id] = entry
		}
		s.mu.Unlock()

		raw, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return false, fmt.Errorf("marshal meta sidecar: %w", err)
		}
		if dir := filepath.Dir(s.cfg.MetaTable); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return false, fmt.Errorf("create sidecar directory: %w", err)
			}
		}
		if err := os.WriteFile(s.cfg.MetaTable, raw, 0o644); err != nil {
			return false, fmt.Errorf("write meta sidecar %s: %w", s.cfg.MetaTable, err)
		}
		logger.Debug("FS socket '%s': backed up %d entries to %s", s.cfg.Alias, len(snapshot), s.cfg.MetaTable)
		return true, nil
	})
}

// Close сбрасывает sidecar и помечает сокет закрытым
func (s *FSSocket) Close() *promise.Promise[bool] {
	backup := s.Backup()
	return promise.Then(backup.Catch(func(err error) (bool, error) {
		logger.Error("FS socket '%s': backup on close failed: %v", s.cfg.Alias, err)
		return false, nil
	}), func(bool) (bool, error) {
		s.mu.Lock()
		s.closed = true
		s.ready = promise.Rejected[bool](ErrSocketClosed)
		s.mu.Unlock()
		logger.Debug("FS socket '%s' closed", s.cfg.Alias)
		return true, nil
	})
}

// lookup возвращает запись карты для id
func (s *FSSocket) lookup(id string) (fsEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fsEntry{}, ErrSocketClosed
	}
	entry, ok := s.entries[id]
	if !ok {
		return fsEntry{}, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return entry, nil
}
