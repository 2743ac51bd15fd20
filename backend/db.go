package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"blobgate/logger"
	"blobgate/promise"
)

const defaultDBTable = "storage"

// DBSocket хранит блобы в одной таблице встраиваемой SQLite базы.
// Метаданные и тело объекта лежат в одной строке, поэтому фиксация
// атомарна на уровне движка.
type DBSocket struct {
	cfg     Config
	metrics *Metrics

	mu    sync.Mutex
	db    *sql.DB
	ready *promise.Promise[bool]
}

// NewDBSocket создает сокет над файлом SQLite. До вызова Init сокет
// не готов.
func NewDBSocket(cfg Config) *DBSocket {
	if cfg.Name == "" {
		cfg.Name = defaultDBTable
	}
	return &DBSocket{
		cfg:     cfg,
		metrics: NewMetrics(),
		ready:   promise.New[bool](),
	}
}

// Init открывает файл базы и создает таблицу, если ее нет
func (s *DBSocket) Init() *promise.Promise[bool] {
	s.mu.Lock()
	s.ready = promise.New[bool]()
	ready := s.ready
	s.mu.Unlock()

	ready.Adopt(promise.Run(func() (bool, error) {
		if dir := filepath.Dir(s.cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return false, fmt.Errorf("create db directory: %w", err)
			}
		}

		db, err := sql.Open("sqlite", s.cfg.Path)
		if err != nil {
			return false, fmt.Errorf("open sqlite store %s: %w", s.cfg.Path, err)
		}

		ctx, cancel := s.opContext()
		defer cancel()

		schema := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (
				id TEXT PRIMARY KEY,
				size INTEGER NOT NULL,
				created_at INTEGER NOT NULL,
				data BLOB NOT NULL
			)`, s.cfg.Name)
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return false, fmt.Errorf("create table %s: %w", s.cfg.Name, err)
		}

		s.mu.Lock()
		if s.db != nil {
			s.db.Close()
		}
		s.db = db
		s.mu.Unlock()

		logger.Info("DB socket '%s' initialized at %s (table %s)", s.cfg.Alias, s.cfg.Path, s.cfg.Name)
		return true, nil
	}))
	return ready
}

// IsReady возвращает текущую ячейку готовности
func (s *DBSocket) IsReady() *promise.Promise[bool] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// handle возвращает открытую базу либо ошибку закрытого сокета
func (s *DBSocket) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrSocketClosed
	}
	return s.db, nil
}

func (s *DBSocket) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.opTimeout())
}

// IsOnline выполняет SELECT 1 и измеряет его длительность
func (s *DBSocket) IsOnline() *promise.Promise[Liveness] {
	return promise.Run(func() (Liveness, error) {
		db, err := s.handle()
		if err != nil {
			s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(0)
			return Liveness{}, nil
		}

		ctx, cancel := s.opContext()
		defer cancel()

		start := time.Now()
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(0)
			return Liveness{}, nil
		}

		s.metrics.SocketOnline.WithLabelValues(s.cfg.Alias).Set(1)
		return Liveness{Online: true, LatencyMs: time.Since(start).Milliseconds()}, nil
	})
}

// GetObjectMetadata читает размер и момент создания объекта
func (s *DBSocket) GetObjectMetadata(id string) *promise.Promise[ObjectMetadata] {
	return runOp(s.metrics, s.cfg.Alias, "get_object_metadata", s.cfg.opTimeout(), func() (ObjectMetadata, error) {
		db, err := s.handle()
		if err != nil {
			return ObjectMetadata{}, err
		}

		ctx, cancel := s.opContext()
		defer cancel()

		meta := ObjectMetadata{ID: id}
		query := fmt.Sprintf("SELECT size, created_at FROM %q WHERE id = ?", s.cfg.Name)
		err = db.QueryRowContext(ctx, query, id).Scan(&meta.Size, &meta.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ObjectMetadata{}, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
		if err != nil {
			return ObjectMetadata{}, fmt.Errorf("query metadata for %s: %w", id, err)
		}
		return meta, nil
	})
}

// ApproveObjectMetadata выполняется true, если id свободен
func (s *DBSocket) ApproveObjectMetadata(id string, size int64) *promise.Promise[bool] {
	return runOp(s.metrics, s.cfg.Alias, "approve_object_metadata", s.cfg.opTimeout(), func() (bool, error) {
		db, err := s.handle()
		if err != nil {
			return false, err
		}

		ctx, cancel := s.opContext()
		defer cancel()

		var one int
		query := fmt.Sprintf("SELECT 1 FROM %q WHERE id = ?", s.cfg.Name)
		err = db.QueryRowContext(ctx, query, id).Scan(&one)
		if err == nil {
			return false, fmt.Errorf("%w: %s", ErrObjectExists, id)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("check id %s: %w", id, err)
		}
		return true, nil
	})
}

// GetObject читает тело объекта
func (s *DBSocket) GetObject(id string) *promise.Promise[[]byte] {
	return runOp(s.metrics, s.cfg.Alias, "get_object", s.cfg.opTimeout(), func() ([]byte, error) {
		db, err := s.handle()
		if err != nil {
			return nil, err
		}

		ctx, cancel := s.opContext()
		defer cancel()

		var data []byte
		query := fmt.Sprintf("SELECT data FROM %q WHERE id = ?", s.cfg.Name)
		err = db.QueryRowContext(ctx, query, id).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
		}
		if err != nil {
			return nil, fmt.Errorf("query object %s: %w", id, err)
		}
		return data, nil
	})
}

// SetObject проверяет отсутствие id и вставляет строку в одной транзакции
func (s *DBSocket) SetObject(id string, data []byte) *promise.Promise[ObjectMetadata] {
	return runOp(s.metrics, s.cfg.Alias, "set_object", s.cfg.opTimeout(), func() (ObjectMetadata, error) {
		db, err := s.handle()
		if err != nil {
			return ObjectMetadata{}, err
		}

		ctx, cancel := s.opContext()
		defer cancel()

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return ObjectMetadata{}, fmt.Errorf("begin insert tx: %w", err)
		}
		defer tx.Rollback()

		var one int
		query := fmt.Sprintf("SELECT 1 FROM %q WHERE id = ?", s.cfg.Name)
		err = tx.QueryRowContext(ctx, query, id).Scan(&one)
		if err == nil {
			return ObjectMetadata{}, fmt.Errorf("%w: %s", ErrObjectExists, id)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return ObjectMetadata{}, fmt.Errorf("check id %s: %w", id, err)
		}

		meta := ObjectMetadata{
			ID:        id,
			Size:      int64(len(data)),
			CreatedAt: time.Now().UnixMilli(),
		}
		insert := fmt.Sprintf("INSERT INTO %q (id, size, created_at, data) VALUES (?, ?, ?, ?)", s.cfg.Name)
		if _, err := tx.ExecContext(ctx, insert, meta.ID, meta.Size, meta.CreatedAt, data); err != nil {
			return ObjectMetadata{}, fmt.Errorf("insert object %s: %w", id, err)
		}
		if err := tx.Commit(); err != nil {
			return ObjectMetadata{}, fmt.Errorf("commit object %s: %w", id, err)
		}
		return meta, nil
	})
}

// DelObject удаляет строку; true, если строка существовала
func (s *DBSocket) DelObject(id string) *promise.Promise[bool] {
	return runOp(s.metrics, s.cfg.Alias, "del_object", s.cfg.opTimeout(), func() (bool, error) {
		db, err := s.handle()
		if err != nil {
			return false, err
		}

		ctx, cancel := s.opContext()
		defer cancel()

		query := fmt.Sprintf("DELETE FROM %q WHERE id = ?", s.cfg.Name)
		res, err := db.ExecContext(ctx, query, id)
		if err != nil {
			return false, fmt.Errorf("delete object %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return affected > 0, nil
	})
}

// Backup - no-op: движок сбрасывает данные на диск при каждой записи
func (s *DBSocket) Backup() *promise.Promise[bool] {
	return promise.Resolved(true)
}

// Close отклоняет готовность и освобождает дескриптор базы
func (s *DBSocket) Close() *promise.Promise[bool] {
	s.mu.Lock()
	s.ready = promise.Rejected[bool](ErrSocketClosed)
	db := s.db
	s.db = nil
	s.mu.Unlock()

	if db == nil {
		return promise.Resolved(true)
	}
	return promise.Run(func() (bool, error) {
		if err := db.Close(); err != nil {
			return false, fmt.Errorf("close sqlite store: %w", err)
		}
		logger.Debug("DB socket '%s' closed", s.cfg.Alias)
		return true, nil
	})
}
