package frontend

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

	"blobgate/backend"
	"blobgate/logger"
	"blobgate/promise"
)

// Stateful - диспетчер с авторитетным индексом. Каждая успешная запись
// фиксирует {id, псевдоним бэкенда, bearer} в таблице индекса; чтение
// идет только на бэкенд, записанный в индексе, и проверяет bearer.
type Stateful struct {
	*Stateless
	cfg Config

	mu    sync.Mutex
	db    *sql.DB
	ready *promise.Promise[bool]
}

// NewStateful создает диспетчер с состоянием. Число псевдонимов должно
// совпадать с числом сокетов: i-й псевдоним именует i-й сокет.
func NewStateful(sockets []backend.Socket, cfg Config) (*Stateful, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frontend config: %w", err)
	}
	if len(cfg.Aliases) != len(sockets) {
		return nil, fmt.Errorf("frontend: alias list length %d does not match socket count %d",
			len(cfg.Aliases), len(sockets))
	}
	return &Stateful{
		Stateless: NewStateless(sockets),
		cfg:       cfg,
		ready:     promise.New[bool](),
	}, nil
}

// Init открывает хранилище индекса, создает таблицу и делегирует
// инициализацию сокетов диспетчеру без состояния
func (f *Stateful) Init() *promise.Promise[bool] {
	f.mu.Lock()
	f.ready = promise.New[bool]()
	ready := f.ready
	f.mu.Unlock()

	ready.Adopt(promise.Run(func() (bool, error) {
		if dir := filepath.Dir(f.cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return false, fmt.Errorf("create index directory: %w", err)
			}
		}

		db, err := sql.Open("sqlite", f.cfg.Path)
		if err != nil {
			return false, fmt.Errorf("open index store %s: %w", f.cfg.Path, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		schema := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (
				id TEXT PRIMARY KEY,
				backend TEXT NOT NULL,
				bearer TEXT NOT NULL
			)`, f.cfg.Name)
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return false, fmt.Errorf("create index table %s: %w", f.cfg.Name, err)
		}

		f.mu.Lock()
		if f.db != nil {
			f.db.Close()
		}
		f.db = db
		f.mu.Unlock()

		logger.Info("Index store opened at %s (table %s)", f.cfg.Path, f.cfg.Name)

		if _, err := f.Stateless.Init().Wait(); err != nil {
			return false, err
		}
		return true, nil
	}))
	return ready
}

// IsReady возвращает ячейку готовности диспетчера с состоянием
func (f *Stateful) IsReady() *promise.Promise[bool] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// indexHandle возвращает открытую базу индекса
func (f *Stateful) indexHandle() (*sql.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db == nil {
		return nil, ErrFrontendClosed
	}
	return f.db, nil
}

// indexEntry - одна строка индекса
type indexEntry struct {
	alias  string
	bearer string
}

// indexLookup читает запись индекса; (nil, nil) при отсутствии
func (f *Stateful) indexLookup(id string) (*indexEntry, error) {
	db, err := f.indexHandle()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var entry indexEntry
	query := fmt.Sprintf("SELECT backend, bearer FROM %q WHERE id = ?", f.cfg.Name)
	err = db.QueryRowContext(ctx, query, id).Scan(&entry.alias, &entry.bearer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index lookup for %s: %w", id, err)
	}
	return &entry, nil
}

// indexInsert фиксирует запись индекса
func (f *Stateful) indexInsert(id, alias, bearer string) error {
	db, err := f.indexHandle()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	insert := fmt.Sprintf("INSERT INTO %q (id, backend, bearer) VALUES (?, ?, ?)", f.cfg.Name)
	if _, err := db.ExecContext(ctx, insert, id, alias, bearer); err != nil {
		return fmt.Errorf("index insert for %s: %w", id, err)
	}
	return nil
}

// socketIndex разрешает псевдоним в индекс сокета
func (f *Stateful) socketIndex(alias string) (int, error) {
	for i, a := range f.cfg.Aliases {
		if a == alias {
			return i, nil
		}
	}
	return -1, fmt.Errorf("frontend: index names unknown backend alias %q", alias)
}

// WriteObject проверяет индекс, делегирует запись диспетчеру без
// состояния и фиксирует выбранный бэкенд в индексе. Индекс - последняя
// мутация записи: если вставка провалилась после сохранения блоба,
// ошибка всплывает наверх.
func (f *Stateful) WriteObject(id, data, bearer string) *promise.Promise[int] {
	return promise.Run(func() (int, error) {
		entry, err := f.indexLookup(id)
		if err != nil {
			return -1, err
		}
		if entry != nil {
			logger.Debug("Frontend: id %q already present in index (backend %s)", id, entry.alias)
			return -1, fmt.Errorf("%w: %s", backend.ErrObjectExists, id)
		}

		idx, err := f.Stateless.WriteObject(id, data).Wait()
		if err != nil {
			return -1, err
		}

		alias := f.cfg.Aliases[idx]
		if err := f.indexInsert(id, alias, bearer); err != nil {
			// Блоб уже сохранен, но индекс не зафиксирован: объект
			// недостижим через индекс. Сообщаем наверх.
			logger.Error("Frontend: blob %q stored on %s but index commit failed: %v", id, alias, err)
			return idx, fmt.Errorf("index commit failed after blob store: %w", err)
		}

		logger.Debug("Frontend: indexed %q -> %s (bearer %q)", id, alias, bearer)
		return idx, nil
	})
}

// ReadObject читает объект строго с бэкенда, записанного в индексе,
// после проверки bearer. Публичные объекты (пустой сохраненный bearer)
// читаются любым вызывающим.
func (f *Stateful) ReadObject(id, bearer string) *promise.Promise[*StoredObject] {
	return promise.Run(func() (*StoredObject, error) {
		entry, err := f.indexLookup(id)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}

		if entry.bearer != "" && entry.bearer != bearer {
			logger.Debug("Frontend: unauthorized read of %q", id)
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, id)
		}

		idx, err := f.socketIndex(entry.alias)
		if err != nil {
			return nil, err
		}
		return f.Stateless.ReadObject(id, []int{idx}).Wait()
	})
}

// Close отклоняет готовность, закрывает хранилище индекса и делегирует
// закрытие сокетов
func (f *Stateful) Close() *promise.Promise[bool] {
	f.mu.Lock()
	f.ready = promise.Rejected[bool](ErrFrontendClosed)
	db := f.db
	f.db = nil
	f.mu.Unlock()

	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("Frontend: closing index store failed: %v", err)
		}
	}
	return f.Stateless.Close()
}
