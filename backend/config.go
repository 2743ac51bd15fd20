package backend

import (
	"fmt"
	"time"
)

// SocketType определяет вид бэкенда
type SocketType string

const (
	TypeDB SocketType = "db"
	TypeFS SocketType = "fs"
	TypeS3 SocketType = "s3"
)

// Config содержит конфигурацию одного сокета. Набор осмысленных полей
// зависит от Type.
type Config struct {
	// Alias - короткое имя экземпляра (например, "db_1"); под этим
	// именем сокет фигурирует в индексе фронтенда
	Alias string `yaml:"alias"`

	// Type - вид бэкенда: db, fs или s3
	Type SocketType `yaml:"type"`

	// Path - файл хранилища (db)
	Path string `yaml:"path"`

	// Name - имя таблицы (db)
	Name string `yaml:"name"`

	// Root - корневой каталог блобов (fs)
	Root string `yaml:"root"`

	// MetaTable - путь к JSON-файлу метаданных (fs)
	MetaTable string `yaml:"meta_table"`

	// Host - адрес S3-совместимого хранилища, опционально со схемой (s3)
	Host string `yaml:"host"`

	// Bucket - имя бакета (s3)
	Bucket string `yaml:"bucket"`

	// AccessKey, SecretKey - учетные данные подписи запросов (s3)
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// Timeout - бюджет времени одной операции
	Timeout time.Duration `yaml:"timeout"`
}

const defaultOpTimeout = 5 * time.Second

// opTimeout возвращает действующий бюджет времени операции
func (c *Config) opTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultOpTimeout
}

// Validate проверяет корректность конфигурации сокета
func (c *Config) Validate() error {
	if c.Alias == "" {
		return fmt.Errorf("alias cannot be empty")
	}

	switch c.Type {
	case TypeDB:
		if c.Path == "" {
			return fmt.Errorf("path cannot be empty for db backend")
		}
	case TypeFS:
		if c.Root == "" {
			return fmt.Errorf("root cannot be empty for fs backend")
		}
		if c.MetaTable == "" {
			return fmt.Errorf("meta_table cannot be empty for fs backend")
		}
	case TypeS3:
		if c.Host == "" {
			return fmt.Errorf("host cannot be empty for s3 backend")
		}
		if c.Bucket == "" {
			return fmt.Errorf("bucket cannot be empty for s3 backend")
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("access_key and secret_key cannot be empty for s3 backend")
		}
	default:
		return fmt.Errorf("unknown backend type: %q", c.Type)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	return nil
}

// New создает сокет по конфигурации
func New(cfg Config) (Socket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config '%s': %w", cfg.Alias, err)
	}

	switch cfg.Type {
	case TypeDB:
		return NewDBSocket(cfg), nil
	case TypeFS:
		return NewFSSocket(cfg), nil
	case TypeS3:
		return NewS3Socket(cfg), nil
	}
	return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
}
