package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"blobgate/apigw"
	"blobgate/backend"
	"blobgate/frontend"
	"blobgate/monitoring"
)

// AppConfig содержит полную конфигурацию приложения
type AppConfig struct {
	// Конфигурация HTTP сервера
	Server ServerConfig `yaml:"server"`

	// Конфигурация логирования
	Logging LoggingConfig `yaml:"logging"`

	// Конфигурация индекса диспетчера
	Frontend frontend.Config `yaml:"frontend"`

	// Упорядоченный список бэкендов; порядок определяет соответствие
	// псевдонимов и сокетов
	Backends []backend.Config `yaml:"backends"`

	// Конфигурация периодического бэкапа
	Backup BackupConfig `yaml:"backup"`

	// Конфигурация мониторинга
	Monitoring monitoring.Config `yaml:"monitoring"`
}

// ServerConfig содержит конфигурацию HTTP сервера
type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	TLSCertFile   string        `yaml:"tls_cert_file"`
	TLSKeyFile    string        `yaml:"tls_key_file"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	UseMock       bool          `yaml:"use_mock"`
}

// LoggingConfig содержит конфигурацию логирования
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BackupConfig содержит конфигурацию периодического бэкапа
type BackupConfig struct {
	// Interval - период между вызовами backup; ноль отключает таймер
	Interval time.Duration `yaml:"interval"`
}

// DefaultAppConfig возвращает конфигурацию по умолчанию
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			ListenAddress: ":8080",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Frontend: frontend.DefaultConfig(),
		Backends: []backend.Config{
			{
				Alias: "db_1",
				Type:  backend.TypeDB,
				Path:  "data/blobs.db",
				Name:  "storage",
			},
			{
				Alias:     "fs_1",
				Type:      backend.TypeFS,
				Root:      "data/blobs",
				MetaTable: "data/blobs-meta.json",
			},
		},
		Backup: BackupConfig{
			Interval: 5 * time.Minute,
		},
		Monitoring: *monitoring.DefaultConfig(),
	}
}

// LoadConfig загружает конфигурацию из файла поверх значений по умолчанию
func LoadConfig(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultAppConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Validate проверяет корректность конфигурации
func (c *AppConfig) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address cannot be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if (c.Server.TLSCertFile != "" && c.Server.TLSKeyFile == "") ||
		(c.Server.TLSCertFile == "" && c.Server.TLSKeyFile != "") {
		return fmt.Errorf("both tls_cert_file and tls_key_file must be specified for TLS")
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend must be configured")
	}
	for i := range c.Backends {
		if err := c.Backends[i].Validate(); err != nil {
			return fmt.Errorf("backend config: %w", err)
		}
	}

	if c.Backup.Interval < 0 {
		return fmt.Errorf("backup.interval cannot be negative")
	}

	if err := c.Monitoring.Validate(); err != nil {
		return fmt.Errorf("monitoring config: %w", err)
	}

	return nil
}

// FrontendConfig достраивает конфигурацию диспетчера: список псевдонимов
// следует порядку секции backends
func (c *AppConfig) FrontendConfig() frontend.Config {
	cfg := c.Frontend
	if len(cfg.Aliases) == 0 {
		cfg.Aliases = make([]string, len(c.Backends))
		for i := range c.Backends {
			cfg.Aliases[i] = c.Backends[i].Alias
		}
	}
	return cfg
}

// ToAPIGatewayConfig преобразует в конфигурацию API Gateway
func (c *AppConfig) ToAPIGatewayConfig() apigw.Config {
	return apigw.Config{
		ListenAddress: c.Server.ListenAddress,
		TLSCertFile:   c.Server.TLSCertFile,
		TLSKeyFile:    c.Server.TLSKeyFile,
		ReadTimeout:   c.Server.ReadTimeout,
		WriteTimeout:  c.Server.WriteTimeout,
	}
}
