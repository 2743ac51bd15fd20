package monitoring

import (
	"context"
	"fmt"

	"blobgate/logger"
)

// Monitor представляет основной интерфейс модуля мониторинга
type Monitor struct {
	config  *Config
	metrics *Metrics
	server  *Server
}

// New создает новый экземпляр Monitor
func New(config *Config) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitoring config: %w", err)
	}

	metrics := NewMetrics()
	server := NewServer(config, metrics)

	logger.Debug("Monitoring module initialized: enabled=%v, listen=%s, path=%s",
		config.Enabled, config.ListenAddress, config.MetricsPath)

	return &Monitor{
		config:  config,
		metrics: metrics,
		server:  server,
	}, nil
}

// Start запускает модуль мониторинга
func (m *Monitor) Start() error {
	if !m.config.Enabled {
		logger.Info("Monitoring is disabled")
		return nil
	}

	if err := m.server.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// Stop останавливает модуль мониторинга
func (m *Monitor) Stop(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	if err := m.server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop metrics server: %w", err)
	}
	return nil
}

// IsEnabled возвращает true, если мониторинг включен
func (m *Monitor) IsEnabled() bool {
	return m.config.Enabled
}

// GetMetricsURL возвращает URL эндпоинта метрик
func (m *Monitor) GetMetricsURL() string {
	return m.server.GetMetricsURL()
}
