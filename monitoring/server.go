package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blobgate/logger"
)

// Server представляет HTTP сервер для экспорта метрик Prometheus
type Server struct {
	config  *Config
	metrics *Metrics
	server  *http.Server

	// Канал для остановки сбора системных метрик
	stopSystemMetrics chan struct{}
}

// NewServer создает новый сервер метрик
func NewServer(config *Config, metrics *Metrics) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		config:            config,
		metrics:           metrics,
		stopSystemMetrics: make(chan struct{}),
	}
}

// Start запускает HTTP сервер для метрик
func (s *Server) Start() error {
	if !s.config.Enabled {
		logger.Info("Monitoring is disabled, skipping metrics server start")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.MetricsPath, promhttp.Handler())
	mux.HandleFunc("/health", s.healthHandler)

	s.server = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	if s.config.EnableSystemMetrics {
		go s.collectSystemMetrics()
	}

	go func() {
		logger.Info("Metrics server listening on %s%s", s.config.ListenAddress, s.config.MetricsPath)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed: %v", err)
		}
	}()

	return nil
}

// Stop останавливает HTTP сервер метрик
func (s *Server) Stop(ctx context.Context) error {
	if !s.config.Enabled || s.server == nil {
		return nil
	}

	logger.Info("Stopping metrics server...")
	close(s.stopSystemMetrics)
	return s.server.Shutdown(ctx)
}

// healthHandler обрабатывает запросы health check
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok","service":"blobgate"}`)
}

// collectSystemMetrics собирает системные метрики в фоновом режиме
func (s *Server) collectSystemMetrics() {
	ticker := time.NewTicker(s.config.SystemMetricsInterval)
	defer ticker.Stop()

	s.updateSystemMetrics()
	for {
		select {
		case <-ticker.C:
			s.updateSystemMetrics()
		case <-s.stopSystemMetrics:
			logger.Debug("Stopping system metrics collection")
			return
		}
	}
}

// updateSystemMetrics обновляет системные метрики
func (s *Server) updateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.metrics.MemoryUsage.Set(float64(memStats.Alloc))
	s.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))
}

// GetMetricsURL возвращает полный URL эндпоинта метрик
func (s *Server) GetMetricsURL() string {
	if !s.config.Enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost%s%s", s.config.ListenAddress, s.config.MetricsPath)
}
