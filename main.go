package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blobgate/apigw"
	"blobgate/backend"
	"blobgate/frontend"
	"blobgate/handlers"
	"blobgate/logger"
	"blobgate/monitoring"
)

func main() {
	// Парсим аргументы командной строки
	var (
		configFile     = flag.String("config", "", "Configuration file path (YAML)")
		listenAddr     = flag.String("listen", "", "Listen address (overrides config)")
		logLevel       = flag.String("log-level", "", "Log level (debug, info, warn, error) (overrides config)")
		metricsAddr    = flag.String("metrics-listen", "", "Metrics server listen address (overrides config)")
		disableMetrics = flag.Bool("disable-metrics", false, "Disable metrics collection (overrides config)")
		useMock        = flag.Bool("mock", false, "Use mock handler instead of the blob dispatcher (overrides config)")
		backupEvery    = flag.Duration("backup-interval", 0, "Interval between backups (overrides config)")
	)
	flag.Parse()

	// Загружаем конфигурацию
	var config *AppConfig
	var err error

	if *configFile != "" {
		config, err = LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		logger.Info("Configuration loaded from %s", *configFile)
	} else {
		config = DefaultAppConfig()
		logger.Info("No config file provided, using defaults")
	}

	// Применяем переопределения из командной строки
	applyCommandLineOverrides(config, *listenAddr, *logLevel, *metricsAddr, *disableMetrics, *useMock, *backupEvery)

	// Устанавливаем уровень логирования
	level := logger.ParseLogLevel(config.Logging.Level)
	logger.SetGlobalLevel(level)

	logger.Info("Blob storage gateway starting...")
	logger.Info("Log level: %s", level.String())

	// Создаем и запускаем модуль мониторинга
	var monitor *monitoring.Monitor
	if config.Monitoring.Enabled {
		monitor, err = monitoring.New(&config.Monitoring)
		if err != nil {
			log.Fatalf("Failed to create monitoring module: %v", err)
		}
		if err := monitor.Start(); err != nil {
			log.Fatalf("Failed to start monitoring module: %v", err)
		}
		logger.Info("Monitoring enabled on %s", config.Monitoring.ListenAddress)
	} else {
		logger.Info("Monitoring disabled")
	}

	// Создаем обработчик в зависимости от конфигурации
	var handler apigw.RequestHandler
	var dispatcher *frontend.Stateful

	if config.Server.UseMock {
		logger.Info("Using Mock Handler (for testing)")
		handler = handlers.NewMockHandler()
	} else {
		// Строим сокеты по конфигурации
		sockets := make([]backend.Socket, 0, len(config.Backends))
		for _, backendConfig := range config.Backends {
			socket, err := backend.New(backendConfig)
			if err != nil {
				log.Fatalf("Failed to create backend: %v", err)
			}
			sockets = append(sockets, socket)
			logger.Info("  - %s (%s)", backendConfig.Alias, backendConfig.Type)
		}

		// Диспетчер с состоянием поверх сокетов
		dispatcher, err = frontend.NewStateful(sockets, config.FrontendConfig())
		if err != nil {
			log.Fatalf("Failed to create frontend: %v", err)
		}

		if _, err := dispatcher.Init().Wait(); err != nil {
			log.Fatalf("Failed to initialize frontend: %v", err)
		}

		handler = handlers.NewBlobHandler(dispatcher)
	}

	// Создаем и запускаем API Gateway
	gateway := apigw.New(config.ToAPIGatewayConfig(), handler)

	logger.Info("Configuration:")
	logger.Info("  Listen Address: %s", config.Server.ListenAddress)
	logger.Info("  Backends: %d", len(config.Backends))
	if config.Backup.Interval > 0 {
		logger.Info("  Backup interval: %v", config.Backup.Interval)
	}

	// Настраиваем graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем API Gateway в отдельной горутине
	go func() {
		if err := gateway.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Периодический бэкап состояния бэкендов
	stopBackup := make(chan struct{})
	if dispatcher != nil && config.Backup.Interval > 0 {
		go runPeriodicBackup(dispatcher, config.Backup.Interval, stopBackup)
	}

	logger.Info("Blob storage gateway started successfully")
	if monitor != nil && monitor.IsEnabled() {
		logger.Info("Metrics available at: %s", monitor.GetMetricsURL())
	}

	// Ждем сигнал для остановки
	sig := <-sigChan
	logger.Info("Received signal %v, shutting down...", sig)

	close(stopBackup)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Останавливаем API Gateway
	if err := gateway.Stop(ctx); err != nil {
		logger.Error("Error stopping API Gateway: %v", err)
	}

	// Закрываем диспетчер: бэкап и закрытие бэкендов
	if dispatcher != nil {
		if _, err := dispatcher.Close().Wait(); err != nil {
			logger.Error("Error closing frontend: %v", err)
		}
	}

	// Останавливаем мониторинг
	if monitor != nil {
		if err := monitor.Stop(ctx); err != nil {
			logger.Error("Error stopping monitoring: %v", err)
		}
	}

	logger.Info("Blob storage gateway stopped")
}

// runPeriodicBackup вызывает Backup диспетчера по таймеру
func runPeriodicBackup(dispatcher *frontend.Stateful, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug("Backup routine started with interval %v", interval)
	for {
		select {
		case <-ticker.C:
			if _, err := dispatcher.Backup().Wait(); err != nil {
				logger.Error("Periodic backup failed: %v", err)
			} else {
				logger.Debug("Periodic backup completed")
			}
		case <-stop:
			logger.Debug("Backup routine stopped")
			return
		}
	}
}

// applyCommandLineOverrides применяет переопределения из командной строки
func applyCommandLineOverrides(config *AppConfig,
	listenAddr, logLevel, metricsAddr string, disableMetrics, useMock bool, backupEvery time.Duration) {

	if listenAddr != "" {
		config.Server.ListenAddress = listenAddr
		logger.Debug("Override: server.listen_address = %s", listenAddr)
	}

	if logLevel != "" {
		config.Logging.Level = logLevel
		logger.Debug("Override: logging.level = %s", logLevel)
	}

	if metricsAddr != "" {
		config.Monitoring.ListenAddress = metricsAddr
		logger.Debug("Override: monitoring.listen_address = %s", metricsAddr)
	}

	if disableMetrics {
		config.Monitoring.Enabled = false
		logger.Debug("Override: monitoring.enabled = false")
	}

	if useMock {
		config.Server.UseMock = true
		logger.Debug("Override: server.use_mock = true")
	}

	if backupEvery > 0 {
		config.Backup.Interval = backupEvery
		logger.Debug("Override: backup.interval = %v", backupEvery)
	}
}
