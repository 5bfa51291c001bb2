// Package app wires the decoder, history, metrics, API and directory watcher
// into one long-running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"

	"github.com/geekxflood/ndpsdecode/internal/api"
	"github.com/geekxflood/ndpsdecode/internal/capture"
	"github.com/geekxflood/ndpsdecode/internal/metrics"
	"github.com/geekxflood/ndpsdecode/internal/processor"
	"github.com/geekxflood/ndpsdecode/internal/reload"
	"github.com/geekxflood/ndpsdecode/internal/storage"
	"github.com/geekxflood/ndpsdecode/internal/watch"
)

// AppConfig holds configuration for the main application
type AppConfig struct {
	Name            string        `json:"name"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	StatsInterval   time.Duration `json:"stats_interval"`
	EnableAPI       bool          `json:"enable_api"`
	EnableWatch     bool          `json:"enable_watch"`
	WatchGrammar    string        `json:"watch_grammar"`
}

// DefaultAppConfig returns a default application configuration
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Name:            "ndpsdecode",
		ShutdownTimeout: 30 * time.Second,
		StatsInterval:   30 * time.Second,
		EnableAPI:       true,
		EnableWatch:     false,
	}
}

// AppStats tracks application-wide statistics
type AppStats struct {
	StartTime      time.Time                 `json:"start_time"`
	Uptime         time.Duration             `json:"uptime"`
	FilesProcessed int64                     `json:"files_processed"`
	FilesFailed    int64                     `json:"files_failed"`
	HealthStatus   string                    `json:"health_status"`
	LastError      string                    `json:"last_error,omitempty"`
	LastErrorTime  *time.Time                `json:"last_error_time,omitempty"`
	Processor      *processor.ProcessorStats `json:"processor,omitempty"`
	Storage        *storage.StorageStats     `json:"storage,omitempty"`
	Watch          *watch.WatchStats         `json:"watch,omitempty"`
	Reload         *reload.ReloadStats       `json:"reload,omitempty"`
}

// Application is the decode service.
type Application struct {
	config         *AppConfig
	configProvider config.Provider
	logger         logging.Logger

	metrics   *metrics.MetricsManager
	storage   *storage.Storage
	loader    *capture.Loader
	processor *processor.Processor
	api       *api.Server
	watcher   *watch.Watcher
	reloader  *reload.ReloadManager

	configManager config.Manager
	configFile    string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats *AppStats
	mu    sync.RWMutex
}

// NewApplication creates the application. Components are built by Initialize.
func NewApplication(cfg config.Provider, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	appConfig := DefaultAppConfig()

	if name, err := cfg.GetString("app.name", appConfig.Name); err == nil && name != "" {
		appConfig.Name = name
	}

	if timeout, err := cfg.GetDuration("app.shutdown_timeout", appConfig.ShutdownTimeout); err == nil && timeout > 0 {
		appConfig.ShutdownTimeout = timeout
	}

	if interval, err := cfg.GetDuration("app.stats_interval", appConfig.StatsInterval); err == nil && interval > 0 {
		appConfig.StatsInterval = interval
	}

	if enable, err := cfg.GetBool("app.enable_api", appConfig.EnableAPI); err == nil {
		appConfig.EnableAPI = enable
	}

	if enable, err := cfg.GetBool("app.enable_watch", appConfig.EnableWatch); err == nil {
		appConfig.EnableWatch = enable
	}

	if grammar, err := cfg.GetString("app.watch_grammar", appConfig.WatchGrammar); err == nil {
		appConfig.WatchGrammar = grammar
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Application{
		config:         appConfig,
		configProvider: cfg,
		logger:         logger.With("component", "app"),
		ctx:            ctx,
		cancel:         cancel,
		stats: &AppStats{
			StartTime:    time.Now(),
			HealthStatus: "starting",
		},
	}, nil
}

// GetConfig returns the application configuration
func (a *Application) GetConfig() *AppConfig {
	return a.config
}

// SetConfigManager enables configuration reloads. It must be called before
// Initialize; configFile is watched for changes when it is not empty.
func (a *Application) SetConfigManager(manager config.Manager, configFile string) {
	a.configManager = manager
	a.configFile = configFile
}

// Initialize builds every component in dependency order.
func (a *Application) Initialize() error {
	a.logger.Info("Initializing application components")

	if err := a.initializeMetrics(); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := a.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := a.initializeProcessor(); err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	if err := a.initializeAPI(); err != nil {
		return fmt.Errorf("failed to initialize API server: %w", err)
	}

	if err := a.initializeWatcher(); err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}

	if err := a.initializeReload(); err != nil {
		return fmt.Errorf("failed to initialize config reload: %w", err)
	}

	a.setHealth("healthy")
	a.logger.Info("Application components initialized successfully")
	return nil
}

func (a *Application) initializeMetrics() error {
	m, err := metrics.NewMetricsManager(a.configProvider, a.logger)
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

func (a *Application) initializeStorage() error {
	enabled, err := a.configProvider.GetBool("decoder.enable_storage", true)
	if err == nil && !enabled {
		a.logger.Info("Decode history is disabled")
		return nil
	}

	s, err := storage.NewStorage(a.configProvider)
	if err != nil {
		return err
	}
	a.storage = s
	return nil
}

func (a *Application) initializeProcessor() error {
	loader, err := capture.NewLoader(a.configProvider)
	if err != nil {
		return fmt.Errorf("failed to create capture loader: %w", err)
	}
	a.loader = loader

	var store processor.Store
	if a.storage != nil {
		store = a.storage
	}

	p, err := processor.NewProcessor(a.configProvider, a.logger, a.metrics, store)
	if err != nil {
		return err
	}
	a.processor = p
	return nil
}

func (a *Application) initializeAPI() error {
	if !a.config.EnableAPI {
		return nil
	}

	var records api.RecordStore
	if a.storage != nil {
		records = a.storage
	}

	srv, err := api.NewServer(a.configProvider, a.logger, a.processor, records)
	if err != nil {
		return err
	}
	a.api = srv
	return nil
}

func (a *Application) initializeWatcher() error {
	if !a.config.EnableWatch {
		return nil
	}

	w, err := watch.NewWatcher(a.configProvider, a.logger, a.loader, a.ProcessFile)
	if err != nil {
		return err
	}
	a.watcher = w
	return nil
}

func (a *Application) initializeReload() error {
	if a.configManager == nil {
		return nil
	}

	rm, err := reload.NewReloadManager(a.configManager, a.configFile, a.logger)
	if err != nil {
		return err
	}
	rm.Register("processor", a.processor)
	a.reloader = rm
	return nil
}

// Reload re-reads the configuration and applies it to the running components.
func (a *Application) Reload(source string) error {
	if a.reloader == nil {
		return fmt.Errorf("configuration reload is not enabled")
	}
	return a.reloader.TriggerReload(source)
}

// Run starts the components and blocks until ctx is done, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	if a.processor == nil {
		return fmt.Errorf("application is not initialized")
	}

	a.logger.Info("Starting application", "name", a.config.Name)

	if err := a.metrics.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if a.api != nil {
		if err := a.api.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	if a.watcher != nil {
		if err := a.watcher.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
	}

	if a.reloader != nil {
		if err := a.reloader.Start(); err != nil {
			return fmt.Errorf("failed to start config reload: %w", err)
		}
	}

	a.wg.Add(1)
	go a.statsUpdater()

	a.metrics.SetComponentHealth("processor", true)
	a.metrics.SetReady(true)
	a.logger.Info("Application started successfully")

	select {
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	case <-a.ctx.Done():
	}

	return a.Shutdown()
}

// ProcessFile decodes every segment of one capture file.
func (a *Application) ProcessFile(ctx context.Context, path string) error {
	err := a.processFile(ctx, path)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.stats.FilesFailed++
		a.stats.LastError = err.Error()
		now := time.Now()
		a.stats.LastErrorTime = &now
		return err
	}
	a.stats.FilesProcessed++
	return nil
}

func (a *Application) processFile(ctx context.Context, path string) error {
	c, err := a.loader.LoadFile(path)
	if err != nil {
		return err
	}

	results, err := a.processor.ProcessAll(ctx, processor.InputsFromCapture(c, a.config.WatchGrammar))
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", path, err)
	}

	for _, res := range results {
		a.logger.Info("Decoded capture segment",
			"source", res.Source,
			"grammar", res.Grammar,
			"outcome", res.Outcome,
			"consumed", res.Consumed,
			"input_size", res.InputSize,
			"record_id", res.RecordID)
	}
	return nil
}

// Shutdown stops every component in reverse start order.
func (a *Application) Shutdown() error {
	a.logger.Info("Shutting down application")
	a.setHealth("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer shutdownCancel()

	a.cancel()

	var shutdownErrors []error

	if a.reloader != nil {
		if err := a.reloader.Stop(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("config reload shutdown error: %w", err))
		}
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("watcher shutdown error: %w", err))
		}
	}

	if a.api != nil {
		if err := a.api.Stop(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("API shutdown error: %w", err))
		}
	}

	if a.metrics != nil {
		a.metrics.SetReady(false)
		if err := a.metrics.Stop(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics shutdown error: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.logger.Warn("Shutdown timeout reached, forcing exit")
		shutdownErrors = append(shutdownErrors, fmt.Errorf("shutdown timeout"))
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("storage shutdown error: %w", err))
		}
	}

	a.setHealth("stopped")

	if len(shutdownErrors) > 0 {
		a.logger.Error("Shutdown completed with errors", "error_count", len(shutdownErrors))
		return errors.Join(shutdownErrors...)
	}

	a.logger.Info("Application shutdown completed successfully")
	return nil
}

func (a *Application) statsUpdater() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.updateStats()
		}
	}
}

// updateStats refreshes the history gauge and storage health.
func (a *Application) updateStats() {
	if a.storage == nil {
		return
	}

	stats, err := a.storage.GetStats()
	if err != nil {
		a.logger.Warn("Failed to read storage stats", "error", err.Error())
		a.metrics.SetComponentHealth("storage", false)
		return
	}
	a.metrics.SetComponentHealth("storage", true)
	a.metrics.SetRecordsRetained(stats.TotalRecords)
}

func (a *Application) setHealth(status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.HealthStatus = status
}

// GetStats returns a snapshot of the application statistics.
func (a *Application) GetStats() *AppStats {
	a.mu.RLock()
	stats := *a.stats
	a.mu.RUnlock()

	stats.Uptime = time.Since(stats.StartTime)
	if a.processor != nil {
		stats.Processor = a.processor.GetStats()
	}
	if a.storage != nil {
		if s, err := a.storage.GetStats(); err == nil {
			stats.Storage = s
		}
	}
	if a.watcher != nil {
		stats.Watch = a.watcher.GetStats()
	}
	if a.reloader != nil {
		stats.Reload = a.reloader.GetStats()
	}
	return &stats
}

// Processor returns the decode processor. It is nil before Initialize.
func (a *Application) Processor() *processor.Processor {
	return a.processor
}
