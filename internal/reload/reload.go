// Package reload re-reads the configuration file while the service runs and
// pushes the new settings to the components that accept them.
package reload

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
)

// maxEvents bounds the reload history kept for GetRecentEvents.
const maxEvents = 50

// ReloadEvent records one reload attempt
type ReloadEvent struct {
	Source     string        `json:"source"`
	Timestamp  time.Time     `json:"timestamp"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Components []string      `json:"components,omitempty"`
}

// Reloader is a component that can apply a new configuration in place.
type Reloader interface {
	Reload(cfg config.Provider) error
}

// ReloadConfig holds configuration for the reload manager
type ReloadConfig struct {
	Enabled              bool          `json:"enabled"`
	ConfigFile           string        `json:"config_file"`
	Delay                time.Duration `json:"delay"`
	ValidateBeforeReload bool          `json:"validate_before_reload"`
}

// DefaultReloadConfig returns a default reload configuration
func DefaultReloadConfig() *ReloadConfig {
	return &ReloadConfig{
		Enabled:              true,
		Delay:                time.Second,
		ValidateBeforeReload: true,
	}
}

// ReloadStats tracks reload statistics
type ReloadStats struct {
	TotalReloads      int64     `json:"total_reloads"`
	SuccessfulReloads int64     `json:"successful_reloads"`
	FailedReloads     int64     `json:"failed_reloads"`
	LastReloadTime    time.Time `json:"last_reload_time,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
}

type namedReloader struct {
	name string
	r    Reloader
}

// ReloadManager watches the configuration file and reloads it on change.
type ReloadManager struct {
	config        *ReloadConfig
	logger        logging.Logger
	configManager config.Manager
	provider      config.Provider
	watcher       *fsnotify.Watcher

	components []namedReloader
	events     []ReloadEvent
	stats      ReloadStats

	mu       sync.RWMutex
	reloadMu sync.Mutex
	stop     chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewReloadManager creates a reload manager for configFile. An empty
// configFile leaves only TriggerReload available.
func NewReloadManager(configManager config.Manager, configFile string, logger logging.Logger) (*ReloadManager, error) {
	if configManager == nil {
		return nil, fmt.Errorf("config manager cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	provider, ok := configManager.(config.Provider)
	if !ok {
		return nil, fmt.Errorf("config manager does not provide configuration values")
	}

	reloadConfig := DefaultReloadConfig()
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config file: %w", err)
		}
		reloadConfig.ConfigFile = abs
	}

	if enabled, err := provider.GetBool("reload.enabled", reloadConfig.Enabled); err == nil {
		reloadConfig.Enabled = enabled
	}

	if delay, err := provider.GetDuration("reload.delay", reloadConfig.Delay); err == nil && delay > 0 {
		reloadConfig.Delay = delay
	}

	if validate, err := provider.GetBool("reload.validate_before_reload", reloadConfig.ValidateBeforeReload); err == nil {
		reloadConfig.ValidateBeforeReload = validate
	}

	return &ReloadManager{
		config:        reloadConfig,
		logger:        logger.With("component", "reload"),
		configManager: configManager,
		provider:      provider,
	}, nil
}

// GetConfig returns the reload configuration
func (rm *ReloadManager) GetConfig() *ReloadConfig {
	return rm.config
}

// Register adds a component. Components reload in registration order.
func (rm *ReloadManager) Register(name string, r Reloader) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.components = append(rm.components, namedReloader{name: name, r: r})
}

// Start begins watching the configuration file. The parent directory is
// watched so editors that replace the file by rename are seen.
func (rm *ReloadManager) Start() error {
	if !rm.config.Enabled || rm.config.ConfigFile == "" {
		rm.logger.Info("Configuration hot reload is disabled")
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.running {
		return fmt.Errorf("reload manager is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(rm.config.ConfigFile)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", rm.config.ConfigFile, err)
	}

	rm.watcher = watcher
	rm.stop = make(chan struct{})
	rm.running = true

	rm.wg.Add(1)
	go rm.watchFile(watcher, rm.stop)

	rm.logger.Info("Watching configuration file", "file", rm.config.ConfigFile, "delay", rm.config.Delay)
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (rm *ReloadManager) Stop() error {
	rm.mu.Lock()
	if !rm.running {
		rm.mu.Unlock()
		return nil
	}
	rm.running = false
	close(rm.stop)
	watcher := rm.watcher
	rm.mu.Unlock()

	err := watcher.Close()
	rm.wg.Wait()
	return err
}

func (rm *ReloadManager) watchFile(watcher *fsnotify.Watcher, stop <-chan struct{}) {
	defer rm.wg.Done()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-stop:
			debounce.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != rm.config.ConfigFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			rm.logger.Debug("Configuration file changed", "operation", event.Op.String())
			pending = true
			debounce.Reset(rm.config.Delay)

		case <-debounce.C:
			if pending {
				pending = false
				// Failures are logged and kept in the event history.
				_ = rm.TriggerReload("file")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			rm.logger.Error("Configuration watcher error", "error", err.Error())
		}
	}
}

// TriggerReload reloads the configuration and every registered component.
// Concurrent calls run one after the other.
func (rm *ReloadManager) TriggerReload(source string) error {
	rm.reloadMu.Lock()
	defer rm.reloadMu.Unlock()

	start := time.Now()
	event := ReloadEvent{Source: source, Timestamp: start}

	err := rm.reload(&event)

	event.Duration = time.Since(start)
	event.Success = err == nil
	if err != nil {
		event.Error = err.Error()
	}
	rm.record(event)

	if err != nil {
		rm.logger.Error("Configuration reload failed", "source", source, "error", err.Error())
		return err
	}
	rm.logger.Info("Configuration reloaded",
		"source", source,
		"components", len(event.Components),
		"duration", event.Duration)
	return nil
}

func (rm *ReloadManager) reload(event *ReloadEvent) error {
	if err := rm.configManager.Reload(); err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	if rm.config.ValidateBeforeReload {
		if err := rm.configManager.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	rm.mu.RLock()
	components := append([]namedReloader(nil), rm.components...)
	rm.mu.RUnlock()

	var errs []error
	for _, c := range components {
		if err := c.r.Reload(rm.provider); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		event.Components = append(event.Components, c.name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to reload %d component(s): %w", len(errs), errs[0])
	}
	return nil
}

func (rm *ReloadManager) record(event ReloadEvent) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.stats.TotalReloads++
	rm.stats.LastReloadTime = event.Timestamp
	if event.Success {
		rm.stats.SuccessfulReloads++
		rm.stats.LastError = ""
	} else {
		rm.stats.FailedReloads++
		rm.stats.LastError = event.Error
	}

	rm.events = append(rm.events, event)
	if len(rm.events) > maxEvents {
		rm.events = rm.events[len(rm.events)-maxEvents:]
	}
}

// GetStats returns reload statistics
func (rm *ReloadManager) GetStats() *ReloadStats {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	stats := rm.stats
	return &stats
}

// GetRecentEvents returns up to limit of the most recent reload events,
// oldest first. A limit of zero returns them all.
func (rm *ReloadManager) GetRecentEvents(limit int) []ReloadEvent {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if limit <= 0 || limit > len(rm.events) {
		limit = len(rm.events)
	}
	events := make([]ReloadEvent, limit)
	copy(events, rm.events[len(rm.events)-limit:])
	return events
}
