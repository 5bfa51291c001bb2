// Package watch feeds capture files dropped into a directory to a handler.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"

	"github.com/geekxflood/ndpsdecode/internal/capture"
)

// Handler processes one settled capture file.
type Handler func(ctx context.Context, path string) error

// WatchConfig holds configuration for the directory watcher
type WatchConfig struct {
	Directory       string        `json:"directory"`
	Pattern         string        `json:"pattern"`
	Debounce        time.Duration `json:"debounce"`
	ProcessExisting bool          `json:"process_existing"`
}

// DefaultWatchConfig returns a default watcher configuration
func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		Directory:       "./captures",
		Pattern:         "*",
		Debounce:        500 * time.Millisecond,
		ProcessExisting: false,
	}
}

// WatchStats tracks watcher statistics
type WatchStats struct {
	EventsReceived int64     `json:"events_received"`
	FilesProcessed int64     `json:"files_processed"`
	FilesFailed    int64     `json:"files_failed"`
	LastProcessed  time.Time `json:"last_processed"`
	LastError      string    `json:"last_error,omitempty"`
}

// Watcher watches one directory for new or rewritten capture files.
type Watcher struct {
	config  *WatchConfig
	logger  logging.Logger
	loader  *capture.Loader
	handler Handler
	watcher *fsnotify.Watcher
	stats   *WatchStats
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewWatcher creates a watcher. loader decides which files are captures.
func NewWatcher(cfg config.Provider, logger logging.Logger, loader *capture.Loader, handler Handler) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	watchConfig := DefaultWatchConfig()

	if dir, err := cfg.GetString("watch.directory", watchConfig.Directory); err == nil && dir != "" {
		watchConfig.Directory = dir
	}

	if pattern, err := cfg.GetString("watch.pattern", watchConfig.Pattern); err == nil && pattern != "" {
		watchConfig.Pattern = pattern
	}

	if debounce, err := cfg.GetDuration("watch.debounce", watchConfig.Debounce); err == nil && debounce > 0 {
		watchConfig.Debounce = debounce
	}

	if existing, err := cfg.GetBool("watch.process_existing", watchConfig.ProcessExisting); err == nil {
		watchConfig.ProcessExisting = existing
	}

	if _, err := filepath.Match(watchConfig.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid watch pattern %q: %w", watchConfig.Pattern, err)
	}

	return &Watcher{
		config:  watchConfig,
		logger:  logger.With("component", "watch"),
		loader:  loader,
		handler: handler,
		stats:   &WatchStats{},
	}, nil
}

// GetConfig returns the watcher configuration
func (w *Watcher) GetConfig() *WatchConfig {
	return w.config
}

// SetDirectory overrides the watched directory. It has no effect once started.
func (w *Watcher) SetDirectory(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		w.config.Directory = dir
	}
}

// Start begins watching. Files already present are handled first when
// process_existing is set.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(w.config.Directory); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", w.config.Directory, err)
	}

	w.watcher = watcher
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.running = true

	var existing []string
	if w.config.ProcessExisting {
		paths, err := w.loader.ScanDirectory(w.config.Directory)
		if err != nil {
			w.logger.Warn("Failed to scan existing captures", "directory", w.config.Directory, "error", err.Error())
		}
		for _, path := range paths {
			if w.matches(path) {
				existing = append(existing, path)
			}
		}
	}

	w.logger.Info("Watching capture directory",
		"directory", w.config.Directory,
		"pattern", w.config.Pattern,
		"debounce", w.config.Debounce,
		"existing", len(existing))

	w.wg.Add(1)
	go w.watchFiles(existing)

	return nil
}

// Stop stops the watcher and waits for in-flight files.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	w.logger.Info("Stopped watching capture directory", "directory", w.config.Directory)
	return nil
}

// IsRunning reports whether the watcher is started.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats returns watcher statistics
func (w *Watcher) GetStats() *WatchStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := *w.stats
	return &stats
}

func (w *Watcher) matches(path string) bool {
	if !w.loader.Matches(path) {
		return false
	}
	matched, _ := filepath.Match(w.config.Pattern, filepath.Base(path))
	return matched
}

// watchFiles collects create and write events until the directory has been
// quiet for the debounce interval, then handles each pending file once.
func (w *Watcher) watchFiles(existing []string) {
	defer w.wg.Done()

	for _, path := range existing {
		if w.ctx.Err() != nil {
			return
		}
		w.handle(path)
	}

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			w.logger.Debug("File system event received",
				"file", event.Name,
				"operation", event.Op.String())

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}

			w.mu.Lock()
			w.stats.EventsReceived++
			w.mu.Unlock()

			pending[event.Name] = struct{}{}
			debounceTimer.Reset(w.config.Debounce)

		case <-debounceTimer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			for _, path := range paths {
				w.handle(path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(path string) {
	err := w.handler(w.ctx, path)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.LastProcessed = time.Now()
	if err != nil {
		w.stats.FilesFailed++
		w.stats.LastError = err.Error()
		w.logger.Error("Failed to process capture", "file", path, "error", err.Error())
		return
	}
	w.stats.FilesProcessed++
	w.logger.Debug("Processed capture", "file", path)
}
