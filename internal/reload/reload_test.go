package reload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockConfigManager implements config.Manager for testing
type MockConfigManager struct {
	mu          sync.Mutex
	data        map[string]any
	reloads     int
	reloadErr   error
	validateErr error
}

func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{data: make(map[string]any)}
}

func (m *MockConfigManager) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *MockConfigManager) value(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MockConfigManager) Get(key string) (any, error) {
	if value, exists := m.value(key); exists {
		return value, nil
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetString(key string, defaultValue ...string) (string, error) {
	if value, exists := m.value(key); exists {
		if str, ok := value.(string); ok {
			return str, nil
		}
		return fmt.Sprintf("%v", value), nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetInt(key string, defaultValue ...int) (int, error) {
	if value, exists := m.value(key); exists {
		if i, ok := value.(int); ok {
			return i, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetBool(key string, defaultValue ...bool) (bool, error) {
	if value, exists := m.value(key); exists {
		if b, ok := value.(bool); ok {
			return b, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetDuration(key string, defaultValue ...time.Duration) (time.Duration, error) {
	if value, exists := m.value(key); exists {
		if d, ok := value.(time.Duration); ok {
			return d, nil
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetFloat(key string, defaultValue ...float64) (float64, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetStringSlice(key string, defaultValue ...[]string) ([]string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) GetMap(key string) (map[string]any, error) {
	return nil, fmt.Errorf("key not found: %s", key)
}

func (m *MockConfigManager) IsSet(key string) bool {
	_, exists := m.value(key)
	return exists
}

func (m *MockConfigManager) AllKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	return keys
}

func (m *MockConfigManager) AllSettings() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]any, len(m.data))
	for key, value := range m.data {
		result[key] = value
	}
	return result
}

func (m *MockConfigManager) Exists(key string) bool {
	return m.IsSet(key)
}

func (m *MockConfigManager) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateErr
}

func (m *MockConfigManager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	return m.reloadErr
}

func (m *MockConfigManager) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

func (m *MockConfigManager) Close() error {
	return nil
}

func (m *MockConfigManager) OnConfigChange(callback func(error)) {}

func (m *MockConfigManager) StartHotReload(ctx context.Context) error {
	return nil
}

func (m *MockConfigManager) StopHotReload() {}

// mockReloader counts reloads and remembers the last max_items it saw.
type mockReloader struct {
	mu       sync.Mutex
	count    int
	maxItems int
	err      error
}

func (m *mockReloader) Reload(cfg config.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	if m.err != nil {
		return m.err
	}
	m.maxItems, _ = cfg.GetInt("decoder.max_items", 0)
	return nil
}

func (m *mockReloader) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func createTestLogger() logging.Logger {
	logger, _, _ := logging.NewLogger(logging.Config{Level: "error", Format: "json"})
	return logger
}

func TestNewReloadManager(t *testing.T) {
	cm := NewMockConfigManager()
	cm.Set("reload.delay", 50*time.Millisecond)
	cm.Set("reload.validate_before_reload", false)

	rm, err := NewReloadManager(cm, "config.yaml", createTestLogger())
	require.NoError(t, err)

	cfg := rm.GetConfig()
	assert.True(t, cfg.Enabled)
	assert.True(t, filepath.IsAbs(cfg.ConfigFile))
	assert.Equal(t, "config.yaml", filepath.Base(cfg.ConfigFile))
	assert.Equal(t, 50*time.Millisecond, cfg.Delay)
	assert.False(t, cfg.ValidateBeforeReload)

	_, err = NewReloadManager(nil, "", createTestLogger())
	assert.Error(t, err)

	_, err = NewReloadManager(cm, "", nil)
	assert.Error(t, err)
}

func TestTriggerReload(t *testing.T) {
	cm := NewMockConfigManager()
	rm, err := NewReloadManager(cm, "", createTestLogger())
	require.NoError(t, err)

	first, second := &mockReloader{}, &mockReloader{}
	rm.Register("processor", first)
	rm.Register("other", second)

	cm.Set("decoder.max_items", 42)
	require.NoError(t, rm.TriggerReload("signal"))

	assert.Equal(t, 1, cm.Reloads())
	assert.Equal(t, 42, first.maxItems)
	assert.Equal(t, 1, second.Count())

	events := rm.GetRecentEvents(0)
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, "signal", events[0].Source)
	assert.Equal(t, []string{"processor", "other"}, events[0].Components)

	stats := rm.GetStats()
	assert.Equal(t, int64(1), stats.TotalReloads)
	assert.Equal(t, int64(1), stats.SuccessfulReloads)
}

func TestTriggerReloadFailures(t *testing.T) {
	testCases := []struct {
		name      string
		setup     func(cm *MockConfigManager, r *mockReloader)
		reloaded  int
		errSubstr string
	}{
		{
			name:      "config reload error",
			setup:     func(cm *MockConfigManager, r *mockReloader) { cm.reloadErr = errors.New("bad yaml") },
			errSubstr: "bad yaml",
		},
		{
			name:      "validation error",
			setup:     func(cm *MockConfigManager, r *mockReloader) { cm.validateErr = errors.New("max_items must be > 0") },
			errSubstr: "validation failed",
		},
		{
			name:      "component error",
			setup:     func(cm *MockConfigManager, r *mockReloader) { r.err = errors.New("busy") },
			reloaded:  1,
			errSubstr: "processor: busy",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cm := NewMockConfigManager()
			r := &mockReloader{}
			tc.setup(cm, r)

			rm, err := NewReloadManager(cm, "", createTestLogger())
			require.NoError(t, err)
			rm.Register("processor", r)

			err = rm.TriggerReload("test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errSubstr)
			assert.Equal(t, tc.reloaded, r.Count())

			stats := rm.GetStats()
			assert.Equal(t, int64(1), stats.FailedReloads)
			assert.Equal(t, err.Error(), stats.LastError)
			assert.False(t, rm.GetRecentEvents(1)[0].Success)
		})
	}
}

func TestRecentEventsBounded(t *testing.T) {
	rm, err := NewReloadManager(NewMockConfigManager(), "", createTestLogger())
	require.NoError(t, err)

	for i := 0; i < maxEvents+5; i++ {
		require.NoError(t, rm.TriggerReload(fmt.Sprintf("run-%d", i)))
	}

	assert.Len(t, rm.GetRecentEvents(0), maxEvents)
	last := rm.GetRecentEvents(2)
	require.Len(t, last, 2)
	assert.Equal(t, fmt.Sprintf("run-%d", maxEvents+4), last[1].Source)
}

func TestStartDisabled(t *testing.T) {
	cm := NewMockConfigManager()
	cm.Set("reload.enabled", false)

	rm, err := NewReloadManager(cm, filepath.Join(t.TempDir(), "config.yaml"), createTestLogger())
	require.NoError(t, err)

	require.NoError(t, rm.Start())
	require.NoError(t, rm.Stop())
}

func TestWatchConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("decoder:\n  max_items: 10\n"), 0o644))

	cm := NewMockConfigManager()
	cm.Set("reload.delay", 50*time.Millisecond)

	rm, err := NewReloadManager(cm, path, createTestLogger())
	require.NoError(t, err)

	r := &mockReloader{}
	rm.Register("processor", r)

	require.NoError(t, rm.Start())
	defer rm.Stop()

	assert.Error(t, rm.Start())

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("decoder:\n  max_items: 20\n"), 0o644))

	require.Eventually(t, func() bool { return r.Count() == 1 }, 2*time.Second, 20*time.Millisecond)

	// Several quick writes collapse into one reload.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("decoder:\n  max_items: %d\n", 30+i)), 0o644))
	}
	require.Eventually(t, func() bool { return r.Count() == 2 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, r.Count())

	require.NoError(t, rm.Stop())
	require.NoError(t, rm.Stop())
}
