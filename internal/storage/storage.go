// Package storage keeps a queryable history of decode results in SQL.
package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// StorageConfig holds configuration for the decode history
type StorageConfig struct {
	DatabaseType     string        `json:"database_type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	RetentionDays    int           `json:"retention_days"`
	CleanupInterval  time.Duration `json:"cleanup_interval"`
	EnableIndexes    bool          `json:"enable_indexes"`
}

// DefaultStorageConfig returns a default storage configuration
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		DatabaseType:     "sqlite3",
		ConnectionString: "./ndpsdecode.db",
		MaxConnections:   10,
		RetentionDays:    30,
		CleanupInterval:  24 * time.Hour,
		EnableIndexes:    true,
	}
}

// Record is one stored decode result.
type Record struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Source    string    `json:"source" db:"source"`
	Grammar   string    `json:"grammar" db:"grammar"`
	Outcome   string    `json:"outcome" db:"outcome"`
	InputHash string    `json:"input_hash" db:"input_hash"`
	InputSize int       `json:"input_size" db:"input_size"`
	Consumed  int       `json:"consumed" db:"consumed"`
	Error     string    `json:"error,omitempty" db:"error"`
	Tree      string    `json:"tree,omitempty" db:"tree"` // JSON encoded
}

// RecordQuery represents query parameters for searching records
type RecordQuery struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Source    string     `json:"source,omitempty"`
	Grammar   string     `json:"grammar,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
	InputHash string     `json:"input_hash,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	OrderDesc bool       `json:"order_desc,omitempty"`
}

// StorageStats summarises the stored history
type StorageStats struct {
	TotalRecords     int64            `json:"total_records"`
	OldestRecord     *time.Time       `json:"oldest_record,omitempty"`
	NewestRecord     *time.Time       `json:"newest_record,omitempty"`
	OutcomeBreakdown map[string]int64 `json:"outcome_breakdown"`
	GrammarBreakdown map[string]int64 `json:"grammar_breakdown"`
}

// Storage persists decode records
type Storage struct {
	config *StorageConfig
	db     *sql.DB
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const recordColumns = `id, timestamp, source, grammar, outcome, input_hash,
	input_size, consumed, error, tree`

// NewStorage opens the database and starts the retention worker.
func NewStorage(cfg config.Provider) (*Storage, error) {
	storageConfig, err := loadStorageConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(storageConfig.DatabaseType, storageConfig.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := storageConfig.MaxConnections
	if storageConfig.ConnectionString == ":memory:" || maxConns < 1 {
		// every connection to :memory: opens its own empty database
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	storage := &Storage{
		config: storageConfig,
		db:     db,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := storage.initSchema(); err != nil {
		storage.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	storage.wg.Add(1)
	go storage.cleanupWorker()

	return storage, nil
}

func loadStorageConfig(cfg config.Provider) (*StorageConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}

	storageConfig := DefaultStorageConfig()

	if dbType, err := cfg.GetString("storage.database_type", storageConfig.DatabaseType); err == nil && dbType != "" {
		storageConfig.DatabaseType = dbType
	}

	if connStr, err := cfg.GetString("storage.connection_string", storageConfig.ConnectionString); err == nil && connStr != "" {
		storageConfig.ConnectionString = connStr
	}

	if maxConn, err := cfg.GetInt("storage.max_connections", storageConfig.MaxConnections); err == nil {
		storageConfig.MaxConnections = maxConn
	}

	if retention, err := cfg.GetInt("storage.retention_days", storageConfig.RetentionDays); err == nil {
		storageConfig.RetentionDays = retention
	}

	if interval, err := cfg.GetDuration("storage.cleanup_interval", storageConfig.CleanupInterval); err == nil && interval > 0 {
		storageConfig.CleanupInterval = interval
	}

	if indexes, err := cfg.GetBool("storage.enable_indexes", storageConfig.EnableIndexes); err == nil {
		storageConfig.EnableIndexes = indexes
	}

	return storageConfig, nil
}

func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		source TEXT NOT NULL,
		grammar TEXT NOT NULL,
		outcome TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		input_size INTEGER NOT NULL,
		consumed INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		tree TEXT NOT NULL DEFAULT ''
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}

	if s.config.EnableIndexes {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp);",
			"CREATE INDEX IF NOT EXISTS idx_records_grammar ON records(grammar);",
			"CREATE INDEX IF NOT EXISTS idx_records_outcome ON records(outcome);",
			"CREATE INDEX IF NOT EXISTS idx_records_input_hash ON records(input_hash);",
		}

		for _, idx := range indexes {
			if _, err := s.db.Exec(idx); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}
	}

	return nil
}

// HashInput returns the hex SHA-256 of a decoded input.
func HashInput(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StoreRecord inserts r and returns its id. A zero Timestamp is set to now.
func (s *Storage) StoreRecord(r *Record) (int64, error) {
	if r == nil {
		return 0, fmt.Errorf("record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Timestamp = r.Timestamp.UTC()

	result, err := s.db.Exec(`
		INSERT INTO records (
			timestamp, source, grammar, outcome, input_hash,
			input_size, consumed, error, tree
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Timestamp, r.Source, r.Grammar, r.Outcome, r.InputHash,
		r.InputSize, r.Consumed, r.Error, r.Tree)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	r.ID = id

	return id, nil
}

func (s *Storage) cleanupWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Cleanup removes records older than the retention period and returns how
// many were deleted. A non-positive retention keeps everything.
func (s *Storage) Cleanup() (int64, error) {
	if s.config.RetentionDays <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.config.RetentionDays)
	result, err := s.db.Exec("DELETE FROM records WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", err)
	}

	return result.RowsAffected()
}

// QueryRecords returns records matching query, oldest first unless OrderDesc is set.
func (s *Storage) QueryRecords(query *RecordQuery) ([]*Record, error) {
	if query == nil {
		query = &RecordQuery{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlQuery := "SELECT " + recordColumns + " FROM records WHERE 1=1"
	args := []any{}

	if query.StartTime != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, query.StartTime.UTC())
	}

	if query.EndTime != nil {
		sqlQuery += " AND timestamp <= ?"
		args = append(args, query.EndTime.UTC())
	}

	if query.Source != "" {
		sqlQuery += " AND source = ?"
		args = append(args, query.Source)
	}

	if query.Grammar != "" {
		sqlQuery += " AND grammar = ?"
		args = append(args, query.Grammar)
	}

	if query.Outcome != "" {
		sqlQuery += " AND outcome = ?"
		args = append(args, query.Outcome)
	}

	if query.InputHash != "" {
		sqlQuery += " AND input_hash = ?"
		args = append(args, query.InputHash)
	}

	if query.OrderDesc {
		sqlQuery += " ORDER BY id DESC"
	} else {
		sqlQuery += " ORDER BY id ASC"
	}

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)
		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetRecord retrieves a single record by ID
func (s *Storage) GetRecord(id int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRecord(s.db.QueryRow("SELECT "+recordColumns+" FROM records WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	r := &Record{}
	err := row.Scan(
		&r.ID, &r.Timestamp, &r.Source, &r.Grammar, &r.Outcome,
		&r.InputHash, &r.InputSize, &r.Consumed, &r.Error, &r.Tree,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetStats returns storage statistics
func (s *Storage) GetStats() (*StorageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &StorageStats{
		OutcomeBreakdown: make(map[string]int64),
		GrammarBreakdown: make(map[string]int64),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("failed to get total records: %w", err)
	}

	if stats.TotalRecords > 0 {
		var oldest, newest time.Time
		err := s.db.QueryRow("SELECT timestamp FROM records ORDER BY timestamp ASC LIMIT 1").Scan(&oldest)
		if err == nil {
			stats.OldestRecord = &oldest
		}
		err = s.db.QueryRow("SELECT timestamp FROM records ORDER BY timestamp DESC LIMIT 1").Scan(&newest)
		if err == nil {
			stats.NewestRecord = &newest
		}
	}

	if err := s.breakdown("outcome", stats.OutcomeBreakdown); err != nil {
		return nil, err
	}
	if err := s.breakdown("grammar", stats.GrammarBreakdown); err != nil {
		return nil, err
	}

	return stats, nil
}

// breakdown counts records per distinct value of column.
func (s *Storage) breakdown(column string, into map[string]int64) error {
	rows, err := s.db.Query(fmt.Sprintf("SELECT %s, COUNT(*) FROM records GROUP BY %s", column, column))
	if err != nil {
		return fmt.Errorf("failed to get %s breakdown: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s breakdown: %w", column, err)
		}
		into[key] = count
	}
	return rows.Err()
}

// Close stops the retention worker and closes the database.
func (s *Storage) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.db.Close()
}
