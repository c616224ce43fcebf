package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const counterKey = "counter"

// KVStore is the persisted key-value port the progress counter lives in.
// Both calls block until the backend has answered or the write is durable.
type KVStore interface {
	Get(ctx context.Context, keys ...string) (map[string]int, error)
	Set(ctx context.Context, values map[string]int) error
}

// ProgressStore tracks how many recipients of the batch have been handed
// out. The counter only moves forward and is never retried on failure.
type ProgressStore struct {
	kv     KVStore
	logger *zap.Logger
}

func NewProgressStore(kv KVStore, logger *zap.Logger) *ProgressStore {
	return &ProgressStore{kv: kv, logger: logger}
}

// Counter returns the persisted counter, 0 when it was never written.
func (p *ProgressStore) Counter(ctx context.Context) (int, error) {
	values, err := p.kv.Get(ctx, counterKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read progress counter: %w", err)
	}
	return values[counterKey], nil
}

func (p *ProgressStore) Increment(ctx context.Context) (int, error) {
	current, err := p.Counter(ctx)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := p.kv.Set(ctx, map[string]int{counterKey: next}); err != nil {
		return 0, fmt.Errorf("failed to write progress counter: %w", err)
	}
	p.logger.Info("Progress counter advanced", zap.Int("counter", next))
	return next, nil
}

func (p *ProgressStore) Reset(ctx context.Context) error {
	if err := p.kv.Set(ctx, map[string]int{counterKey: 0}); err != nil {
		return fmt.Errorf("failed to reset progress counter: %w", err)
	}
	p.logger.Info("Progress counter reset")
	return nil
}

// MemoryKV keeps values in process memory. It does not survive a restart.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]int
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]int)}
}

func (m *MemoryKV) Get(_ context.Context, keys ...string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, values map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

// FileKV stores all keys in a single YAML document. Writes go to a temp
// file that is renamed over the original.
type FileKV struct {
	path string
	mu   sync.Mutex
}

func NewFileKV(path string) (*FileKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileKV{path: path}, nil
}

func (f *FileKV) load() (map[string]int, error) {
	values := make(map[string]int)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	if values == nil {
		values = make(map[string]int)
	}
	return values, nil
}

func (f *FileKV) Get(ctx context.Context, keys ...string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *FileKV) Set(ctx context.Context, values map[string]int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		all[k] = v
	}
	data, err := yaml.Marshal(all)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// SQLiteKV keeps the keys in a one-table SQLite database.
type SQLiteKV struct {
	db *sql.DB
}

func OpenSQLiteKV(ctx context.Context, path string) (*SQLiteKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS progress (
		key   TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create progress table: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, keys ...string) (map[string]int, error) {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		var v int
		err := s.db.QueryRowContext(ctx, `SELECT value FROM progress WHERE key = ?`, k).Scan(&v)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (s *SQLiteKV) Set(ctx context.Context, values map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for k, v := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO progress (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

// OpenKVStore builds the backend named in cfg. The returned closer is never nil.
func OpenKVStore(ctx context.Context, cfg StoreConfig) (KVStore, func() error, error) {
	switch cfg.Backend {
	case StoreBackendSQLite:
		kv, err := OpenSQLiteKV(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv.Close, nil
	case StoreBackendFile, "":
		kv, err := NewFileKV(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
