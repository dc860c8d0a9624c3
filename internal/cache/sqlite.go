package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
)

//go:embed schema.sql
var schema string

type sqliteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("cache: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: migrate %s: %w", path, err)
	}
	logger.Debug("cache_opened", "driver", "sqlite", "path", path)
	return &sqliteStore{db: db, logger: logger}, nil
}

func (s *sqliteStore) Load(ctx context.Context, key Key) (bytecount.Map, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM byte_count_entries WHERE test_id = ? AND version = ? AND digest = ?`,
		key.TestID, key.Version, key.Digest,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: query %s: %w", key, err)
	}
	m, err := decode(key, []byte(data))
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("cache_hit", "driver", "sqlite", "key", key.String(), "entries", len(m))
	return m, true, nil
}

func (s *sqliteStore) Save(ctx context.Context, key Key, m bytecount.Map) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO byte_count_entries(test_id, version, digest, data, entries, created_at) VALUES(?,?,?,?,?,?)
		 ON CONFLICT(test_id, version, digest) DO UPDATE SET
		   data=excluded.data, entries=excluded.entries, created_at=excluded.created_at`,
		key.TestID, key.Version, key.Digest, string(data), len(m), time.Now().UnixMilli(),
	)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
