package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
)

// EntryFile is the name of a cached map inside its key directory.
const EntryFile = "byte_count.json"

// fileStore keeps one JSON document per key:
//
//	<dir>/<test id>/v<version>/[<digest>/]byte_count.json
type fileStore struct {
	dir    string
	logger *slog.Logger
}

func openFile(cfg Config, logger *slog.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("cache: dir is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create %s: %w", dir, err)
	}
	return &fileStore{dir: dir, logger: logger}, nil
}

func (s *fileStore) path(key Key) string {
	dir := filepath.Join(s.dir, key.TestID, "v"+strconv.Itoa(key.Version))
	if key.Digest != "" {
		dir = filepath.Join(dir, key.shortDigest())
	}
	return filepath.Join(dir, EntryFile)
}

func (s *fileStore) Load(_ context.Context, key Key) (bytecount.Map, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: read %s: %w", key, err)
	}
	m, err := decode(key, data)
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("cache_hit", "driver", "file", "key", key.String(), "entries", len(m))
	return m, true, nil
}

// Save writes to a temporary file and renames it over the entry.
func (s *fileStore) Save(_ context.Context, key Key, m bytecount.Map) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := m.MarshalJSON()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), EntryFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	s.logger.Debug("cache_saved", "driver", "file", "path", path, "entries", len(m))
	return nil
}

func (s *fileStore) Close() error { return nil }
