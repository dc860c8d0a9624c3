// Package cache persists redistributed byte-count maps so repeated analyses
// of the same test skip the redistribution sweep.
//
// Drivers:
//   - "file": one JSON document per entry under a root directory
//   - "sqlite": a single SQLite database file
//   - "redis": a shared Redis instance, entries expire after a TTL
//
// If Driver is empty or "none", caching is disabled.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("cache: unknown driver")

// Key identifies one cached byte-count map. Digest fingerprints the inputs
// the map was computed from, so rewritten inputs miss the cache.
type Key struct {
	TestID  string
	Version int
	Digest  string
}

func (k Key) String() string {
	if k.Digest == "" {
		return fmt.Sprintf("%s/v%d", k.TestID, k.Version)
	}
	return fmt.Sprintf("%s/v%d/%s", k.TestID, k.Version, k.shortDigest())
}

// shortDigest is the digest prefix used in paths and Redis keys.
func (k Key) shortDigest() string {
	if len(k.Digest) > 16 {
		return k.Digest[:16]
	}
	return k.Digest
}

// Store is the persistence API used by the pipeline.
type Store interface {
	// Load returns the cached map for key. ok is false on a miss.
	Load(ctx context.Context, key Key) (m bytecount.Map, ok bool, err error)
	Save(ctx context.Context, key Key, m bytecount.Map) error
	Close() error
}

// Config configures the cache.
type Config struct {
	Driver string
	Dir    string // file driver root
	Path   string // sqlite database file

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration // redis only; 0 means no expiry
}

// CorruptError reports a cache entry that exists but cannot be decoded.
type CorruptError struct {
	Key Key
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache: corrupt entry %s: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Open initializes the configured store.
// It returns (nil, nil) if caching is disabled.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if logger == nil {
		logger = slog.Default()
	}

	switch driver {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, logger)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, logger)
	case "redis":
		return openRedis(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// DeriveTestID returns a stable identifier for a test directory: its base
// name followed by a short name-based UUID of the absolute path, so two
// directories with the same name do not share entries.
func DeriveTestID(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs)))
	return filepath.Base(abs) + "-" + id.String()[:8]
}

// LoadOrCompute returns the cached map for key, or computes and stores it.
// A nil store always computes. refresh skips the lookup but still stores the
// result. hit reports whether the map came from the cache.
func LoadOrCompute(ctx context.Context, store Store, key Key, refresh bool,
	compute func() (bytecount.Map, error)) (m bytecount.Map, hit bool, err error) {

	if store != nil && !refresh {
		m, ok, err := store.Load(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return m, true, nil
		}
	}

	m, err = compute()
	if err != nil {
		return nil, false, err
	}
	if store != nil {
		if err := store.Save(ctx, key, m); err != nil {
			return m, false, fmt.Errorf("cache: save %s: %w", key, err)
		}
	}
	return m, false, nil
}

func decode(key Key, data []byte) (bytecount.Map, error) {
	var m bytecount.Map
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, &CorruptError{Key: key, Err: err}
	}
	return m, nil
}
