package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
)

// RedisPrefix prefixes every cache key in Redis.
const RedisPrefix = "flowtp:bytecount:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func openRedis(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("cache: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect to redis %s: %w", addr, err)
	}

	logger.Info("cache_connected", "driver", "redis", "address", addr, "db", cfg.RedisDB)
	return &redisStore{client: client, ttl: cfg.TTL, logger: logger}, nil
}

// RedisKey returns the Redis key holding the entry for key.
func RedisKey(key Key) string {
	k := fmt.Sprintf("%s%s:v%d", RedisPrefix, key.TestID, key.Version)
	if key.Digest != "" {
		k += ":" + key.shortDigest()
	}
	return k
}

func (s *redisStore) Load(ctx context.Context, key Key) (bytecount.Map, bool, error) {
	data, err := s.client.Get(ctx, RedisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	m, err := decode(key, data)
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("cache_hit", "driver", "redis", "key", key.String(), "entries", len(m))
	return m, true, nil
}

func (s *redisStore) Save(ctx context.Context, key Key, m bytecount.Map) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return err
	}
	return s.client.Set(ctx, RedisKey(key), data, s.ttl).Err()
}

func (s *redisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
