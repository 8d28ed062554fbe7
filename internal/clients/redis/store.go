package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// Store is the shared key/value layer behind the identifier, catalog and fee
// caches, plus the atomic counters behind quota tracking. TTL semantics:
// ttl <= 0 stores the key without expiry.
type Store interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	GetInt(ctx context.Context, key string) (int64, bool, error)
	Close() error
}

type store struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewStore(log *logger.Logger) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &store{
		log: log.With("service", "RedisStore"),
		rdb: rdb,
	}, nil
}

func (s *store) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A corrupt entry is treated as a miss; the caller re-fetches and
		// overwrites it.
		s.log.Warn("Dropping undecodable cache entry", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *store) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal cache entry %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis ttl %s: %w", key, err)
	}
	// go-redis passes through the redis sentinels: -2 key missing, -1 no expiry.
	switch d {
	case -2 * time.Nanosecond:
		return 0, false, nil
	case -1 * time.Nanosecond:
		return 0, true, nil
	}
	return d, true, nil
}

func (s *store) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	v, err := s.rdb.IncrBy(ctx, key, n).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %s: %w", key, err)
	}
	return v, nil
}

func (s *store) GetInt(ctx context.Context, key string) (int64, bool, error) {
	v, err := s.rdb.Get(ctx, key).Int64()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *store) Close() error {
	return s.rdb.Close()
}
