package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

// Nil is returned by Get when the key does not exist.
const Nil = redis.Nil

type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Client wraps go-redis with the handful of operations the cache needs.
type Client struct {
	rdb    *redis.Client
	logger ectologger.Logger
}

// NewClient connects and pings. The caller owns Close.
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	logger.Infof("Connected to Redis at %s", cfg.Addr)

	return &Client{rdb: rdb, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis returns the underlying client for advanced operations.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get returns Nil when the key is missing.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

func (c *Client) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// GetInt reads a counter; a missing key reads as 0.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// SetIfEqual writes key only while the counter at guardKey still reads
// expected. The guard is watched, so a concurrent Incr aborts the write.
// Reports whether the value was stored.
func (c *Client) SetIfEqual(ctx context.Context, guardKey string, expected int64, key string, value []byte, expiration time.Duration) (bool, error) {
	stored := false
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, guardKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != expected {
			return nil
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, expiration)
			return nil
		}); err != nil {
			return err
		}
		stored = true
		return nil
	}, guardKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// DeleteMatching removes every key matching pattern using SCAN, so it never
// blocks the server the way KEYS would. Returns the number of keys removed.
func (c *Client) DeleteMatching(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete %d keys: %w", len(keys), err)
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
