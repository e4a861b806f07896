package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	KeyPrefix = "fern:identity:"

	// GenerationKey counts invalidations. It sits outside KeyPrefix so Flush
	// never resets it.
	GenerationKey = "fern:identity-generation"
)

// Cache holds consolidated views keyed by the contact id they were looked up with.
//
// Readers take Generation before reading the store and pass it to Set. Every
// Invalidate and Flush advances the generation, so a view read before a
// concurrent write is never stored after that write's invalidation.
type Cache interface {
	Get(ctx context.Context, contactID int64) (*models.ConsolidatedContact, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, contactID int64, contact models.ConsolidatedContact, generation int64) error
	Invalidate(ctx context.Context, contactIDs ...int64) error
	Flush(ctx context.Context) error
}

// Key returns the redis key for contactID.
func Key(contactID int64) string {
	return KeyPrefix + strconv.FormatInt(contactID, 10)
}

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DeleteMatching(ctx context.Context, pattern string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
	SetIfEqual(ctx context.Context, guardKey string, expected int64, key string, value []byte, expiration time.Duration) (bool, error)
}

type RedisCache struct {
	client store
	ttl    time.Duration
	logger ectologger.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger ectologger.Logger) *RedisCache {
	return newRedisCache(client, ttl, logger)
}

func newRedisCache(client store, ttl time.Duration, logger ectologger.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns nil, nil on a miss.
func (c *RedisCache) Get(ctx context.Context, contactID int64) (*models.ConsolidatedContact, error) {
	ctx, span := tracing.StartSpan(ctx, "cache.Get", attribute.Int64("contact.id", contactID))
	defer span.End()

	raw, err := c.client.Get(ctx, Key(contactID))
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheLookup("miss")
		return nil, nil
	}
	if err != nil {
		metrics.RecordCacheLookup("error")
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("get cached identity %d: %w", contactID, err)
	}

	var contact models.ConsolidatedContact
	if err := json.Unmarshal(raw, &contact); err != nil {
		metrics.RecordCacheLookup("error")
		c.logger.WithContext(ctx).WithError(err).Warnf("Dropping undecodable cache entry for contact %d", contactID)
		_ = c.client.Del(ctx, Key(contactID))
		return nil, nil
	}

	metrics.RecordCacheLookup("hit")
	return &contact, nil
}

func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.client.GetInt(ctx, GenerationKey)
	if err != nil {
		return 0, fmt.Errorf("read identity cache generation: %w", err)
	}
	return generation, nil
}

// Set stores contact unless the cache was invalidated since generation was read.
func (c *RedisCache) Set(ctx context.Context, contactID int64, contact models.ConsolidatedContact, generation int64) error {
	ctx, span := tracing.StartSpan(ctx, "cache.Set", attribute.Int64("contact.id", contactID))
	defer span.End()

	raw, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("encode identity %d: %w", contactID, err)
	}
	stored, err := c.client.SetIfEqual(ctx, GenerationKey, generation, Key(contactID), raw, c.ttl)
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("cache identity %d: %w", contactID, err)
	}
	if !stored {
		metrics.RecordCacheLookup("stale")
		c.logger.WithContext(ctx).Debugf("Skipped caching identity %d read before an invalidation", contactID)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, contactIDs ...int64) error {
	if len(contactIDs) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "cache.Invalidate", attribute.Int("contact.count", len(contactIDs)))
	defer span.End()

	if _, err := c.client.Incr(ctx, GenerationKey); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("advance identity cache generation: %w", err)
	}

	keys := make([]string, 0, len(contactIDs))
	for _, contactID := range contactIDs {
		keys = append(keys, Key(contactID))
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("invalidate %d identities: %w", len(keys), err)
	}
	return nil
}

func (c *RedisCache) Flush(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "cache.Flush")
	defer span.End()

	if _, err := c.client.Incr(ctx, GenerationKey); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("advance identity cache generation: %w", err)
	}

	removed, err := c.client.DeleteMatching(ctx, KeyPrefix+"*")
	if err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("flush identity cache: %w", err)
	}
	c.logger.WithContext(ctx).Debugf("Flushed %d cached identities", removed)
	return nil
}

// NoopCache is used when redis is disabled. Every Get misses.
type NoopCache struct{}

func (NoopCache) Get(context.Context, int64) (*models.ConsolidatedContact, error) {
	return nil, nil
}

func (NoopCache) Generation(context.Context) (int64, error) { return 0, nil }

func (NoopCache) Set(context.Context, int64, models.ConsolidatedContact, int64) error { return nil }

func (NoopCache) Invalidate(context.Context, ...int64) error { return nil }

func (NoopCache) Flush(context.Context) error { return nil }
