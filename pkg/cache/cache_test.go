package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
)

type memStore struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newMemStore() *memStore {
	return &memStore{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.values[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memStore) DeleteMatching(_ context.Context, pattern string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			delete(m.values, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Incr(_ context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := m.counter(key) + 1
	m.values[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *memStore) GetInt(_ context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counter(key), nil
}

func (m *memStore) SetIfEqual(ctx context.Context, guardKey string, expected int64, key string, value []byte, expiration time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.counter(guardKey) != expected {
		return false, nil
	}
	return true, m.Set(ctx, key, value, expiration)
}

func (m *memStore) counter(key string) int64 {
	n, _ := strconv.ParseInt(string(m.values[key]), 10, 64)
	return n
}

func sampleContact() models.ConsolidatedContact {
	return models.ConsolidatedContact{
		PrimaryContactID:    1,
		Emails:              []string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"},
		PhoneNumbers:        []string{"123456"},
		SecondaryContactIDs: []int64{23},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "fern:identity:42", Key(42))
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss returns nil", func(t *testing.T) {
		c := newRedisCache(newMemStore(), time.Minute, testutil.Logger())
		got, err := c.Get(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get", func(t *testing.T) {
		store := newMemStore()
		c := newRedisCache(store, time.Minute, testutil.Logger())
		require.NoError(t, c.Set(ctx, 23, sampleContact(), 0))
		assert.Equal(t, time.Minute, store.ttls["fern:identity:23"])

		got, err := c.Get(ctx, 23)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, sampleContact(), *got)
	})

	t.Run("undecodable entry is dropped", func(t *testing.T) {
		store := newMemStore()
		store.values[Key(5)] = []byte("{not json")
		c := newRedisCache(store, time.Minute, testutil.Logger())

		got, err := c.Get(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NotContains(t, store.values, Key(5))
	})

	t.Run("invalidate removes only named ids", func(t *testing.T) {
		store := newMemStore()
		c := newRedisCache(store, time.Minute, testutil.Logger())
		for _, id := range []int64{1, 2, 3} {
			require.NoError(t, c.Set(ctx, id, sampleContact(), 0))
		}

		require.NoError(t, c.Invalidate(ctx, 1, 3))
		assert.ElementsMatch(t, []string{Key(2), GenerationKey}, keys(store))
		require.NoError(t, c.Invalidate(ctx))
	})

	t.Run("write read before an invalidation is skipped", func(t *testing.T) {
		store := newMemStore()
		c := newRedisCache(store, time.Minute, testutil.Logger())

		generation, err := c.Generation(ctx)
		require.NoError(t, err)
		require.NoError(t, c.Invalidate(ctx, 7))

		require.NoError(t, c.Set(ctx, 7, sampleContact(), generation))
		got, err := c.Get(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, got, "the stale view must not be cached")

		generation, err = c.Generation(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), generation)
		require.NoError(t, c.Set(ctx, 7, sampleContact(), generation))
		got, err = c.Get(ctx, 7)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("flush removes the prefix only", func(t *testing.T) {
		store := newMemStore()
		store.values["other:1"] = []byte("x")
		c := newRedisCache(store, time.Minute, testutil.Logger())
		require.NoError(t, c.Set(ctx, 1, sampleContact(), 0))

		require.NoError(t, c.Flush(ctx))
		assert.ElementsMatch(t, []string{"other:1", GenerationKey}, keys(store))

		generation, err := c.Generation(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), generation, "flush advances the generation")
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		store := newMemStore()
		store.err = errors.New("connection refused")
		c := newRedisCache(store, time.Minute, testutil.Logger())

		_, err := c.Get(ctx, 1)
		assert.ErrorIs(t, err, store.err)
		_, err = c.Generation(ctx)
		assert.ErrorIs(t, err, store.err)
		assert.ErrorIs(t, c.Set(ctx, 1, sampleContact(), 0), store.err)
		assert.ErrorIs(t, c.Invalidate(ctx, 1), store.err)
		assert.ErrorIs(t, c.Flush(ctx), store.err)
	})
}

func keys(m *memStore) []string {
	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	return out
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	var c Cache = NoopCache{}

	require.NoError(t, c.Set(ctx, 1, sampleContact(), 0))
	generation, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, generation)
	got, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Invalidate(ctx, 1))
	assert.NoError(t, c.Flush(ctx))
}

func TestRedisCacheAgainstRedis(t *testing.T) {
	addr := testutil.NewRedisAddr(t)
	ctx := context.Background()

	client, err := redis.NewClient(ctx, redis.Config{Addr: addr}, testutil.Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var c Cache = NewRedisCache(client, time.Minute, testutil.Logger())

	generation, err := c.Generation(ctx)
	require.NoError(t, err)
	for id := int64(1); id <= 150; id++ {
		require.NoError(t, c.Set(ctx, id, sampleContact(), generation))
	}
	require.NoError(t, client.Set(ctx, "unrelated", []byte("keep"), 0))

	got, err := c.Get(ctx, 150)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.PrimaryContactID)

	require.NoError(t, c.Invalidate(ctx, 150))
	got, err = c.Get(ctx, 150)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Flush(ctx))
	got, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	raw, err := client.Get(ctx, "unrelated")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(raw))

	// generation has advanced twice, so a write taken at the old value is dropped.
	require.NoError(t, c.Set(ctx, 9, sampleContact(), generation))
	got, err = c.Get(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, got)
}
