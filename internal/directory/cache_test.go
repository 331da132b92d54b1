package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/quotefault/internal/model"
)

// countingDirectory records how often the wrapped directory is consulted.
type countingDirectory struct {
	Directory
	resolveCalls  int
	resolveAsked  [][]string
	quotableCalls int
	err           error
}

func (c *countingDirectory) Resolve(ctx context.Context, uids []string) (map[string]string, error) {
	c.resolveCalls++
	c.resolveAsked = append(c.resolveAsked, uids)
	if c.err != nil {
		return nil, c.err
	}
	return c.Directory.Resolve(ctx, uids)
}

func (c *countingDirectory) QuotableMembers(ctx context.Context) ([]model.User, error) {
	c.quotableCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Directory.QuotableMembers(ctx)
}

func newCounting() *countingDirectory {
	return &countingDirectory{Directory: NewStatic([]Member{
		{UID: "alice", CN: "Alice"},
		{UID: "bob", CN: "Bob"},
	})}
}

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestRedisCache_GetSetExpire(t *testing.T) {
	c, s := newTestRedisCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.True(t, s.Exists("quotefault:directory:k"))

	s.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Ping(ctx))
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestLRUCache_Expiry(t *testing.T) {
	c, err := NewLRUCache(2)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	v, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c, err := NewLRUCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	c.Set(ctx, "a", "1", time.Hour)
	c.Set(ctx, "b", "2", time.Hour)
	c.Set(ctx, "c", "3", time.Hour)

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCached_Resolve(t *testing.T) {
	caches := map[string]func(t *testing.T) Cache{
		"redis": func(t *testing.T) Cache { c, _ := newTestRedisCache(t); return c },
		"lru": func(t *testing.T) Cache {
			c, err := NewLRUCache(16)
			require.NoError(t, err)
			return c
		},
	}
	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			inner := newCounting()
			d := NewCached(inner, newCache(t), time.Minute, discardLogger())
			ctx := context.Background()

			names, err := d.Resolve(ctx, []string{"alice", "ghost"})
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"alice": "Alice"}, names)

			names, err = d.Resolve(ctx, []string{"alice", "bob", "ghost"})
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"alice": "Alice", "bob": "Bob"}, names)

			// alice is served from cache; unknown uids are asked for again.
			require.Len(t, inner.resolveAsked, 2)
			assert.ElementsMatch(t, []string{"bob", "ghost"}, inner.resolveAsked[1])

			_, err = d.Resolve(ctx, []string{"alice", "bob"})
			require.NoError(t, err)
			assert.Equal(t, 2, inner.resolveCalls)
		})
	}
}

func TestCached_QuotableMembers(t *testing.T) {
	inner := newCounting()
	cache, _ := newTestRedisCache(t)
	d := NewCached(inner, cache, time.Minute, discardLogger())
	ctx := context.Background()

	first, err := d.QuotableMembers(ctx)
	require.NoError(t, err)
	second, err := d.QuotableMembers(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.quotableCalls)
}

func TestCached_PropagatesInnerErrors(t *testing.T) {
	inner := newCounting()
	inner.err = errors.New("boom")
	cache, err := NewLRUCache(4)
	require.NoError(t, err)
	d := NewCached(inner, cache, time.Minute, discardLogger())

	_, err = d.Resolve(context.Background(), []string{"alice"})
	assert.ErrorIs(t, err, inner.err)
	_, err = d.QuotableMembers(context.Background())
	assert.ErrorIs(t, err, inner.err)
}

func TestCached_FallsThroughWhenCacheIsDown(t *testing.T) {
	inner := newCounting()
	cache, s := newTestRedisCache(t)
	d := NewCached(inner, cache, time.Minute, discardLogger())
	s.Close()

	names, err := d.Resolve(context.Background(), []string{"alice"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice": "Alice"}, names)
}
