package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedDoc struct {
	Symbol string   `json:"symbol"`
	Items  []string `json:"items"`
}

func TestMemoryCache_RoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	in := cachedDoc{Symbol: "EURUSD", Items: []string{"a", "b"}}
	require.NoError(t, mc.Set(ctx, DocumentKey("EURUSD", "state", "all"), in, time.Minute))

	var out cachedDoc
	require.NoError(t, mc.Get(ctx, DocumentKey("EURUSD", "state", "all"), &out))
	assert.Equal(t, in, out)

	var raw string
	require.NoError(t, mc.Set(ctx, "plain", "value", 0))
	require.NoError(t, mc.Get(ctx, "plain", &raw))
	assert.Equal(t, "value", raw)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	var out cachedDoc
	assert.ErrorIs(t, mc.Get(ctx, "missing", &out), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", cachedDoc{}, time.Nanosecond))
	time.Sleep(time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &out), ErrCacheMiss)
}

func TestMemoryCache_DeleteByPatternOnlyMatchesSymbol(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, key := range []string{
		DocumentKey("EURUSD", "state", "all"),
		DocumentKey("EURUSD", "elements", "H1", "fvg", false),
		DocumentKey("EURUSD2", "state", "all"),
		DocumentKey("XAUUSD", "trend", "all"),
	} {
		require.NoError(t, mc.Set(ctx, key, "x", time.Minute))
	}

	require.NoError(t, mc.DeleteByPattern(ctx, DocumentPattern("EURUSD")))

	var s string
	assert.ErrorIs(t, mc.Get(ctx, DocumentKey("EURUSD", "state", "all"), &s), ErrCacheMiss)
	assert.ErrorIs(t, mc.Get(ctx, DocumentKey("EURUSD", "elements", "H1", "fvg", false), &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, DocumentKey("EURUSD2", "state", "all"), &s))
	assert.NoError(t, mc.Get(ctx, DocumentKey("XAUUSD", "trend", "all"), &s))
}

func TestMemoryCache_Lock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	ok, err := mc.TryLock(ctx, "auto_eye:lock:/out", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "auto_eye:lock:/out", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "auto_eye:lock:/out"))
	ok, err = mc.TryLock(ctx, "auto_eye:lock:/out", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
	assert.NoError(t, mc.Get(ctx, "c", &s))
}

func TestDocumentKeys(t *testing.T) {
	assert.Equal(t, "doc:EURUSD:state:active", DocumentKey("EURUSD", "state", "active"))
	assert.Equal(t, "doc:EURUSD:*", DocumentPattern("EURUSD"))
}
