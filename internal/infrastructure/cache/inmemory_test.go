package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/revsplit/backend/internal/domain/revenue"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	isNew, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, 1, store.Size())

	require.NoError(t, store.Release(ctx, "evt-1"))
	processed, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	t.Run("lapsed keys can be marked again", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt-2", 10*time.Millisecond)
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "evt-2")
		require.NoError(t, err)
		assert.False(t, processed)

		isNew, err := store.MarkProcessed(ctx, "evt-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s := NewInMemoryIdempotencyStore()
		assert.NoError(t, s.Close())
		assert.NoError(t, s.Close())
	})
}

func TestInMemoryIdempotencyStore_ConcurrentMark(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	const workers = 50
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, _ := store.MarkProcessed(context.Background(), "same", time.Hour)
			if isNew {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)
}

func TestExpiringMap_Sweep(t *testing.T) {
	m := newExpiringMap[int](time.Hour)
	defer m.close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.set("short", 1, time.Minute)
	m.set("long", 2, time.Hour)
	now = now.Add(2 * time.Minute)

	_, ok := m.get("short")
	assert.False(t, ok)
	assert.Equal(t, 2, m.len())

	m.sweep()
	assert.Equal(t, 1, m.len())
	v, ok := m.get("long")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestInMemoryBalanceCache(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryBalanceCache()
	defer cache.Close()

	require.NoError(t, cache.Set(ctx, sampleBalance(revenue.PartyAdmin, valueobject.USD)))
	require.NoError(t, cache.Set(ctx, sampleBalance(revenue.PartyAdmin, "EUR")))
	require.NoError(t, cache.Set(ctx, sampleBalance(revenue.PartyVendor, valueobject.USD)))

	got, ok, err := cache.Get(ctx, revenue.PartyAdmin, "EUR")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, valueobject.Currency("EUR"), got.Currency)

	require.NoError(t, cache.Invalidate(ctx, revenue.PartyAdmin))
	_, ok, _ = cache.Get(ctx, revenue.PartyAdmin, valueobject.USD)
	assert.False(t, ok)
	_, ok, _ = cache.Get(ctx, revenue.PartyVendor, valueobject.USD)
	assert.True(t, ok)
}
