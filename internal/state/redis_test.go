package state

import (
	"context"
	"testing"

	"bjs/parser/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testKeyPrefix = "bjs:test:"

func newRedisCache(t *testing.T) (ResumeCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewRedisResumeCache(rdb, testKeyPrefix), srv
}

func TestRedisResumeCacheStartsEmpty(t *testing.T) {
	ctx := context.Background()
	cache, _ := newRedisCache(t)

	done, err := cache.Completed(ctx, domain.Path{"Grocery"})
	require.NoError(t, err)
	require.False(t, done)

	items, ok, err := cache.Items(ctx, domain.Path{"Grocery"})
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, items)
}

func TestRedisResumeCacheRollUp(t *testing.T) {
	ctx := context.Background()
	cache, srv := newRedisCache(t)

	chips := domain.Path{"Grocery", "Snacks", "Chips"}
	kettle := domain.Path{"Grocery", "Snacks", "Chips", "Kettle"}
	nuts := domain.Path{"Grocery", "Snacks", "Nuts"}
	snacks := domain.Path{"Grocery", "Snacks"}
	other := domain.Path{"Home", "Decor"}

	require.NoError(t, cache.PutItems(ctx, chips, map[string]domain.Item{"Salted": item("Salted", chips...)}))
	require.NoError(t, cache.MarkCompleted(ctx, chips))
	require.NoError(t, cache.PutItems(ctx, kettle, map[string]domain.Item{"Sea Salt": item("Sea Salt", kettle...)}))
	require.NoError(t, cache.PutItems(ctx, nuts, map[string]domain.Item{"Almonds": item("Almonds", nuts...)}))
	require.NoError(t, cache.MarkCompleted(ctx, nuts))
	require.NoError(t, cache.PutItems(ctx, other, map[string]domain.Item{"Vase": item("Vase", other...)}))

	merged := map[string]domain.Item{
		"Salted":  item("Salted", chips...),
		"Almonds": item("Almonds", nuts...),
	}
	require.NoError(t, cache.RollUp(ctx, snacks, merged))
	require.NoError(t, cache.MarkCompleted(ctx, snacks))

	for _, child := range []domain.Path{chips, nuts} {
		_, ok, err := cache.Items(ctx, child)
		require.NoError(t, err)
		require.False(t, ok, "direct child %s is removed on roll-up", child)
	}

	_, ok, err := cache.Items(ctx, kettle)
	require.NoError(t, err)
	require.True(t, ok, "grandchildren are not touched by roll-up")

	items, ok, err := cache.Items(ctx, snacks)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, merged, items)

	_, ok, err = cache.Items(ctx, other)
	require.NoError(t, err)
	require.True(t, ok, "unrelated entries survive roll-up")

	for _, path := range []domain.Path{chips, nuts, snacks} {
		done, err := cache.Completed(ctx, path)
		require.NoError(t, err)
		require.True(t, done, path.String())
	}

	keys, err := srv.HKeys(testKeyPrefix + "items")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{kettle.Key(), snacks.Key(), other.Key()}, keys)
}

func TestRedisResumeCacheKeysAreUnambiguous(t *testing.T) {
	ctx := context.Background()
	cache, srv := newRedisCache(t)

	require.NoError(t, cache.MarkCompleted(ctx, domain.Path{"A>B"}))

	done, err := cache.Completed(ctx, domain.Path{"A", "B"})
	require.NoError(t, err)
	require.False(t, done)

	members, err := srv.Members(testKeyPrefix + "completed")
	require.NoError(t, err)
	require.Equal(t, []string{`["A>B"]`}, members)
}

func TestRedisResumeCacheReportsConnectionErrors(t *testing.T) {
	ctx := context.Background()
	cache, srv := newRedisCache(t)
	srv.Close()

	_, err := cache.Completed(ctx, domain.Path{"Grocery"})
	require.Error(t, err)

	_, _, err = cache.Items(ctx, domain.Path{"Grocery"})
	require.Error(t, err)
}
