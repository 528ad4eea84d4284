package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ebookviewer/internal/domain"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisBookLists) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisBookLists(client, time.Minute)
}

func TestRedisBookLists_RoundTripAndMiss(t *testing.T) {
	_, c := setupRedis(t)
	ctx := context.Background()

	_, err := c.Get(ctx, ScopeFree)
	assert.ErrorIs(t, err, ErrMiss)

	books := []domain.Book{{ID: "b1", Title: "Free book", File: "http://h/uploads/a.pdf"}}
	require.NoError(t, c.Set(ctx, ScopeFree, books, 0))

	got, err := c.Get(ctx, ScopeFree)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Free book", got[0].Title)

	_, err = c.Get(ctx, ScopeAll)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisBookLists_TTLAndInvalidate(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, ScopeAll, []domain.Book{{ID: "b1"}}, 0))
	require.NoError(t, c.Set(ctx, ScopeFree, []domain.Book{}, 0))
	assert.Equal(t, time.Minute, mr.TTL("ebookviewer:books:all"))

	require.NoError(t, c.Invalidate(ctx))
	assert.False(t, mr.Exists("ebookviewer:books:all"))
	assert.False(t, mr.Exists("ebookviewer:books:free"))

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)
	require.NoError(t, c.Set(ctx, ScopeAll, []domain.Book{{ID: "b1"}}, gen))
	assert.True(t, mr.Exists("ebookviewer:books:all"))
	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, ScopeAll)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisBookLists_SetAfterInvalidateIsDropped(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	// an upload lands between the database read and the cache write
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, ScopeAll, []domain.Book{{ID: "stale"}}, gen))
	assert.False(t, mr.Exists("ebookviewer:books:all"))

	_, err = c.Get(ctx, ScopeAll)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisBookLists_CorruptEntry(t *testing.T) {
	mr, c := setupRedis(t)
	require.NoError(t, mr.Set("ebookviewer:books:all", "not json"))

	_, err := c.Get(context.Background(), ScopeAll)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	client, err := Dial(context.Background(), addr, "", 0)
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = Dial(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var c BookLists = Noop{}
	ctx := context.Background()
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, ScopeAll, []domain.Book{{ID: "x"}}, gen))
	_, err = c.Get(ctx, ScopeAll)
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.Invalidate(ctx))
}
