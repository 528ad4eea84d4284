package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"ebookviewer/internal/domain"
)

var ErrMiss = errors.New("cache miss")

// Scope selects which book list is cached: everything, or only free books.
type Scope string

const (
	ScopeAll  Scope = "all"
	ScopeFree Scope = "free"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ebookviewer_book_cache_lookups_total",
	Help: "Book list cache lookups by scope and result.",
}, []string{"scope", "result"})

// BookLists caches book lists. Every Invalidate bumps a generation; Set only
// writes when the generation still matches the one read before the database
// query, so a list read before an upload cannot overwrite the invalidation.
type BookLists interface {
	Get(ctx context.Context, scope Scope) ([]domain.Book, error)
	Generation(ctx context.Context) (uint64, error)
	Set(ctx context.Context, scope Scope, books []domain.Book, gen uint64) error
	Invalidate(ctx context.Context) error
}

type RedisBookLists struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisBookLists(client *redis.Client, ttl time.Duration) *RedisBookLists {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisBookLists{client: client, ttl: ttl, prefix: "ebookviewer:books:"}
}

// Dial connects and pings; callers fall back to Noop when it fails.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisBookLists) key(scope Scope) string {
	return c.prefix + string(scope)
}

func (c *RedisBookLists) Get(ctx context.Context, scope Scope) ([]domain.Book, error) {
	raw, err := c.client.Get(ctx, c.key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		lookups.WithLabelValues(string(scope), "miss").Inc()
		return nil, ErrMiss
	}
	if err != nil {
		lookups.WithLabelValues(string(scope), "error").Inc()
		return nil, err
	}
	var books []domain.Book
	if err := json.Unmarshal(raw, &books); err != nil {
		lookups.WithLabelValues(string(scope), "error").Inc()
		return nil, fmt.Errorf("decode cached books: %w", err)
	}
	lookups.WithLabelValues(string(scope), "hit").Inc()
	return books, nil
}

func (c *RedisBookLists) genKey() string {
	return c.prefix + "gen"
}

func (c *RedisBookLists) Generation(ctx context.Context) (uint64, error) {
	return readGeneration(ctx, c.client, c.genKey())
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, r getter, key string) (uint64, error) {
	gen, err := r.Get(ctx, key).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set is a no-op when the generation moved past gen.
func (c *RedisBookLists) Set(ctx context.Context, scope Scope, books []domain.Book, gen uint64) error {
	raw, err := json.Marshal(books)
	if err != nil {
		return err
	}
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, c.genKey())
		if err != nil {
			return err
		}
		if current != gen {
			lookups.WithLabelValues(string(scope), "stale").Inc()
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(scope), raw, c.ttl)
			return nil
		})
		return err
	}, c.genKey())
	if errors.Is(err, redis.TxFailedErr) {
		lookups.WithLabelValues(string(scope), "stale").Inc()
		return nil
	}
	return err
}

func (c *RedisBookLists) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey())
		pipe.Del(ctx, c.key(ScopeAll), c.key(ScopeFree))
		return nil
	})
	return err
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

func (Noop) Get(context.Context, Scope) ([]domain.Book, error)       { return nil, ErrMiss }
func (Noop) Generation(context.Context) (uint64, error)              { return 0, nil }
func (Noop) Set(context.Context, Scope, []domain.Book, uint64) error { return nil }
func (Noop) Invalidate(context.Context) error                        { return nil }
