package clients

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DedupStore records "alert already emitted for this key" within a
// cool-down window. Acquire must be atomic: under concurrent triggers
// exactly one caller wins the window.
type DedupStore interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
}

type redisDedup struct {
	rdb *goredis.Client
}

// NewRedisDedup backs the shared dedup record with redis SET NX and the
// window as TTL, so multiple engine instances share one cool-down view.
func NewRedisDedup(addr string) (DedupStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redisDedup{rdb: rdb}, nil
}

func (d *redisDedup) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	return d.rdb.SetNX(ctx, "alertdedup:"+key, 1, window).Result()
}

type memoryDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDedup is the single-process fallback used when no redis address
// is configured, and in tests.
func NewMemoryDedup() DedupStore {
	return &memoryDedup{seen: make(map[string]time.Time), now: time.Now}
}

func (d *memoryDedup) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if until, ok := d.seen[key]; ok && now.Before(until) {
		return false, nil
	}
	d.seen[key] = now.Add(window)
	return true, nil
}
