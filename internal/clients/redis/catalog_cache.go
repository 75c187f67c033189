package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/repos"
	"github.com/yungbote/pathpilot-backend/internal/types"
)

// CatalogCache is a cache-aside decorator around repos.PathRepo. Catalog data
// is read-mostly during a session's lifetime; mutations through Create/Update
// invalidate the path keyspace. Composition over the interface, no base-class
// anything.
type CatalogCache struct {
	inner repos.PathRepo
	rdb   *goredis.Client
	log   *logger.Logger
	ttl   time.Duration
}

func NewCatalogCache(inner repos.PathRepo, baseLog *logger.Logger, ttl time.Duration) (*CatalogCache, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CatalogCache{
		inner: inner,
		rdb:   rdb,
		log:   baseLog.With("client", "CatalogCache"),
		ttl:   ttl,
	}, nil
}

var _ repos.PathRepo = (*CatalogCache)(nil)

func (c *CatalogCache) FindMatching(ctx context.Context, tx *gorm.DB, filter repos.PathFilter) ([]*types.Path, error) {
	// Transactional reads bypass the cache: the caller wants the txn's view.
	if tx != nil {
		return c.inner.FindMatching(ctx, tx, filter)
	}

	key := c.key("find_matching", filterKey(filter))
	var cached []*types.Path
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	results, err := c.inner.FindMatching(ctx, nil, filter)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, results)
	return results, nil
}

func (c *CatalogCache) GetWithSteps(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Path, error) {
	if tx != nil {
		return c.inner.GetWithSteps(ctx, tx, id)
	}

	key := c.key("get_with_steps", id.String())
	var cached *types.Path
	if c.get(ctx, key, &cached) && cached != nil {
		return cached, nil
	}

	result, err := c.inner.GetWithSteps(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if result != nil {
		c.set(ctx, key, result)
	}
	return result, nil
}

func (c *CatalogCache) Create(ctx context.Context, tx *gorm.DB, rows []*types.Path) ([]*types.Path, error) {
	created, err := c.inner.Create(ctx, tx, rows)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return created, nil
}

func (c *CatalogCache) Update(ctx context.Context, tx *gorm.DB, row *types.Path) error {
	if err := c.inner.Update(ctx, tx, row); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *CatalogCache) key(op, params string) string {
	return fmt.Sprintf("catalog:path:%s:%s", op, params)
}

func (c *CatalogCache) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Debug("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Debug("cache decode failed, dropping key", "key", key, "error", err)
		_ = c.rdb.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *CatalogCache) set(ctx context.Context, key string, val interface{}) {
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Debug("cache write failed", "key", key, "error", err)
	}
}

// invalidate drops the whole path keyspace. Content mutations are rare enough
// that scanning beats tracking per-entry dependencies.
func (c *CatalogCache) invalidate(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, "catalog:path:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.Debug("cache invalidation delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache invalidation scan failed", "error", err)
	}
}

func filterKey(f repos.PathFilter) string {
	ids := make([]string, 0, len(f.ExcludeIDs))
	for _, id := range f.ExcludeIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return fmt.Sprintf("%s|%s|%s|%t|%d|%d|%s",
		f.TargetRole, f.SubscriptionTier, f.Difficulty, f.ActiveOnly,
		f.MinDurationMinutes, f.MaxDurationMinutes, strings.Join(ids, ","))
}
