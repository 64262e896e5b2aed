package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
	"github.com/myrjola/stride/internal/metrics"
	"github.com/myrjola/stride/internal/program"
)

const (
	megabyte = 1 << 20
	// DefaultCacheBytes is the generated workout cache size. freecache enforces a 512 KiB minimum.
	DefaultCacheBytes  = 64 * megabyte
	blockCacheLifetime = 24 * time.Hour
)

// blockCache memoizes generated blocks. Generation depends only on (date, start date, plan id) so those form the
// key. Changing a user's origin changes the key, there is nothing to invalidate.
type blockCache struct {
	cache   *freecache.Cache
	logger  *slog.Logger
	metrics *metrics.Manager
}

func newBlockCache(sizeBytes int, logger *slog.Logger, m *metrics.Manager) *blockCache {
	return &blockCache{
		cache:   freecache.NewCache(sizeBytes),
		logger:  logger,
		metrics: m,
	}
}

func blockCacheKey(date time.Time, origin Origin) []byte {
	return fmt.Appendf(nil, "blocks::%s::%s::%s", formatDate(date), formatDate(origin.StartDate), origin.PlanID)
}

// get returns the cached blocks or false on a miss.
func (c *blockCache) get(ctx context.Context, date time.Time, origin Origin) ([]program.Block, bool) {
	key := blockCacheKey(date, origin)
	data, err := c.cache.Get(key)
	if errors.Is(err, freecache.ErrNotFound) {
		c.metrics.CounterCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "read block cache", slog.String("key", string(key)),
			slog.Any("error", err))
		c.metrics.CounterCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var blocks []program.Block
	if err = json.Unmarshal(data, &blocks); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "decode cached blocks", slog.String("key", string(key)),
			slog.Any("error", err))
		c.cache.Del(key)
		c.metrics.CounterCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	c.metrics.CounterCacheLookups.WithLabelValues("hit").Inc()
	return blocks, true
}

func (c *blockCache) set(ctx context.Context, date time.Time, origin Origin, blocks []program.Block) {
	key := blockCacheKey(date, origin)
	data, err := json.Marshal(blocks)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "encode blocks for cache", slog.Any("error", err))
		return
	}
	// Entries larger than 1/1024 of the cache are rejected. The workout is then regenerated on every request.
	if err = c.cache.Set(key, data, int(blockCacheLifetime.Seconds())); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "write block cache", slog.String("key", string(key)),
			slog.Int("bytes", len(data)), slog.Any("error", err))
	}
}
