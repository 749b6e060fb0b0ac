package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/textutil"
)

const cacheKeyPrefix = "insight:"

// CachedInsight keeps successful insight answers in Redis. Cache errors are
// logged and fall through to the wrapped service.
type CachedInsight struct {
	next   KeywordInsight
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedInsight(next KeywordInsight, rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedInsight {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &CachedInsight{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedInsight) RelatedKeywords(ctx context.Context, seed string) Result[[]string] {
	key := cacheKeyPrefix + "related:" + textutil.Normalize(seed)
	var cached []string
	if c.get(ctx, key, &cached) {
		return OK(cached)
	}
	res := c.next.RelatedKeywords(ctx, seed)
	if !res.Failed() {
		c.set(ctx, key, res.Value)
	}
	return res
}

func (c *CachedInsight) SearchIntent(ctx context.Context, keyword string) Result[constants.SearchIntent] {
	key := cacheKeyPrefix + "intent:" + textutil.Normalize(keyword)
	var cached constants.SearchIntent
	if c.get(ctx, key, &cached) {
		return OK(cached)
	}
	res := c.next.SearchIntent(ctx, keyword)
	if !res.Failed() {
		c.set(ctx, key, res.Value)
	}
	return res
}

func (c *CachedInsight) get(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("enrich.cache.get_failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("enrich.cache.decode_failed", "key", key, "error", err)
		return false
	}
	c.logger.Debug("enrich.cache.hit", "key", key)
	return true
}

func (c *CachedInsight) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("enrich.cache.set_failed", "key", key, "error", err)
	}
}
