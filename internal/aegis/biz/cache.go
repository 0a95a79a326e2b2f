package biz

import (
	"context"
	"errors"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/aegis/internal/model"
	"github.com/kart-io/aegis/internal/pkg/textutil"
	cacheopts "github.com/kart-io/aegis/pkg/options/cache"
	"github.com/kart-io/aegis/pkg/utils/json"
)

// QueryCache 问答结果缓存。所有缓存故障都只记录日志，不影响查询主链路。
type QueryCache struct {
	redis *goredis.Client
	opts  *cacheopts.Options
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis *goredis.Client, opts *cacheopts.Options) *QueryCache {
	if opts == nil {
		opts = cacheopts.NewOptions()
	}
	return &QueryCache{
		redis: redis,
		opts:  opts,
	}
}

// enabled 缓存是否可用。
func (c *QueryCache) enabled() bool {
	return c != nil && c.opts.Enabled && c.redis != nil
}

// cacheKey 基于问题内容生成缓存键。
func (c *QueryCache) cacheKey(question string) string {
	return c.opts.KeyPrefix + textutil.HashString(question)
}

// Get 从缓存获取查询结果，未命中时返回 nil。
func (c *QueryCache) Get(ctx context.Context, question string) *model.QueryResult {
	if !c.enabled() {
		return nil
	}

	key := c.cacheKey(question)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warnw("缓存读取失败", "error", err.Error(), "key", key)
		}
		return nil
	}

	var result model.QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("缓存数据反序列化失败，删除脏数据", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil
	}

	result.Cached = true
	return &result
}

// Set 将查询结果写入缓存。降级结果不缓存。
func (c *QueryCache) Set(ctx context.Context, question string, result *model.QueryResult) {
	if !c.enabled() || result == nil || result.Degraded {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("缓存序列化失败", "error", err.Error())
		return
	}

	key := c.cacheKey(question)
	if err := c.redis.Set(ctx, key, data, c.opts.TTL).Err(); err != nil {
		logger.Warnw("缓存写入失败", "error", err.Error(), "key", key)
	}
}

// Clear 清除全部查询缓存，返回删除的键数量。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	deleted := 0
	iter := c.redis.Scan(ctx, 0, c.opts.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("缓存键删除失败", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Stats 返回缓存统计信息。
func (c *QueryCache) Stats(ctx context.Context) map[string]any {
	if !c.enabled() {
		return map[string]any{"enabled": false}
	}

	keyCount := 0
	iter := c.redis.Scan(ctx, 0, c.opts.KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("缓存统计扫描失败", "error", err.Error())
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.opts.TTL.String(),
		"key_prefix": c.opts.KeyPrefix,
	}
}
