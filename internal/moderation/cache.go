package moderation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/ding113/moderation-gateway/internal/pkg/errors"
	"github.com/ding113/moderation-gateway/internal/pkg/logger"
	"github.com/ding113/moderation-gateway/internal/pkg/utils"
	"github.com/redis/go-redis/v9"
)

// VerdictCache 远程判定缓存，按文本 SHA-256 索引
type VerdictCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewVerdictCache 创建 Redis 判定缓存
func NewVerdictCache(rdb *redis.Client, prefix string, ttl time.Duration) *VerdictCache {
	return &VerdictCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *VerdictCache) key(text string) string {
	return c.prefix + utils.HashText(text)
}

// Get 读取缓存；未命中返回 (nil, nil)
// 无法解析或字段不全的条目会被删除并返回错误，调用方按未命中处理
func (c *VerdictCache) Get(ctx context.Context, text string) (*RemoteVerdict, error) {
	key := c.key(text)
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.NewRedisError(err)
	}

	var verdict RemoteVerdict
	err = json.Unmarshal(data, &verdict)
	if err == nil {
		err = verdict.Validate()
	}
	if err != nil {
		c.rdb.Del(ctx, key)
		return nil, errors.NewRedisError(fmt.Errorf("invalid cache entry: %w", err))
	}
	return &verdict, nil
}

// Set 写入缓存
func (c *VerdictCache) Set(ctx context.Context, text string, verdict *RemoteVerdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return errors.NewRedisError(err)
	}
	if err := c.rdb.Set(ctx, c.key(text), data, c.ttl).Err(); err != nil {
		return errors.NewRedisError(err)
	}
	return nil
}

// CachedClassifier 先查缓存，未命中再调用上游并回填
// 缓存故障只记录日志，不影响分类结果
type CachedClassifier struct {
	inner RemoteClassifier
	cache *VerdictCache
}

// NewCachedClassifier 创建带缓存的分类器
func NewCachedClassifier(inner RemoteClassifier, cache *VerdictCache) *CachedClassifier {
	return &CachedClassifier{inner: inner, cache: cache}
}

// Classify 实现 RemoteClassifier
func (c *CachedClassifier) Classify(ctx context.Context, text string) (*RemoteVerdict, error) {
	log := logger.WithComponent("verdict_cache")

	cached, err := c.cache.Get(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("Verdict cache read failed")
	} else if cached != nil {
		log.Debug().Msg("Verdict cache hit")
		return cached, nil
	}

	verdict, err := c.inner.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, text, verdict); err != nil {
		log.Warn().Err(err).Msg("Verdict cache write failed")
	}
	return verdict, nil
}
