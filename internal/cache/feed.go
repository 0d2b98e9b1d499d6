// Package cache 故事列表的 Redis 旁路缓存。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/living-legends/internal/repository"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

const versionKey = "feed:version"

// FeedPage 一页故事列表
type FeedPage struct {
	Items []repository.StoryListItem `json:"items"`
	Total int64                      `json:"total"`
}

// FeedCache 按页缓存故事列表；任何故事变更后调用 Invalidate
type FeedCache interface {
	Get(ctx context.Context, page, size int) (*FeedPage, bool)
	Set(ctx context.Context, page, size int, p *FeedPage)
	Invalidate(ctx context.Context)
}

// RedisFeed 以版本号作为 key 前缀，失效时自增版本，旧 key 随 TTL 过期
type RedisFeed struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

func NewRedisFeed(client *redis.Client, ttl time.Duration) *RedisFeed {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisFeed{client: client, ttl: ttl}
}

func (f *RedisFeed) key(ctx context.Context, page, size int) (string, error) {
	ver, err := f.client.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("feed:v%d:%d:%d", ver, page, size), nil
}

func (f *RedisFeed) Get(ctx context.Context, page, size int) (*FeedPage, bool) {
	key, err := f.key(ctx, page, size)
	if err != nil {
		f.misses.Add(1)
		return nil, false
	}
	data, err := f.client.Get(ctx, key).Bytes()
	if err != nil {
		f.misses.Add(1)
		return nil, false
	}
	var p FeedPage
	if err := json.Unmarshal(data, &p); err != nil {
		f.misses.Add(1)
		return nil, false
	}
	f.hits.Add(1)
	return &p, true
}

func (f *RedisFeed) Set(ctx context.Context, page, size int, p *FeedPage) {
	key, err := f.key(ctx, page, size)
	if err != nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := f.client.Set(ctx, key, payload, f.ttl).Err(); err != nil {
		logger.Warn("feed cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (f *RedisFeed) Invalidate(ctx context.Context) {
	if err := f.client.Incr(ctx, versionKey).Err(); err != nil {
		logger.Warn("feed cache invalidate failed", zap.Error(err))
	}
}

// Counters 命中与未命中次数
func (f *RedisFeed) Counters() (hits, misses int64) {
	return f.hits.Load(), f.misses.Load()
}

// Nop 未配置 Redis 时使用
type Nop struct{}

func (Nop) Get(context.Context, int, int) (*FeedPage, bool) { return nil, false }
func (Nop) Set(context.Context, int, int, *FeedPage)        {}
func (Nop) Invalidate(context.Context)                      {}
