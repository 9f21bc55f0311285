package cache

import (
	"context"
	"time"

	"shop-service/config"

	"github.com/redis/go-redis/v9"
)

const webhookKeyPrefix = "webhook:"

func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// RedisDeduper 用 SET NX 记录已处理的回调事件
type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, webhookKeyPrefix+key, time.Now().UTC().Unix(), d.ttl).Result()
}

// Forget 处理失败时删除 key, 允许重试
func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, webhookKeyPrefix+key).Err()
}
