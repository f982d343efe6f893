package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisChannel 基于 redis 的进度通道，多实例部署时各实例共享进度
type RedisChannel struct {
	client *redis.Client
}

// NewRedisChannel 解析 redis 连接串并建立客户端
func NewRedisChannel(redisURL string) (*RedisChannel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisChannel{client: redis.NewClient(opts)}, nil
}

func (c *RedisChannel) Set(ctx context.Context, taskID string, percent int) error {
	return c.client.SetEx(ctx, progressKey(taskID), clampPercent(percent), defaultTTL).Err()
}

func (c *RedisChannel) Get(ctx context.Context, taskID string) (int, bool, error) {
	raw, err := c.client.Get(ctx, progressKey(taskID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	percent, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("malformed progress value %q: %w", raw, err)
	}
	return clampPercent(percent), true, nil
}

func (c *RedisChannel) Close() error {
	return c.client.Close()
}

var _ Channel = (*RedisChannel)(nil)
