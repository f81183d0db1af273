package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"PPGateway/global/config"
	"PPGateway/logger"
	"PPGateway/tools/errs"
)

// NewClient 初始化 Redis 并 Ping 一次, 连不上直接返回错误
func NewClient(c config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(Options(c))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.ErrTransport.WrapMsg("redis ping", "addr", c.Addr, "err", err)
	}
	logger.Infof("[redis] connected addr=%s db=%d", c.Addr, c.DB)
	return rdb, nil
}

// Options maps the gateway redis section onto client options.
func Options(c config.RedisConfig) *redis.Options {
	poolSize := c.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     poolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}
