package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client 包级单例，各仓储直接使用
var Client *redis.Client

type Config struct {
	Addr     string
	Password string
	DB       int
}

// Init 建立连接池并 Ping 一次确认可用。
// 缓存层对上层是尽力而为的，但起服时 redis 必须在位，
// 会话与验证码没有降级路径。
func Init(cfg Config) error {
	Client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     16,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return Client.Ping(ctx).Err()
}

func Close() error {
	if Client == nil {
		return nil
	}
	return Client.Close()
}
