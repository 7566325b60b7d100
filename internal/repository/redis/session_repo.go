package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionStore    = errors.New("session store unavailable")
)

const (
	sessionPrefix = "session:user"
	// SessionTTL 活跃会话的滑动过期时间
	SessionTTL = 30 * time.Minute
)

// SessionRepository 单点登录会话：一个用户同时只保留一个有效 access token，
// 新登录覆盖旧会话，被覆盖的一端下次请求被打回
type SessionRepository struct{}

func sessionKey(userID uint64) string {
	return fmt.Sprintf("%s:%d", sessionPrefix, userID)
}

func (r *SessionRepository) Save(userID uint64, token string) error {
	if err := Client.Set(context.Background(), sessionKey(userID), token, SessionTTL).Err(); err != nil {
		return ErrSessionStore
	}
	return nil
}

func (r *SessionRepository) Get(userID uint64) (string, error) {
	token, err := Client.Get(context.Background(), sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", ErrSessionStore
	}
	return token, nil
}

// Extend 每次鉴权通过后顺延过期时间
func (r *SessionRepository) Extend(userID uint64) error {
	if err := Client.Expire(context.Background(), sessionKey(userID), SessionTTL).Err(); err != nil {
		return ErrSessionStore
	}
	return nil
}

func (r *SessionRepository) Drop(userID uint64) error {
	if err := Client.Del(context.Background(), sessionKey(userID)).Err(); err != nil {
		return ErrSessionStore
	}
	return nil
}
