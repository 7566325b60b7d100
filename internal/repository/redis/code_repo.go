package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	CodeTTL        = 5 * time.Minute
	codePrefix     = "verify:code"
	pendingState   = "pending"
	confirmedState = "confirmed"
)

// 投递场景
const (
	ScopeRegister = "register"
	ScopeReset    = "reset"
)

var (
	ErrCodeNotFound  = errors.New("code not found")
	ErrCodeWriteFail = errors.New("code write failed")
)

// confirmScript 取 pending、写 confirmed、删 pending，一次原子完成。
// 邮件真正发出去之前验证码不可用，发送失败时调用方删 pending 即可回滚。
const confirmScript = `
local val = redis.call("GET", KEYS[1])
if not val then
  return 0
end
redis.call("SET", KEYS[2], val, "PX", ARGV[1])
redis.call("DEL", KEYS[1])
return 1
`

// CodeRepository 邮件验证码的两阶段存储，scope 区分注册与重置
type CodeRepository struct{}

func codeKey(scope, state, email string) string {
	return fmt.Sprintf("%s:%s:%s:%s", codePrefix, scope, state, email)
}

func (r *CodeRepository) PutPending(scope, email, code string) error {
	key := codeKey(scope, pendingState, email)
	if err := Client.Set(context.Background(), key, code, CodeTTL).Err(); err != nil {
		return ErrCodeWriteFail
	}
	return nil
}

// Confirm 邮件送达后把 pending 转为 confirmed，TTL 重新起算
func (r *CodeRepository) Confirm(scope, email string) error {
	src := codeKey(scope, pendingState, email)
	dst := codeKey(scope, confirmedState, email)
	px := int64(CodeTTL / time.Millisecond)

	res := Client.Eval(context.Background(), confirmScript, []string{src, dst}, px)
	if res.Err() != nil {
		return ErrCodeWriteFail
	}
	if ok, _ := res.Int(); ok != 1 {
		return ErrCodeNotFound
	}
	return nil
}

// DropPending 幂等删除，发送失败时回滚用
func (r *CodeRepository) DropPending(scope, email string) error {
	return Client.Del(context.Background(), codeKey(scope, pendingState, email)).Err()
}

func (r *CodeRepository) GetConfirmed(scope, email string) (string, error) {
	val, err := Client.Get(context.Background(), codeKey(scope, confirmedState, email)).Result()
	if err != nil {
		return "", ErrCodeNotFound
	}
	return val, nil
}

// DeleteConfirmed 校验通过后一次性销毁
func (r *CodeRepository) DeleteConfirmed(scope, email string) error {
	return Client.Del(context.Background(), codeKey(scope, confirmedState, email)).Err()
}
