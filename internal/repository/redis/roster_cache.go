package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	RosterTTL     = 10 * time.Minute
	MemberPageTTL = 5 * time.Minute
	MemberTTL     = 10 * time.Minute

	RosterKeyPrefix = "roster"
	MemberKeyPrefix = "member"
	// 失效索引：每个作用域一个 SET，记录当前存在的缓存键，
	// 失效时按集合成员精确删除，不做全键空间扫描
	RosterIndexPrefix = "idx:roster"
	MemberIndexPrefix = "idx:member"
)

var ErrCacheUnavailable = errors.New("cache unavailable")

// RosterCacheRepository 读路径旁挂缓存：TTL 兜底，永远不作为权威数据源
type RosterCacheRepository struct {
	rosterTTL time.Duration
	pageTTL   time.Duration
	memberTTL time.Duration
}

func NewRosterCacheRepository() *RosterCacheRepository {
	return &RosterCacheRepository{
		rosterTTL: RosterTTL,
		pageTTL:   MemberPageTTL,
		memberTTL: MemberTTL,
	}
}

func (r *RosterCacheRepository) rosterKey(rosterID uint64) string {
	return fmt.Sprintf("%s:%d", RosterKeyPrefix, rosterID)
}

func (r *RosterCacheRepository) memberPageKey(rosterID uint64, status string, cursor uint64) string {
	return fmt.Sprintf("%s:%d:members:%s:%d", RosterKeyPrefix, rosterID, status, cursor)
}

func (r *RosterCacheRepository) memberKey(memberID uint64) string {
	return fmt.Sprintf("%s:%d", MemberKeyPrefix, memberID)
}

func (r *RosterCacheRepository) rosterIndexKey(rosterID uint64) string {
	return fmt.Sprintf("%s:%d", RosterIndexPrefix, rosterID)
}

func (r *RosterCacheRepository) memberIndexKey(memberID uint64) string {
	return fmt.Sprintf("%s:%d", MemberIndexPrefix, memberID)
}

// setIndexed 写缓存并登记到作用域索引，索引 TTL 略长于数据键
func (r *RosterCacheRepository) setIndexed(ctx context.Context, key string, payload []byte, ttl time.Duration, indexKeys ...string) error {
	pipe := Client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	for _, idx := range indexKeys {
		pipe.SAdd(ctx, idx, key)
		pipe.Expire(ctx, idx, ttl+time.Minute)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RosterCacheRepository) get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrCacheUnavailable
	}
	return val, true, nil
}

func (r *RosterCacheRepository) GetRoster(ctx context.Context, rosterID uint64) ([]byte, bool, error) {
	return r.get(ctx, r.rosterKey(rosterID))
}

func (r *RosterCacheRepository) SetRoster(ctx context.Context, rosterID uint64, payload []byte) error {
	return r.setIndexed(ctx, r.rosterKey(rosterID), payload, r.rosterTTL, r.rosterIndexKey(rosterID))
}

func (r *RosterCacheRepository) GetMemberPage(ctx context.Context, rosterID uint64, status string, cursor uint64) ([]byte, bool, error) {
	return r.get(ctx, r.memberPageKey(rosterID, status, cursor))
}

// SetMemberPage 列表页是游标键控的，只登记到战队索引，整队失效时一起清
func (r *RosterCacheRepository) SetMemberPage(ctx context.Context, rosterID uint64, status string, cursor uint64, payload []byte) error {
	return r.setIndexed(ctx, r.memberPageKey(rosterID, status, cursor), payload, r.pageTTL, r.rosterIndexKey(rosterID))
}

func (r *RosterCacheRepository) GetMember(ctx context.Context, memberID uint64) ([]byte, bool, error) {
	return r.get(ctx, r.memberKey(memberID))
}

func (r *RosterCacheRepository) SetMember(ctx context.Context, rosterID, memberID uint64, payload []byte) error {
	return r.setIndexed(ctx, r.memberKey(memberID), payload, r.memberTTL,
		r.rosterIndexKey(rosterID), r.memberIndexKey(memberID))
}

// Invalidate 提交后失效：取出作用域索引里登记的全部键一把删掉。
// 缓存只是加速层，这里失败由调用方记日志，不向上冒泡成请求错误。
func (r *RosterCacheRepository) Invalidate(ctx context.Context, rosterID uint64, memberIDs []uint64) error {
	indexKeys := []string{r.rosterIndexKey(rosterID)}
	for _, id := range memberIDs {
		indexKeys = append(indexKeys, r.memberIndexKey(id))
	}

	var dataKeys []string
	for _, idx := range indexKeys {
		members, err := Client.SMembers(ctx, idx).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return ErrCacheUnavailable
		}
		dataKeys = append(dataKeys, members...)
	}
	// 固定要清的直接键，索引未登记时兜底
	dataKeys = append(dataKeys, r.rosterKey(rosterID))
	for _, id := range memberIDs {
		dataKeys = append(dataKeys, r.memberKey(id))
	}

	pipe := Client.TxPipeline()
	pipe.Del(ctx, dataKeys...)
	pipe.Del(ctx, indexKeys...)
	if _, err := pipe.Exec(ctx); err != nil {
		return ErrCacheUnavailable
	}
	return nil
}
