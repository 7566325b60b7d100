package service

import (
	"context"
	"log"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
	"Guild_Roster/internal/repository/redis"
)

type rankStore interface {
	Upsert(ctx context.Context, rank *model.Rank) error
	Delete(ctx context.Context, rosterID, rankID uint64) error
	ListByRoster(ctx context.Context, rosterID uint64) ([]model.Rank, error)
}

type rankCache interface {
	Invalidate(ctx context.Context, rosterID uint64, memberIDs []uint64) error
}

// RankService 职级增删改。职级变化影响全队权限判定，
// 广播走可靠发送，客户端不允许静默漏掉。
type RankService struct {
	perms *PermissionService
	ranks rankStore
	cache rankCache
	bcast *BroadcastService
}

func NewRankService(bcast *BroadcastService) *RankService {
	return &RankService{
		perms: NewPermissionService(),
		ranks: &mysql.RankRepository{DB: mysql.DB},
		cache: redis.NewRosterCacheRepository(),
		bcast: bcast,
	}
}

// Upsert 新建要 add_ranks，更新要 edit_ranks。
// 上限 10 个与唯一队长级职级的约束在仓储事务里兜底。
func (s *RankService) Upsert(ctx context.Context, actorID uint64, rank *model.Rank, source string) error {
	if rank.RosterID == 0 || rank.Name == "" || rank.Priority < model.OwnerPriority {
		return pkg.ErrValidation
	}
	required := model.CapAddRanks
	if rank.ID != 0 {
		required = model.CapEditRanks
	}
	if _, err := s.perms.Authorize(ctx, actorID, rank.RosterID, required); err != nil {
		return err
	}

	if err := s.ranks.Upsert(ctx, rank); err != nil {
		return err
	}

	if err := s.cache.Invalidate(context.Background(), rank.RosterID, nil); err != nil {
		log.Printf("cache invalidate err roster=%d: %v", rank.RosterID, err)
	}
	s.bcast.SettingsChanged(rank.RosterID, map[string]any{"kind": "rank", "rank_id": rank.ID}, source)
	return nil
}

// Delete is_deletable=false 一律拒绝，与调用方能力无关
func (s *RankService) Delete(ctx context.Context, actorID, rosterID, rankID uint64, source string) error {
	if _, err := s.perms.Authorize(ctx, actorID, rosterID, model.CapRemoveRanks); err != nil {
		return err
	}
	if err := s.ranks.Delete(ctx, rosterID, rankID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(context.Background(), rosterID, nil); err != nil {
		log.Printf("cache invalidate err roster=%d: %v", rosterID, err)
	}
	s.bcast.SettingsChanged(rosterID, map[string]any{"kind": "rank", "rank_id": rankID, "deleted": true}, source)
	return nil
}

func (s *RankService) List(ctx context.Context, actorID, rosterID uint64) ([]model.Rank, error) {
	if _, err := s.perms.Authorize(ctx, actorID, rosterID); err != nil {
		return nil, err
	}
	return s.ranks.ListByRoster(ctx, rosterID)
}
