package service

import (
	"context"
	"encoding/json"
	"log"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
	"Guild_Roster/internal/repository/redis"
)

type rosterStore interface {
	Create(ctx context.Context, roster *model.Roster) error
	FindByID(ctx context.Context, id uint64) (*model.Roster, error)
	UpdateSettings(ctx context.Context, id uint64, updates map[string]any) (*model.Roster, error)
	List(ctx context.Context, offset, limit int) ([]model.Roster, error)
	Delete(ctx context.Context, id uint64) error
}

type rosterCache interface {
	GetRoster(ctx context.Context, rosterID uint64) ([]byte, bool, error)
	SetRoster(ctx context.Context, rosterID uint64, payload []byte) error
	Invalidate(ctx context.Context, rosterID uint64, memberIDs []uint64) error
}

// RosterView 对外投影，镜像配置只暴露是否开启
type RosterView struct {
	ID                   uint64 `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	CreatorID            uint64 `json:"creator_id"`
	MirrorEnabled        bool   `json:"mirror_enabled"`
	ApplyRolesOnApproval bool   `json:"apply_roles_on_approval"`
	RankCount            int    `json:"rank_count"`
}

func NormalizeRoster(r *model.Roster) RosterView {
	return RosterView{
		ID:                   r.ID,
		Name:                 r.Name,
		Description:          r.Description,
		CreatorID:            r.CreatorID,
		MirrorEnabled:        r.GuildID != "" && r.ChannelID != "",
		ApplyRolesOnApproval: r.ApplyRolesOnApproval,
		RankCount:            len(r.Ranks),
	}
}

type RosterService struct {
	perms   *PermissionService
	rosters rosterStore
	cache   rosterCache
	bcast   *BroadcastService
}

func NewRosterService(bcast *BroadcastService) *RosterService {
	return &RosterService{
		perms:   NewPermissionService(),
		rosters: &mysql.RosterRepository{DB: mysql.DB},
		cache:   redis.NewRosterCacheRepository(),
		bcast:   bcast,
	}
}

// Create 建队，创建者同事务入队为队长
func (s *RosterService) Create(ctx context.Context, userID uint64, name, desc string) (*model.Roster, error) {
	if name == "" {
		return nil, pkg.ErrValidation
	}
	roster := &model.Roster{Name: name, Description: desc, CreatorID: userID}
	if err := s.rosters.Create(ctx, roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// Get 读穿缓存的战队详情
func (s *RosterService) Get(ctx context.Context, rosterID uint64) (json.RawMessage, error) {
	if raw, hit, err := s.cache.GetRoster(ctx, rosterID); err == nil && hit {
		return raw, nil
	}
	roster, err := s.rosters.FindByID(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(NormalizeRoster(roster))
	if err != nil {
		return nil, err
	}
	if e := s.cache.SetRoster(ctx, rosterID, raw); e != nil {
		log.Printf("cache fill err roster=%d: %v", rosterID, e)
	}
	return raw, nil
}

// UpdateSettings 设置变更：提交后清缓存并走可靠广播
func (s *RosterService) UpdateSettings(ctx context.Context, actorID, rosterID uint64, updates map[string]any, source string) (*model.Roster, error) {
	if len(updates) == 0 {
		return nil, pkg.ErrValidation
	}
	if _, err := s.perms.Authorize(ctx, actorID, rosterID, model.CapEditDetails); err != nil {
		return nil, err
	}

	roster, err := s.rosters.UpdateSettings(ctx, rosterID, updates)
	if err != nil {
		return nil, err
	}

	if e := s.cache.Invalidate(context.Background(), rosterID, nil); e != nil {
		log.Printf("cache invalidate err roster=%d: %v", rosterID, e)
	}
	s.bcast.SettingsChanged(rosterID, NormalizeRoster(roster), source)
	return roster, nil
}

func (s *RosterService) Delete(ctx context.Context, actorID, rosterID uint64, source string) error {
	if _, err := s.perms.Authorize(ctx, actorID, rosterID, model.CapDeleteRoster); err != nil {
		return err
	}
	if err := s.rosters.Delete(ctx, rosterID); err != nil {
		return err
	}
	if e := s.cache.Invalidate(context.Background(), rosterID, nil); e != nil {
		log.Printf("cache invalidate err roster=%d: %v", rosterID, e)
	}
	s.bcast.SettingsChanged(rosterID, map[string]any{"deleted": true}, source)
	return nil
}

func (s *RosterService) List(ctx context.Context, page, size int) ([]RosterView, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 50 {
		size = 20
	}
	rows, err := s.rosters.List(ctx, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	views := make([]RosterView, 0, len(rows))
	for i := range rows {
		views = append(views, NormalizeRoster(&rows[i]))
	}
	return views, nil
}
