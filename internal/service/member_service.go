package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
	"Guild_Roster/internal/repository/redis"
)

type memberStore interface {
	CreateApplication(ctx context.Context, m *model.Member) (bool, error)
	FindByID(ctx context.Context, rosterID, memberID uint64) (*model.Member, error)
	ListByStatus(ctx context.Context, rosterID uint64, status string, cursor uint64, limit int) ([]model.Member, uint64, error)
	UpdateStatus(ctx context.Context, rosterID uint64, memberIDs []uint64, status string) ([]mysql.StatusChange, error)
	UpdateRankAndPermissions(ctx context.Context, rosterID, memberID uint64, rankID *uint64, perms *model.MemberPermission) (*model.Member, error)
	Remove(ctx context.Context, rosterID, memberID uint64) (*model.Member, error)
	LeaveByUser(ctx context.Context, rosterID, userID uint64) (*model.Member, error)
}

type rosterFinder interface {
	FindByID(ctx context.Context, id uint64) (*model.Roster, error)
}

type cacheStore interface {
	Invalidate(ctx context.Context, rosterID uint64, memberIDs []uint64) error
	GetMemberPage(ctx context.Context, rosterID uint64, status string, cursor uint64) ([]byte, bool, error)
	SetMemberPage(ctx context.Context, rosterID uint64, status string, cursor uint64, payload []byte) error
	GetMember(ctx context.Context, memberID uint64) ([]byte, bool, error)
	SetMember(ctx context.Context, rosterID, memberID uint64, payload []byte) error
}

type mailNotifier interface {
	NotifyStatus(toUserID uint64, rosterName, status string)
}

// MemberService 成员变更的编排层：闸门 -> 事务写 -> 提交后扇出。
// 扇出三路互相独立：缓存先行（同步、失败记日志），
// 镜像与广播并发跑，任何一路失败都不影响其余、更不会回滚已提交的事务。
type MemberService struct {
	perms   *PermissionService
	members memberStore
	rosters rosterFinder
	cache   cacheStore
	mirror  *MirrorService
	bcast   *BroadcastService
	mail    mailNotifier

	// 异步扇出的在途计数，测试用 wg.Wait 收口
	wg sync.WaitGroup
}

func NewMemberService(mirror *MirrorService, bcast *BroadcastService, mail mailNotifier) *MemberService {
	return &MemberService{
		perms:   NewPermissionService(),
		members: &mysql.MemberRepository{DB: mysql.DB},
		rosters: &mysql.RosterRepository{DB: mysql.DB},
		cache:   redis.NewRosterCacheRepository(),
		mirror:  mirror,
		bcast:   bcast,
		mail:    mail,
	}
}

func validStatus(status string) bool {
	switch status {
	case model.MemberStatusPending, model.MemberStatusApproved, model.MemberStatusRejected:
		return true
	}
	return false
}

// invalidateCache 扇出第一路：同步清缓存。缓存只是加速层，失败不升级为请求错误。
func (s *MemberService) invalidateCache(rosterID uint64, memberIDs []uint64) {
	if err := s.cache.Invalidate(context.Background(), rosterID, memberIDs); err != nil {
		log.Printf("cache invalidate err roster=%d: %v", rosterID, err)
	}
}

func (s *MemberService) async(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Apply 提交入队申请：创建 pending 成员（幂等），开启镜像的战队首发状态消息
func (s *MemberService) Apply(ctx context.Context, userID, rosterID uint64, answers []model.MemberAnswer, source string) (*model.Member, error) {
	roster, err := s.rosters.FindByID(ctx, rosterID)
	if err != nil {
		return nil, err
	}

	m := &model.Member{RosterID: rosterID, UserID: userID, Answers: answers}
	created, err := s.members.CreateApplication(ctx, m)
	if err != nil {
		return nil, err
	}
	if !created {
		return m, nil
	}

	s.invalidateCache(rosterID, []uint64{m.ID})
	s.async(func() {
		if err := s.mirror.SyncStatus(context.Background(), roster, m); err != nil {
			log.Printf("mirror sync err member=%d: %v", m.ID, err)
		}
	})
	s.async(func() {
		s.bcast.MembersStatusChanged(rosterID, []mysql.StatusChange{{
			MemberID:  m.ID,
			UserID:    m.UserID,
			RosterID:  rosterID,
			OldStatus: "",
			NewStatus: m.Status,
			Version:   m.Version,
		}}, source)
	})
	return m, nil
}

// UpdateStatus 批量改状态。同状态是幂等空写，第二次同样返回成功。
// 审批配置的角色级联在仓储事务里完成，这里只消费提交后的变更上下文。
func (s *MemberService) UpdateStatus(ctx context.Context, actorID, rosterID uint64, memberIDs []uint64, status, source string) ([]mysql.StatusChange, error) {
	if len(memberIDs) == 0 || !validStatus(status) {
		return nil, pkg.ErrValidation
	}
	if _, err := s.perms.Authorize(ctx, actorID, rosterID, model.CapAddMembers, model.CapEditMembers); err != nil {
		return nil, err
	}
	roster, err := s.rosters.FindByID(ctx, rosterID)
	if err != nil {
		return nil, err
	}

	changes, err := s.members.UpdateStatus(ctx, rosterID, memberIDs, status)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return changes, nil
	}

	ids := make([]uint64, 0, len(changes))
	for _, c := range changes {
		ids = append(ids, c.MemberID)
	}
	s.invalidateCache(rosterID, ids)

	s.async(func() {
		for _, c := range changes {
			m, err := s.members.FindByID(context.Background(), rosterID, c.MemberID)
			if err != nil {
				log.Printf("mirror lookup err member=%d: %v", c.MemberID, err)
				continue
			}
			if err = s.mirror.SyncStatus(context.Background(), roster, m); err != nil {
				log.Printf("mirror sync err member=%d: %v", c.MemberID, err)
			}
		}
	})
	s.async(func() { s.bcast.MembersStatusChanged(rosterID, changes, source) })
	if s.mail != nil {
		s.async(func() {
			for _, c := range changes {
				if c.NewStatus == model.MemberStatusApproved || c.NewStatus == model.MemberStatusRejected {
					s.mail.NotifyStatus(c.UserID, roster.Name, c.NewStatus)
				}
			}
		})
	}
	return changes, nil
}

// UpdateRankAndPermissions 改职级需要 edit_members，动覆盖需要 edit_permissions
func (s *MemberService) UpdateRankAndPermissions(ctx context.Context, actorID, rosterID, memberID uint64, rankID *uint64, perms *model.MemberPermission, source string) (*model.Member, error) {
	if rankID == nil && perms == nil {
		return nil, pkg.ErrValidation
	}
	var required []model.Capability
	if rankID != nil {
		required = append(required, model.CapEditMembers)
	}
	if perms != nil {
		required = append(required, model.CapEditPermissions)
	}
	if _, err := s.perms.Authorize(ctx, actorID, rosterID, required...); err != nil {
		return nil, err
	}

	m, err := s.members.UpdateRankAndPermissions(ctx, rosterID, memberID, rankID, perms)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(rosterID, []uint64{m.ID})
	s.async(func() { s.bcast.MemberRankChanged(m, source) })
	return m, nil
}

// Remove staff 移出成员。镜像消息编辑为终态留痕，唯一队长级成员不可移出。
func (s *MemberService) Remove(ctx context.Context, actorID, rosterID, memberID uint64, source string) error {
	if _, err := s.perms.Authorize(ctx, actorID, rosterID, model.CapRemoveMembers); err != nil {
		return err
	}
	roster, err := s.rosters.FindByID(ctx, rosterID)
	if err != nil {
		return err
	}

	m, err := s.members.Remove(ctx, rosterID, memberID)
	if err != nil {
		return err
	}

	s.invalidateCache(rosterID, []uint64{m.ID})
	s.async(func() {
		if err := s.mirror.Finalize(context.Background(), roster, m); err != nil {
			log.Printf("mirror finalize err member=%d: %v", m.ID, err)
		}
	})
	s.async(func() { s.bcast.MembersRemoved(rosterID, []uint64{m.ID}, source) })
	return nil
}

// Leave 主动退出（申请撤回）：远端消息直接删掉，不留痕
func (s *MemberService) Leave(ctx context.Context, userID, rosterID uint64, source string) error {
	m, err := s.members.LeaveByUser(ctx, rosterID, userID)
	if err != nil {
		return err
	}

	s.invalidateCache(rosterID, []uint64{m.ID})
	s.async(func() {
		if err := s.mirror.Purge(context.Background(), m); err != nil {
			log.Printf("mirror purge err member=%d: %v", m.ID, err)
		}
	})
	s.async(func() { s.bcast.MembersRemoved(rosterID, []uint64{m.ID}, source) })
	return nil
}

// memberPage 列表页缓存的落盘形状
type memberPage struct {
	Members []MemberView `json:"members"`
	Next    uint64       `json:"next"`
}

// ListMembers 读穿缓存：命中直接回源出缓存字节，未命中查库回填
func (s *MemberService) ListMembers(ctx context.Context, actorID, rosterID uint64, status string, cursor uint64, limit int) (json.RawMessage, error) {
	if !validStatus(status) {
		return nil, pkg.ErrValidation
	}
	if _, err := s.perms.Authorize(ctx, actorID, rosterID); err != nil {
		return nil, err
	}

	if raw, hit, err := s.cache.GetMemberPage(ctx, rosterID, status, cursor); err == nil && hit {
		return raw, nil
	}

	rows, next, err := s.members.ListByStatus(ctx, rosterID, status, cursor, limit)
	if err != nil {
		return nil, err
	}
	page := memberPage{Next: next, Members: make([]MemberView, 0, len(rows))}
	for i := range rows {
		page.Members = append(page.Members, NormalizeMember(&rows[i]))
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return nil, err
	}
	if e := s.cache.SetMemberPage(ctx, rosterID, status, cursor, raw); e != nil {
		log.Printf("cache fill err roster=%d: %v", rosterID, e)
	}
	return raw, nil
}

// GetMember 单成员详情（含答案），供镜像按钮回查等场景。读穿缓存。
func (s *MemberService) GetMember(ctx context.Context, actorID, rosterID, memberID uint64) (json.RawMessage, error) {
	if _, err := s.perms.Authorize(ctx, actorID, rosterID); err != nil {
		return nil, err
	}

	if raw, hit, err := s.cache.GetMember(ctx, memberID); err == nil && hit {
		return raw, nil
	}

	m, err := s.members.FindByID(ctx, rosterID, memberID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(NormalizeMember(m))
	if err != nil {
		return nil, err
	}
	if e := s.cache.SetMember(ctx, rosterID, memberID, raw); e != nil {
		log.Printf("cache fill err member=%d: %v", memberID, e)
	}
	return raw, nil
}

// CanJoinRoom websocket 进房校验：战队房间要求成员或管理员；
// 定向房间只允许本人
func (s *MemberService) CanJoinRoom(userID uint64, room string) bool {
	var rosterID, roomUserID uint64
	if n, _ := fmt.Sscanf(room, "roster:%d:user:%d", &rosterID, &roomUserID); n == 2 {
		if roomUserID != userID {
			return false
		}
		_, err := s.perms.Authorize(context.Background(), userID, rosterID)
		return err == nil
	}
	if n, _ := fmt.Sscanf(room, "roster:%d", &rosterID); n == 1 {
		_, err := s.perms.Authorize(context.Background(), userID, rosterID)
		return err == nil
	}
	if room == "rosters:index" {
		u, err := s.perms.users.FindByID(userID)
		return err == nil && u.Role == model.UserRoleAdmin
	}
	return false
}
