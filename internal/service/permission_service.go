package service

import (
	"context"
	"errors"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
)

type memberResolver interface {
	ResolveMember(ctx context.Context, rosterID, userID uint64) (*model.Member, error)
}

type userFinder interface {
	FindByID(id uint64) (*model.User, error)
}

// Resolution 解析结果：九个标志的有效集合与职级优先级
type Resolution struct {
	Capabilities model.CapabilitySet
	RankPriority int
	Admin        bool
}

// PermissionService 权限解析与准入闸门，所有写入口先过这里
type PermissionService struct {
	members memberResolver
	users   userFinder
}

func NewPermissionService() *PermissionService {
	return &PermissionService{
		members: &mysql.MemberRepository{DB: mysql.DB},
		users:   &mysql.UserRepository{DB: mysql.DB},
	}
}

// Resolve 纯读：成员覆盖与职级标志逐位 OR。
// 非成员返回 ErrNotMember，调用方按"无权限"处理，不把原始错误透给客户端。
func (s *PermissionService) Resolve(ctx context.Context, userID, rosterID uint64) (*Resolution, error) {
	m, err := s.members.ResolveMember(ctx, rosterID, userID)
	if err != nil {
		return nil, err
	}
	priority := 0
	if m.Rank != nil {
		priority = m.Rank.Priority
	}
	return &Resolution{
		Capabilities: model.EffectiveCapabilities(m.Rank, m.Permission),
		RankPriority: priority,
	}, nil
}

// Authorize OR 语义：required 里任一标志命中即放行。
// 平台管理员整体旁路按战队解析。Denied 对外一律 403，不提示重试。
func (s *PermissionService) Authorize(ctx context.Context, userID, rosterID uint64, required ...model.Capability) (*Resolution, error) {
	user, err := s.users.FindByID(userID)
	if err == nil && user.Role == model.UserRoleAdmin {
		return &Resolution{Admin: true}, nil
	}

	res, err := s.Resolve(ctx, userID, rosterID)
	if errors.Is(err, pkg.ErrNotMember) {
		return nil, pkg.ErrPermissionDenied
	}
	if err != nil {
		return nil, err
	}
	if len(required) > 0 && !res.Capabilities.HasAny(required...) {
		return nil, pkg.ErrPermissionDenied
	}
	return res, nil
}
