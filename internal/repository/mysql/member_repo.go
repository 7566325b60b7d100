package mysql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MemberRepository struct {
	DB *gorm.DB
}

// StatusChange 提交后的变更上下文，旁路（缓存/镜像/广播）直接消费，不再回查
type StatusChange struct {
	MemberID  uint64
	UserID    uint64
	RosterID  uint64
	OldStatus string
	NewStatus string
	Version   uint64
}

// ResolveMember 权限解析专用：一条 JOIN 查出成员、职级与覆盖，热路径避免 N+1
func (r *MemberRepository) ResolveMember(ctx context.Context, rosterID, userID uint64) (*model.Member, error) {
	var m model.Member
	err := r.DB.WithContext(ctx).
		Joins("Rank").
		Joins("Permission").
		Where("roster_member.roster_id = ? AND roster_member.user_id = ?", rosterID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkg.ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) FindByID(ctx context.Context, rosterID, memberID uint64) (*model.Member, error) {
	var m model.Member
	err := r.DB.WithContext(ctx).
		Preload("Rank").
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("roster_id = ? AND id = ?", rosterID, memberID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkg.ErrNotFound
	}
	return &m, err
}

// ListByStatus 游标分页（id 降序），多取一条探测下一页
func (r *MemberRepository) ListByStatus(ctx context.Context, rosterID uint64, status string, cursor uint64, limit int) ([]model.Member, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.DB.WithContext(ctx).
		Preload("Rank").
		Where("roster_id = ? AND status = ?", rosterID, status)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Member
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

// CreateApplication 提交申请（幂等）：同一 (roster, user) 已存在则返回现有成员
func (r *MemberRepository) CreateApplication(ctx context.Context, m *model.Member) (created bool, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Member
		e := tx.Where("roster_id = ? AND user_id = ?", m.RosterID, m.UserID).First(&existing).Error
		if e == nil {
			*m = existing
			created = false
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}
		m.Status = model.MemberStatusPending
		if e = tx.Create(m).Error; e != nil {
			return e
		}
		created = true
		return nil
	})
	return created, err
}

// UpdateStatus 批量状态变更，整体一个事务。
// 相同状态为幂等空写（不在返回的变更里），approved 同事务写审批时间并按配置级联下发角色。
func (r *MemberRepository) UpdateStatus(ctx context.Context, rosterID uint64, memberIDs []uint64, status string) ([]StatusChange, error) {
	var changes []StatusChange
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roster model.Roster
		if err := tx.Preload("Roles").First(&roster, rosterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkg.ErrNotFound
			}
			return err
		}

		// 固定升序加锁，两个成员集合交错的并发批次不会互相等锁
		ids := append([]uint64(nil), memberIDs...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			var m model.Member
			// 行锁是同一成员并发状态写的唯一串行点
			err := lockForUpdate(tx).
				Where("roster_id = ? AND id = ?", rosterID, id).
				First(&m).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: member %d", pkg.ErrNotFound, id)
			}
			if err != nil {
				return err
			}
			if m.Status == status {
				continue
			}

			updates := map[string]any{
				"status":  status,
				"version": gorm.Expr("version + 1"),
			}
			if status == model.MemberStatusApproved {
				updates["approved_at"] = time.Now()
			}
			if err = tx.Model(&model.Member{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
				return err
			}

			// 角色级联与状态写同事务：要么都生效要么都回滚
			if status == model.MemberStatusApproved && roster.ApplyRolesOnApproval {
				for _, role := range roster.Roles {
					if err = tx.Clauses(clause.OnConflict{
						Columns:   []clause.Column{{Name: "user_id"}, {Name: "role_id"}},
						DoNothing: true,
					}).Create(&model.UserRole{UserID: m.UserID, RoleID: role.RoleID}).Error; err != nil {
						return err
					}
				}
			}

			changes = append(changes, StatusChange{
				MemberID:  m.ID,
				UserID:    m.UserID,
				RosterID:  rosterID,
				OldStatus: m.Status,
				NewStatus: status,
				Version:   m.Version + 1,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// UpdateRankAndPermissions 改职级/改覆盖。把唯一的队长级成员调离队长级会被拒绝。
func (r *MemberRepository) UpdateRankAndPermissions(ctx context.Context, rosterID, memberID uint64, rankID *uint64, perms *model.MemberPermission) (*model.Member, error) {
	var out model.Member
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Member
		err := lockForUpdate(tx).
			Where("roster_id = ? AND id = ?", rosterID, memberID).
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return err
		}

		if rankID != nil {
			var rank model.Rank
			if err = tx.Where("roster_id = ? AND id = ?", rosterID, *rankID).First(&rank).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: rank", pkg.ErrNotFound)
				}
				return err
			}
			if rank.Priority != model.OwnerPriority {
				ok, e := r.hasOtherOwner(tx, rosterID, m.ID)
				if e != nil {
					return e
				}
				wasOwner, e := r.isOwnerTier(tx, &m)
				if e != nil {
					return e
				}
				if wasOwner && !ok {
					return fmt.Errorf("%w: roster must retain an owner-tier member", pkg.ErrConstraint)
				}
			}
			if err = tx.Model(&model.Member{}).Where("id = ?", m.ID).
				Updates(map[string]any{"rank_id": *rankID, "version": gorm.Expr("version + 1")}).Error; err != nil {
				return err
			}
		}

		if perms != nil {
			perms.MemberID = m.ID
			if err = tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "member_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"add_members", "edit_members", "remove_members",
					"add_ranks", "edit_ranks", "remove_ranks",
					"edit_details", "delete_roster", "edit_permissions",
				}),
			}).Create(perms).Error; err != nil {
				return err
			}
			if rankID == nil {
				if err = tx.Model(&model.Member{}).Where("id = ?", m.ID).
					UpdateColumn("version", gorm.Expr("version + 1")).Error; err != nil {
					return err
				}
			}
		}

		return tx.Preload("Rank").Preload("Permission").First(&out, m.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove 硬删除成员及其覆盖与答案。唯一队长级成员不可删。
func (r *MemberRepository) Remove(ctx context.Context, rosterID, memberID uint64) (*model.Member, error) {
	var removed model.Member
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Member
		err := lockForUpdate(tx).
			Where("roster_id = ? AND id = ?", rosterID, memberID).
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err = r.guardLastOwner(tx, &m); err != nil {
			return err
		}
		if err = tx.Where("member_id = ?", m.ID).Delete(&model.MemberPermission{}).Error; err != nil {
			return err
		}
		if err = tx.Where("member_id = ?", m.ID).Delete(&model.MemberAnswer{}).Error; err != nil {
			return err
		}
		if err = tx.Delete(&model.Member{}, m.ID).Error; err != nil {
			return err
		}
		removed = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// LeaveByUser 主动退出，与 Remove 相同的队长级兜底
func (r *MemberRepository) LeaveByUser(ctx context.Context, rosterID, userID uint64) (*model.Member, error) {
	var m model.Member
	err := r.DB.WithContext(ctx).
		Where("roster_id = ? AND user_id = ?", rosterID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkg.ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return r.Remove(ctx, rosterID, m.ID)
}

func (r *MemberRepository) isOwnerTier(tx *gorm.DB, m *model.Member) (bool, error) {
	if m.RankID == nil {
		return false, nil
	}
	var rank model.Rank
	if err := tx.First(&rank, *m.RankID).Error; err != nil {
		return false, err
	}
	return rank.Priority == model.OwnerPriority, nil
}

// hasOtherOwner 除 exceptID 外是否还有队长级成员
func (r *MemberRepository) hasOtherOwner(tx *gorm.DB, rosterID, exceptID uint64) (bool, error) {
	var n int64
	err := tx.Model(&model.Member{}).
		Joins("JOIN roster_rank ON roster_rank.id = roster_member.rank_id").
		Where("roster_member.roster_id = ? AND roster_member.id <> ? AND roster_rank.priority = ?",
			rosterID, exceptID, model.OwnerPriority).
		Count(&n).Error
	return n > 0, err
}

func (r *MemberRepository) guardLastOwner(tx *gorm.DB, m *model.Member) error {
	owner, err := r.isOwnerTier(tx, m)
	if err != nil {
		return err
	}
	if !owner {
		return nil
	}
	ok, err := r.hasOtherOwner(tx, m.RosterID, m.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: roster must retain an owner-tier member", pkg.ErrConstraint)
	}
	return nil
}
