package mysql

import (
	"context"
	"errors"
	"fmt"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"

	"gorm.io/gorm"
)

type RankRepository struct {
	DB *gorm.DB
}

// Upsert 新建或更新职级。新建受两条硬约束：
// 单战队上限 10 个；Priority=1 至多一个。
func (r *RankRepository) Upsert(ctx context.Context, rank *model.Rank) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住战队行，串行化同一战队的职级增删
		var roster model.Roster
		err := lockForUpdate(tx).First(&roster, rank.RosterID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return err
		}

		if rank.Priority == model.OwnerPriority {
			var n int64
			if err = tx.Model(&model.Rank{}).
				Where("roster_id = ? AND priority = ? AND id <> ?", rank.RosterID, model.OwnerPriority, rank.ID).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: roster already has an owner-tier rank", pkg.ErrConstraint)
			}
		}

		if rank.ID == 0 {
			var n int64
			if err = tx.Model(&model.Rank{}).Where("roster_id = ?", rank.RosterID).Count(&n).Error; err != nil {
				return err
			}
			if n >= model.MaxRanksPerRoster {
				return fmt.Errorf("%w: rank limit %d reached", pkg.ErrConstraint, model.MaxRanksPerRoster)
			}
			return tx.Create(rank).Error
		}

		var existing model.Rank
		err = tx.Where("roster_id = ? AND id = ?", rank.RosterID, rank.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return err
		}
		// IsDeletable 是基线职级的保护位，更新不允许翻转
		rank.IsDeletable = existing.IsDeletable
		return tx.Model(&model.Rank{}).Where("id = ?", rank.ID).
			Select("name", "priority",
				"add_members", "edit_members", "remove_members",
				"add_ranks", "edit_ranks", "remove_ranks",
				"edit_details", "delete_roster", "edit_permissions").
			Updates(rank).Error
	})
}

// Delete 删除职级，引用它的成员职级置空。is_deletable=false 一律拒绝。
func (r *RankRepository) Delete(ctx context.Context, rosterID, rankID uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rank model.Rank
		err := lockForUpdate(tx).
			Where("roster_id = ? AND id = ?", rosterID, rankID).
			First(&rank).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !rank.IsDeletable {
			return fmt.Errorf("%w: rank is not deletable", pkg.ErrConstraint)
		}
		if err = tx.Model(&model.Member{}).
			Where("roster_id = ? AND rank_id = ?", rosterID, rankID).
			Update("rank_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Rank{}, rank.ID).Error
	})
}

func (r *RankRepository) ListByRoster(ctx context.Context, rosterID uint64) ([]model.Rank, error) {
	var list []model.Rank
	err := r.DB.WithContext(ctx).
		Where("roster_id = ?", rosterID).
		Order("priority ASC, id ASC").
		Find(&list).Error
	return list, err
}
