package mysql

import (
	"context"
	"errors"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"

	"gorm.io/gorm"
)

type RosterRepository struct {
	DB *gorm.DB
}

// Create 建队：同事务写入基线职级（队长/新兵，均不可删）并让创建者以队长身份入队
func (r *RosterRepository) Create(ctx context.Context, roster *model.Roster) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(roster).Error; err != nil {
			return err
		}

		owner := model.Rank{
			RosterID:    roster.ID,
			Name:        "Owner",
			Priority:    model.OwnerPriority,
			IsDeletable: false,
			AddMembers:  true, EditMembers: true, RemoveMembers: true,
			AddRanks: true, EditRanks: true, RemoveRanks: true,
			EditDetails: true, DeleteRoster: true, EditPermissions: true,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		recruit := model.Rank{
			RosterID:    roster.ID,
			Name:        "Recruit",
			Priority:    10,
			IsDeletable: false,
		}
		if err := tx.Create(&recruit).Error; err != nil {
			return err
		}

		member := model.Member{
			RosterID: roster.ID,
			UserID:   roster.CreatorID,
			Status:   model.MemberStatusApproved,
			RankID:   &owner.ID,
		}
		return tx.Create(&member).Error
	})
}

func (r *RosterRepository) FindByID(ctx context.Context, id uint64) (*model.Roster, error) {
	var roster model.Roster
	err := r.DB.WithContext(ctx).Preload("Roles").Preload("Ranks").First(&roster, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkg.ErrNotFound
	}
	return &roster, err
}

// UpdateSettings 战队设置（名称/描述/镜像频道三元组/审批下发角色开关）
func (r *RosterRepository) UpdateSettings(ctx context.Context, id uint64, updates map[string]any) (*model.Roster, error) {
	var roster model.Roster
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e := tx.First(&roster, id).Error
		if errors.Is(e, gorm.ErrRecordNotFound) {
			return pkg.ErrNotFound
		}
		if e != nil {
			return e
		}
		if e = tx.Model(&roster).Updates(updates).Error; e != nil {
			return e
		}
		return tx.Preload("Roles").First(&roster, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &roster, nil
}

func (r *RosterRepository) List(ctx context.Context, offset, limit int) ([]model.Roster, error) {
	var list []model.Roster
	err := r.DB.WithContext(ctx).Order("id desc").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

func (r *RosterRepository) Delete(ctx context.Context, id uint64) error {
	// 幂等硬删除，级联由各子表约束负责
	return r.DB.WithContext(ctx).Delete(&model.Roster{}, id).Error
}
