package mysql

import (
	"context"
	"errors"

	"Guild_Roster/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MirrorRepository struct {
	DB *gorm.DB
}

// FindByMember 不存在返回 (nil, nil)，调用方据此走首次发送分支
func (r *MirrorRepository) FindByMember(ctx context.Context, memberID uint64) (*model.MirrorRecord, error) {
	var rec model.MirrorRecord
	err := r.DB.WithContext(ctx).Where("member_id = ?", memberID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save 按 member_id 幂等落库：重试时更新消息指向而不是新增记录
func (r *MirrorRepository) Save(ctx context.Context, rec *model.MirrorRecord) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"guild_id", "channel_id", "message_id"}),
	}).Create(rec).Error
}

func (r *MirrorRepository) DeleteByMember(ctx context.Context, memberID uint64) error {
	return r.DB.WithContext(ctx).Where("member_id = ?", memberID).Delete(&model.MirrorRecord{}).Error
}
