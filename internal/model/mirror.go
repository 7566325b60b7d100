package model

import "time"

// MirrorRecord 申请与外部频道状态消息的一对一映射。
// 远端消息被人工删除时本地记录随之删除（自愈），不做重试。
type MirrorRecord struct {
	ID        uint64 `gorm:"primaryKey"`
	MemberID  uint64 `gorm:"not null;uniqueIndex"`
	GuildID   string `gorm:"size:32;not null"`
	ChannelID string `gorm:"size:32;not null"`
	MessageID string `gorm:"size:32;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MirrorRecord) TableName() string { return "mirror_record" }
