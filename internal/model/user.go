package model

import "time"

// 平台级角色：Admin 在准入闸门整体旁路按战队的权限解析
const (
	UserRoleNormal = 0
	UserRoleAdmin  = 1
)

type User struct {
	ID        uint64 `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;size:32;not null"`
	Password  string `gorm:"size:255;not null"`
	Role      int    `gorm:"default:0"`
	Email     string `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
