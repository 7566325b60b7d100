package model

import "time"

// 成员状态流转：pending -> approved / rejected；removed 为硬删除，不落状态列
const (
	MemberStatusPending  = "pending"
	MemberStatusApproved = "approved"
	MemberStatusRejected = "rejected"
)

// MaxRanksPerRoster 单个战队最多允许的职级数
const MaxRanksPerRoster = 10

// OwnerPriority 最高职级的优先级值（数字越小越高）
const OwnerPriority = 1

type Roster struct {
	ID          uint64 `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;size:64;not null"`
	Description string `gorm:"type:text"`
	CreatorID   uint64 `gorm:"not null;index"`
	// 外部频道三元组，GuildID 为空表示未开启镜像
	GuildID   string `gorm:"size:32"`
	ChannelID string `gorm:"size:32"`
	// 审批通过后是否自动下发关联角色
	ApplyRolesOnApproval bool         `gorm:"not null;default:0"`
	Roles                []RosterRole `gorm:"foreignKey:RosterID"`
	Ranks                []Rank       `gorm:"foreignKey:RosterID"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RosterRole 审批通过时下发的外部平台角色
type RosterRole struct {
	ID       uint64 `gorm:"primaryKey"`
	RosterID uint64 `gorm:"not null;index;uniqueIndex:uk_roster_role"`
	RoleID   string `gorm:"size:32;not null;uniqueIndex:uk_roster_role"`
}

// Rank 职级，Priority=1 为队长级；九个能力开关与 MemberPermission 同形
type Rank struct {
	ID          uint64 `gorm:"primaryKey"`
	RosterID    uint64 `gorm:"not null;index"`
	Name        string `gorm:"size:32;not null"`
	Priority    int    `gorm:"not null;default:10"`
	IsDeletable bool   `gorm:"not null;default:1"`

	AddMembers      bool `gorm:"not null;default:0"`
	EditMembers     bool `gorm:"not null;default:0"`
	RemoveMembers   bool `gorm:"not null;default:0"`
	AddRanks        bool `gorm:"not null;default:0"`
	EditRanks       bool `gorm:"not null;default:0"`
	RemoveRanks     bool `gorm:"not null;default:0"`
	EditDetails     bool `gorm:"not null;default:0"`
	DeleteRoster    bool `gorm:"not null;default:0"`
	EditPermissions bool `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	ID       uint64 `gorm:"primaryKey"`
	RosterID uint64 `gorm:"not null;index;uniqueIndex:uk_roster_user"`
	UserID   uint64 `gorm:"not null;index;uniqueIndex:uk_roster_user"`
	Status   string `gorm:"size:16;not null;default:'pending';index"`
	RankID   *uint64
	// 审批通过时间，与状态写在同一事务
	ApprovedAt *time.Time
	// 每次变更单调递增，广播载荷携带，客户端据此丢弃落后事件
	Version uint64 `gorm:"not null;default:0"`

	Rank       *Rank             `gorm:"foreignKey:RankID"`
	Permission *MemberPermission `gorm:"foreignKey:MemberID"`
	Answers    []MemberAnswer    `gorm:"foreignKey:MemberID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberPermission 成员级覆盖，只增不减：true 与职级标志做 OR，没有显式拒绝
type MemberPermission struct {
	ID       uint64 `gorm:"primaryKey"`
	MemberID uint64 `gorm:"not null;uniqueIndex"`

	AddMembers      bool `gorm:"not null;default:0"`
	EditMembers     bool `gorm:"not null;default:0"`
	RemoveMembers   bool `gorm:"not null;default:0"`
	AddRanks        bool `gorm:"not null;default:0"`
	EditRanks       bool `gorm:"not null;default:0"`
	RemoveRanks     bool `gorm:"not null;default:0"`
	EditDetails     bool `gorm:"not null;default:0"`
	DeleteRoster    bool `gorm:"not null;default:0"`
	EditPermissions bool `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberAnswer 申请表单答案，Position 保序，Visible 控制镜像消息是否展示
type MemberAnswer struct {
	ID       uint64 `gorm:"primaryKey"`
	MemberID uint64 `gorm:"not null;index"`
	Field    string `gorm:"size:128;not null"`
	Value    string `gorm:"type:text"`
	Position int    `gorm:"not null;default:0"`
	Visible  bool   `gorm:"not null;default:1"`
}

// UserRole 已下发的外部角色，审批级联写入
type UserRole struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"not null;index;uniqueIndex:uk_user_role"`
	RoleID    string `gorm:"size:32;not null;uniqueIndex:uk_user_role"`
	CreatedAt time.Time
}

func (Roster) TableName() string           { return "roster" }
func (RosterRole) TableName() string       { return "roster_role" }
func (Rank) TableName() string             { return "roster_rank" }
func (Member) TableName() string           { return "roster_member" }
func (MemberPermission) TableName() string { return "roster_member_permission" }
func (MemberAnswer) TableName() string     { return "roster_member_answer" }
func (UserRole) TableName() string         { return "user_role" }
