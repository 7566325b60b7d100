package mysql

import (
	"context"
	"testing"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: 每条连接各是一个库，池里只留一条
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Roster{}, &model.RosterRole{}, &model.Rank{},
		&model.Member{}, &model.MemberPermission{}, &model.MemberAnswer{},
		&model.UserRole{}, &model.MirrorRecord{},
	))
	return db
}

// seedRoster 走真实建队路径：基线职级和队长成员都由 Create 写入
func seedRoster(t *testing.T, db *gorm.DB, name string) (*model.Roster, *model.Member) {
	t.Helper()
	roster := &model.Roster{Name: name, CreatorID: 1}
	require.NoError(t, (&RosterRepository{DB: db}).Create(context.Background(), roster))
	var owner model.Member
	require.NoError(t, db.Where("roster_id = ? AND user_id = ?", roster.ID, roster.CreatorID).First(&owner).Error)
	return roster, &owner
}

func rankByPriority(t *testing.T, db *gorm.DB, rosterID uint64, priority int) *model.Rank {
	t.Helper()
	var rank model.Rank
	require.NoError(t, db.Where("roster_id = ? AND priority = ?", rosterID, priority).First(&rank).Error)
	return &rank
}

func addMember(t *testing.T, db *gorm.DB, rosterID, userID uint64, status string, rankID *uint64) *model.Member {
	t.Helper()
	m := &model.Member{RosterID: rosterID, UserID: userID, Status: status, RankID: rankID}
	require.NoError(t, db.Create(m).Error)
	return m
}

func TestUpdateStatus_ApprovalCascade(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")
	require.NoError(t, db.Model(&model.Roster{}).Where("id = ?", roster.ID).
		Update("apply_roles_on_approval", true).Error)
	require.NoError(t, db.Create(&model.RosterRole{RosterID: roster.ID, RoleID: "role7"}).Error)
	require.NoError(t, db.Create(&model.RosterRole{RosterID: roster.ID, RoleID: "role12"}).Error)
	applicant := addMember(t, db, roster.ID, 5, model.MemberStatusPending, nil)

	repo := &MemberRepository{DB: db}
	changes, err := repo.UpdateStatus(context.Background(), roster.ID, []uint64{applicant.ID}, model.MemberStatusApproved)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, model.MemberStatusPending, changes[0].OldStatus)
	assert.Equal(t, model.MemberStatusApproved, changes[0].NewStatus)
	assert.Equal(t, uint64(1), changes[0].Version)

	var got model.Member
	require.NoError(t, db.First(&got, applicant.ID).Error)
	assert.Equal(t, model.MemberStatusApproved, got.Status)
	require.NotNil(t, got.ApprovedAt, "审批时间与状态同事务落库")
	assert.Equal(t, uint64(1), got.Version)

	var roles []model.UserRole
	require.NoError(t, db.Where("user_id = ?", applicant.UserID).Order("role_id").Find(&roles).Error)
	require.Len(t, roles, 2)
	assert.Equal(t, "role12", roles[0].RoleID)
	assert.Equal(t, "role7", roles[1].RoleID)

	// 相同状态重放：空变更，版本与已发角色原样不动
	changes, err = repo.UpdateStatus(context.Background(), roster.ID, []uint64{applicant.ID}, model.MemberStatusApproved)
	require.NoError(t, err)
	assert.Empty(t, changes)
	require.NoError(t, db.First(&got, applicant.ID).Error)
	assert.Equal(t, uint64(1), got.Version)
	var n int64
	require.NoError(t, db.Model(&model.UserRole{}).Where("user_id = ?", applicant.UserID).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestUpdateStatus_LocksInAscendingIDOrder(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")
	a := addMember(t, db, roster.ID, 5, model.MemberStatusPending, nil)
	b := addMember(t, db, roster.ID, 6, model.MemberStatusPending, nil)

	// 调用方传降序也按 id 升序逐行加锁，两个交错批次不会互相等锁
	repo := &MemberRepository{DB: db}
	changes, err := repo.UpdateStatus(context.Background(), roster.ID, []uint64{b.ID, a.ID}, model.MemberStatusApproved)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, a.ID, changes[0].MemberID)
	assert.Equal(t, b.ID, changes[1].MemberID)
}

func TestUpdateStatus_UnknownMemberRollsBack(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")
	a := addMember(t, db, roster.ID, 5, model.MemberStatusPending, nil)

	repo := &MemberRepository{DB: db}
	_, err := repo.UpdateStatus(context.Background(), roster.ID, []uint64{a.ID, a.ID + 100}, model.MemberStatusApproved)
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	// 批量整体一个事务，前面的写入一并回滚
	var got model.Member
	require.NoError(t, db.First(&got, a.ID).Error)
	assert.Equal(t, model.MemberStatusPending, got.Status)
	assert.Zero(t, got.Version)
}

func TestRemove_LastOwnerGuard(t *testing.T) {
	db := newTestDB(t)
	roster, owner := seedRoster(t, db, "raiders")

	repo := &MemberRepository{DB: db}
	_, err := repo.Remove(context.Background(), roster.ID, owner.ID)
	assert.ErrorIs(t, err, pkg.ErrConstraint, "唯一队长级成员不可移出")

	// 补一个队长级成员后放行
	ownerTier := rankByPriority(t, db, roster.ID, model.OwnerPriority)
	addMember(t, db, roster.ID, 2, model.MemberStatusApproved, &ownerTier.ID)

	removed, err := repo.Remove(context.Background(), roster.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, removed.ID)
	err = db.First(&model.Member{}, owner.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateRank_LastOwnerGuard(t *testing.T) {
	db := newTestDB(t)
	roster, owner := seedRoster(t, db, "raiders")
	recruit := rankByPriority(t, db, roster.ID, 10)

	repo := &MemberRepository{DB: db}
	_, err := repo.UpdateRankAndPermissions(context.Background(), roster.ID, owner.ID, &recruit.ID, nil)
	assert.ErrorIs(t, err, pkg.ErrConstraint, "唯一队长级成员不可调离队长级")

	ownerTier := rankByPriority(t, db, roster.ID, model.OwnerPriority)
	addMember(t, db, roster.ID, 2, model.MemberStatusApproved, &ownerTier.ID)

	out, err := repo.UpdateRankAndPermissions(context.Background(), roster.ID, owner.ID, &recruit.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, out.RankID)
	assert.Equal(t, recruit.ID, *out.RankID)
	assert.Equal(t, uint64(1), out.Version)
}
