package mysql

import (
	"context"
	"fmt"
	"testing"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankUpsert_LimitEnforced(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")

	// 建队自带 2 个基线职级，补到上限后再建被拒
	repo := &RankRepository{DB: db}
	for i := 0; i < model.MaxRanksPerRoster-2; i++ {
		require.NoError(t, repo.Upsert(context.Background(),
			&model.Rank{RosterID: roster.ID, Name: fmt.Sprintf("tier-%d", i), Priority: 5}))
	}

	err := repo.Upsert(context.Background(), &model.Rank{RosterID: roster.ID, Name: "overflow", Priority: 5})
	assert.ErrorIs(t, err, pkg.ErrConstraint)

	var n int64
	require.NoError(t, db.Model(&model.Rank{}).Where("roster_id = ?", roster.ID).Count(&n).Error)
	assert.EqualValues(t, model.MaxRanksPerRoster, n)
}

func TestRankUpsert_SecondOwnerTierRejected(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")

	repo := &RankRepository{DB: db}
	err := repo.Upsert(context.Background(),
		&model.Rank{RosterID: roster.ID, Name: "co-owner", Priority: model.OwnerPriority})
	assert.ErrorIs(t, err, pkg.ErrConstraint)
}

func TestRankUpsert_UpdateKeepsProtectionBit(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")
	base := rankByPriority(t, db, roster.ID, model.OwnerPriority)

	repo := &RankRepository{DB: db}
	require.NoError(t, repo.Upsert(context.Background(), &model.Rank{
		ID:          base.ID,
		RosterID:    roster.ID,
		Name:        "Captain",
		Priority:    model.OwnerPriority,
		IsDeletable: true, // 更新不允许翻转保护位
		EditMembers: true,
	}))

	var got model.Rank
	require.NoError(t, db.First(&got, base.ID).Error)
	assert.Equal(t, "Captain", got.Name)
	assert.True(t, got.EditMembers)
	assert.False(t, got.IsDeletable)
}

func TestRankDelete_NonDeletableRejected(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")
	base := rankByPriority(t, db, roster.ID, model.OwnerPriority)

	repo := &RankRepository{DB: db}
	err := repo.Delete(context.Background(), roster.ID, base.ID)
	assert.ErrorIs(t, err, pkg.ErrConstraint)
}

func TestRankDelete_NullsMemberRank(t *testing.T) {
	db := newTestDB(t)
	roster, _ := seedRoster(t, db, "raiders")

	repo := &RankRepository{DB: db}
	trial := &model.Rank{RosterID: roster.ID, Name: "trial", Priority: 5}
	require.NoError(t, repo.Upsert(context.Background(), trial))
	m := addMember(t, db, roster.ID, 9, model.MemberStatusApproved, &trial.ID)

	require.NoError(t, repo.Delete(context.Background(), roster.ID, trial.ID))

	var got model.Member
	require.NoError(t, db.First(&got, m.ID).Error)
	assert.Nil(t, got.RankID)
}
