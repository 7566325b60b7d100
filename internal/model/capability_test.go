package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveCapabilities_OrMerge(t *testing.T) {
	rank := &Rank{AddMembers: true, EditRanks: true}
	ovr := &MemberPermission{EditMembers: true, EditRanks: true}

	set := EffectiveCapabilities(rank, ovr)
	assert.True(t, set.Has(CapAddMembers), "rank flag alone")
	assert.True(t, set.Has(CapEditMembers), "override flag alone")
	assert.True(t, set.Has(CapEditRanks), "both sources")
	assert.False(t, set.Has(CapDeleteRoster), "missing everywhere is false")
}

func TestEffectiveCapabilities_RankFlipPropagates(t *testing.T) {
	rank := &Rank{}
	assert.False(t, EffectiveCapabilities(rank, nil).Has(CapEditMembers))

	rank.EditMembers = true
	assert.True(t, EffectiveCapabilities(rank, nil).Has(CapEditMembers),
		"flipping only the rank flag must flip the resolved flag")
}

func TestEffectiveCapabilities_NoDeny(t *testing.T) {
	// 覆盖记录存在但全 false，不会压掉职级的 true
	rank := &Rank{RemoveMembers: true}
	ovr := &MemberPermission{}
	assert.True(t, EffectiveCapabilities(rank, ovr).Has(CapRemoveMembers))
}

func TestEffectiveCapabilities_NilSources(t *testing.T) {
	set := EffectiveCapabilities(nil, nil)
	assert.False(t, set.HasAny(CapAddMembers, CapEditMembers, CapRemoveMembers,
		CapAddRanks, CapEditRanks, CapRemoveRanks,
		CapEditDetails, CapDeleteRoster, CapEditPermissions))
}

func TestCapabilitySet_HasAny(t *testing.T) {
	set := CapabilitySet{CapEditMembers: true}
	assert.True(t, set.HasAny(CapAddMembers, CapEditMembers))
	assert.False(t, set.HasAny(CapAddMembers, CapRemoveMembers))
}
