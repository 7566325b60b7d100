package model

// Capability 九个能力开关的统一命名，接口载荷与内部判定共用
type Capability string

const (
	CapAddMembers      Capability = "add_members"
	CapEditMembers     Capability = "edit_members"
	CapRemoveMembers   Capability = "remove_members"
	CapAddRanks        Capability = "add_ranks"
	CapEditRanks       Capability = "edit_ranks"
	CapRemoveRanks     Capability = "remove_ranks"
	CapEditDetails     Capability = "edit_details"
	CapDeleteRoster    Capability = "delete_roster"
	CapEditPermissions Capability = "edit_permissions"
)

type CapabilitySet map[Capability]bool

func (s CapabilitySet) Has(flag Capability) bool { return s[flag] }

// HasAny OR 语义：任一命中即放行
func (s CapabilitySet) HasAny(flags ...Capability) bool {
	for _, f := range flags {
		if s[f] {
			return true
		}
	}
	return false
}

func rankFlags(r *Rank) [9]bool {
	if r == nil {
		return [9]bool{}
	}
	return [9]bool{
		r.AddMembers, r.EditMembers, r.RemoveMembers,
		r.AddRanks, r.EditRanks, r.RemoveRanks,
		r.EditDetails, r.DeleteRoster, r.EditPermissions,
	}
}

func overrideFlags(p *MemberPermission) [9]bool {
	if p == nil {
		return [9]bool{}
	}
	return [9]bool{
		p.AddMembers, p.EditMembers, p.RemoveMembers,
		p.AddRanks, p.EditRanks, p.RemoveRanks,
		p.EditDetails, p.DeleteRoster, p.EditPermissions,
	}
}

var capOrder = [9]Capability{
	CapAddMembers, CapEditMembers, CapRemoveMembers,
	CapAddRanks, CapEditRanks, CapRemoveRanks,
	CapEditDetails, CapDeleteRoster, CapEditPermissions,
}

// EffectiveCapabilities 成员覆盖与职级标志逐位 OR，缺失按 false，无显式拒绝
func EffectiveCapabilities(rank *Rank, ovr *MemberPermission) CapabilitySet {
	rf := rankFlags(rank)
	of := overrideFlags(ovr)
	set := make(CapabilitySet, len(capOrder))
	for i, c := range capOrder {
		if rf[i] || of[i] {
			set[c] = true
		}
	}
	return set
}
