package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemberStore struct {
	members map[uint64]*model.Member // memberID -> member
	changes []mysql.StatusChange
	err     error

	updateCalls int
	removed     []uint64
}

func (f *fakeMemberStore) CreateApplication(_ context.Context, m *model.Member) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	m.ID = uint64(len(f.members) + 1)
	m.Status = model.MemberStatusPending
	f.members[m.ID] = m
	return true, nil
}

func (f *fakeMemberStore) FindByID(_ context.Context, _, memberID uint64) (*model.Member, error) {
	if m, ok := f.members[memberID]; ok {
		return m, nil
	}
	return nil, pkg.ErrNotFound
}

func (f *fakeMemberStore) ListByStatus(_ context.Context, _ uint64, status string, _ uint64, _ int) ([]model.Member, uint64, error) {
	var out []model.Member
	for _, m := range f.members {
		if m.Status == status {
			out = append(out, *m)
		}
	}
	return out, 0, nil
}

func (f *fakeMemberStore) UpdateStatus(_ context.Context, _ uint64, _ []uint64, _ string) ([]mysql.StatusChange, error) {
	f.updateCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.changes, nil
}

func (f *fakeMemberStore) UpdateRankAndPermissions(_ context.Context, _, memberID uint64, rankID *uint64, _ *model.MemberPermission) (*model.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := f.members[memberID]
	if m == nil {
		return nil, pkg.ErrNotFound
	}
	if rankID != nil {
		m.RankID = rankID
	}
	m.Version++
	return m, nil
}

func (f *fakeMemberStore) Remove(_ context.Context, _, memberID uint64) (*model.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := f.members[memberID]
	if m == nil {
		return nil, pkg.ErrNotFound
	}
	delete(f.members, memberID)
	f.removed = append(f.removed, memberID)
	return m, nil
}

func (f *fakeMemberStore) LeaveByUser(_ context.Context, _, userID uint64) (*model.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	for id, m := range f.members {
		if m.UserID == userID {
			delete(f.members, id)
			return m, nil
		}
	}
	return nil, pkg.ErrNotMember
}

type fakeRosterFinder struct {
	roster *model.Roster
}

func (f *fakeRosterFinder) FindByID(_ context.Context, _ uint64) (*model.Roster, error) {
	if f.roster == nil {
		return nil, pkg.ErrNotFound
	}
	return f.roster, nil
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated [][]uint64
	pages       map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{pages: map[string][]byte{}} }

func (f *fakeCache) Invalidate(_ context.Context, _ uint64, memberIDs []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, memberIDs)
	return nil
}

func (f *fakeCache) GetMemberPage(_ context.Context, rosterID uint64, status string, cursor uint64) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.pages[fmt.Sprintf("%d:%s:%d", rosterID, status, cursor)]
	return raw, ok, nil
}

func (f *fakeCache) SetMemberPage(_ context.Context, rosterID uint64, status string, cursor uint64, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[fmt.Sprintf("%d:%s:%d", rosterID, status, cursor)] = payload
	return nil
}

func (f *fakeCache) GetMember(_ context.Context, memberID uint64) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.pages[fmt.Sprintf("m:%d", memberID)]
	return raw, ok, nil
}

func (f *fakeCache) SetMember(_ context.Context, _, memberID uint64, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[fmt.Sprintf("m:%d", memberID)] = payload
	return nil
}

type emitCall struct {
	Room     string
	Event    string
	Volatile bool
}

type fakeEmitter struct {
	mu    sync.Mutex
	calls []emitCall
}

func (f *fakeEmitter) Emit(room, event string, _ any, volatile bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, emitCall{Room: room, Event: event, Volatile: volatile})
}

func (f *fakeEmitter) snapshot() []emitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitCall(nil), f.calls...)
}

func (f *fakeEmitter) find(event string) []emitCall {
	var out []emitCall
	for _, c := range f.snapshot() {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

type memberFixture struct {
	svc   *MemberService
	store *fakeMemberStore
	cache *fakeCache
	em    *fakeEmitter
	chat  *fakeChat
}

// 演员 7 有 edit_members；9 无任何能力；两人都是成员
func newMemberFixture(t *testing.T, roster *model.Roster) *memberFixture {
	t.Helper()
	store := &fakeMemberStore{members: map[uint64]*model.Member{}}
	cache := newFakeCache()
	em := &fakeEmitter{}
	chat := &fakeChat{}

	perms := newPermService(&fakeResolver{members: map[uint64]*model.Member{
		7: {Rank: &model.Rank{Priority: 1, EditMembers: true, RemoveMembers: true, EditPermissions: true}},
		9: {Rank: &model.Rank{Priority: 10}},
	}}, &fakeUsers{users: map[uint64]*model.User{
		7: {ID: 7}, 9: {ID: 9},
	}})

	svc := &MemberService{
		perms:   perms,
		members: store,
		rosters: &fakeRosterFinder{roster: roster},
		cache:   cache,
		mirror:  newMirror(chat, newFakeMirrorStore()),
		bcast:   &BroadcastService{hub: em},
	}
	return &memberFixture{svc: svc, store: store, cache: cache, em: em, chat: chat}
}

func TestUpdateStatus_HappyPath(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	fx.store.members[5] = pendingMember()
	fx.store.changes = []mysql.StatusChange{{
		MemberID: 5, UserID: 7, RosterID: 1,
		OldStatus: model.MemberStatusPending,
		NewStatus: model.MemberStatusApproved,
		Version:   2,
	}}

	changes, err := fx.svc.UpdateStatus(context.Background(), 7, 1, []uint64{5}, model.MemberStatusApproved, "cli-1")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	fx.svc.wg.Wait()

	// 缓存先清
	require.Len(t, fx.cache.invalidated, 1)
	assert.Equal(t, []uint64{5}, fx.cache.invalidated[0])

	// volatile 广播到战队房间与管理索引房间
	emits := fx.em.find(EventMembersStatus)
	require.Len(t, emits, 2)
	for _, e := range emits {
		assert.True(t, e.Volatile)
	}
	assert.Equal(t, "roster:1", emits[0].Room)
	assert.Equal(t, "rosters:index", emits[1].Room)

	// 镜像同步发生（首发）
	require.Len(t, fx.chat.sent, 1)
	assert.Equal(t, "PENDING", fx.chat.sent[0].Status)
}

func TestUpdateStatus_IdempotentSecondCall(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	fx.store.changes = nil // 同状态：仓储报告零变更

	changes, err := fx.svc.UpdateStatus(context.Background(), 7, 1, []uint64{5}, model.MemberStatusApproved, "")
	require.NoError(t, err, "no-op write is still a success")
	assert.Empty(t, changes)
	fx.svc.wg.Wait()
	assert.Empty(t, fx.em.snapshot(), "nothing to broadcast")
	assert.Empty(t, fx.cache.invalidated, "nothing to invalidate")
}

func TestUpdateStatus_DeniedBeforeAnyWrite(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())

	_, err := fx.svc.UpdateStatus(context.Background(), 9, 1, []uint64{5}, model.MemberStatusApproved, "")
	assert.ErrorIs(t, err, pkg.ErrPermissionDenied)
	assert.Zero(t, fx.store.updateCalls, "gate rejects before the pipeline runs")
}

func TestUpdateStatus_Validation(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())

	_, err := fx.svc.UpdateStatus(context.Background(), 7, 1, nil, model.MemberStatusApproved, "")
	assert.ErrorIs(t, err, pkg.ErrValidation)

	_, err = fx.svc.UpdateStatus(context.Background(), 7, 1, []uint64{5}, "banana", "")
	assert.ErrorIs(t, err, pkg.ErrValidation)
}

func TestUpdateStatus_MirrorFailureIsIsolated(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	fx.store.members[5] = pendingMember()
	fx.chat.sendErr = errors.New("discord down")
	fx.store.changes = []mysql.StatusChange{{
		MemberID: 5, UserID: 7, RosterID: 1,
		OldStatus: model.MemberStatusPending,
		NewStatus: model.MemberStatusRejected,
		Version:   2,
	}}

	_, err := fx.svc.UpdateStatus(context.Background(), 7, 1, []uint64{5}, model.MemberStatusRejected, "")
	require.NoError(t, err, "post-commit mirror failure never flips the response")
	fx.svc.wg.Wait()

	assert.Len(t, fx.em.find(EventMembersStatus), 2, "broadcast unaffected by mirror failure")
}

func TestRemove_ConstraintPropagates(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	fx.store.err = fmt.Errorf("%w: roster must retain an owner-tier member", pkg.ErrConstraint)

	err := fx.svc.Remove(context.Background(), 7, 1, 5, "")
	assert.ErrorIs(t, err, pkg.ErrConstraint)
	fx.svc.wg.Wait()
	assert.Empty(t, fx.em.snapshot(), "rolled-back mutation must not broadcast")
}

func TestRemove_FanOut(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	fx.store.members[5] = pendingMember()

	require.NoError(t, fx.svc.Remove(context.Background(), 7, 1, 5, "cli-2"))
	fx.svc.wg.Wait()

	emits := fx.em.find(EventRemoveMembers)
	require.Len(t, emits, 2)
	assert.True(t, emits[0].Volatile)
	assert.Equal(t, []uint64{5}, fx.store.removed)
}

func TestLeave_PurgesMirror(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	m := pendingMember()
	fx.store.members[5] = m
	mirrorStore := fx.svc.mirror.store.(*fakeMirrorStore)
	mirrorStore.recs[5] = &model.MirrorRecord{MemberID: 5, ChannelID: "c1", MessageID: "m-9"}

	require.NoError(t, fx.svc.Leave(context.Background(), m.UserID, 1, ""))
	fx.svc.wg.Wait()

	assert.Equal(t, []string{"m-9"}, fx.chat.deletes, "voluntary leave deletes the remote message")
	assert.Nil(t, mirrorStore.recs[5])
	assert.Len(t, fx.em.find(EventRemoveMembers), 2)
}

func TestApply_TriggersFirstMirrorPost(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())

	m, err := fx.svc.Apply(context.Background(), 7, 1, []model.MemberAnswer{
		{Field: "age", Value: "20", Visible: true},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusPending, m.Status)
	fx.svc.wg.Wait()

	require.Len(t, fx.chat.sent, 1)
	assert.Equal(t, "PENDING", fx.chat.sent[0].Status)
	assert.Len(t, fx.em.find(EventMembersStatus), 2)
}

func TestListMembers_CacheHitSkipsStore(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	cached := []byte(`{"members":[],"next":0}`)
	require.NoError(t, fx.cache.SetMemberPage(context.Background(), 1, model.MemberStatusApproved, 0, cached))

	raw, err := fx.svc.ListMembers(context.Background(), 7, 1, model.MemberStatusApproved, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, cached, []byte(raw))
}

func TestUpdateRankAndPermissions_TargetedReliableEmit(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	m := pendingMember()
	fx.store.members[5] = m

	rankID := uint64(3)
	_, err := fx.svc.UpdateRankAndPermissions(context.Background(), 7, 1, 5, &rankID, nil, "")
	require.NoError(t, err)
	fx.svc.wg.Wait()

	emits := fx.em.find(EventMemberRank)
	require.Len(t, emits, 2)
	sawTargeted := false
	for _, e := range emits {
		if e.Room == fmt.Sprintf("roster:1:user:%d", m.UserID) {
			assert.False(t, e.Volatile, "permission-scoped events must not be dropped")
			sawTargeted = true
		}
	}
	assert.True(t, sawTargeted, "targeted room received the event")
}

func TestCanJoinRoom(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())

	assert.True(t, fx.svc.CanJoinRoom(7, "roster:1"))
	assert.True(t, fx.svc.CanJoinRoom(7, "roster:1:user:7"))
	assert.False(t, fx.svc.CanJoinRoom(7, "roster:1:user:9"), "targeted rooms are personal")
	assert.False(t, fx.svc.CanJoinRoom(7, "rosters:index"), "index room is admin only")
	assert.False(t, fx.svc.CanJoinRoom(999, "roster:1"), "non-member cannot join")

	// 管理员可进索引房
	fx.svc.perms.users.(*fakeUsers).users[1] = &model.User{ID: 1, Role: model.UserRoleAdmin}
	assert.True(t, fx.svc.CanJoinRoom(1, "rosters:index"))
}

// 并发双写同一成员：仓储层行锁串行化，这里验证两次调用都拿到成功响应
func TestUpdateStatus_ConcurrentBothSucceed(t *testing.T) {
	fx := newMemberFixture(t, linkedRoster())
	fx.store.members[5] = pendingMember()
	fx.store.changes = []mysql.StatusChange{{
		MemberID: 5, UserID: 7, RosterID: 1,
		OldStatus: model.MemberStatusPending,
		NewStatus: model.MemberStatusApproved,
		Version:   2,
	}}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	statuses := []string{model.MemberStatusApproved, model.MemberStatusRejected}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.svc.UpdateStatus(context.Background(), 7, 1, []uint64{5}, statuses[i], "")
		}(i)
	}
	wg.Wait()
	fx.svc.wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 2, fx.store.updateCalls)
	// 两次提交各自广播，客户端按 Version 丢弃落后事件
	assert.GreaterOrEqual(t, len(fx.em.find(EventMembersStatus)), 2)
}
