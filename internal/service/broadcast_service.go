package service

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/repository/mysql"
	"Guild_Roster/internal/ws"
)

// 下行事件名
const (
	EventMembersStatus = "update:members:status"
	EventMemberRank    = "update:member:rank"
	EventRemoveMembers = "remove:members"
	EventSettings      = "update:settings"
)

type emitter interface {
	Emit(room, event string, payload any, volatile bool)
}

type streamProducer interface {
	Send(ctx context.Context, key string, value []byte) error
}

// MemberView 成员的统一投影：无论订阅方最初怎么查的，
// 同名事件看到的都是这一个形状；答案打平成 field->value
type MemberView struct {
	ID         uint64            `json:"id"`
	UserID     uint64            `json:"user_id"`
	RosterID   uint64            `json:"roster_id"`
	Status     string            `json:"status"`
	RankID     *uint64           `json:"rank_id,omitempty"`
	RankName   string            `json:"rank_name,omitempty"`
	Version    uint64            `json:"version"`
	ApprovedAt *time.Time        `json:"approved_at,omitempty"`
	Answers    map[string]string `json:"answers,omitempty"`
}

func NormalizeMember(m *model.Member) MemberView {
	v := MemberView{
		ID:         m.ID,
		UserID:     m.UserID,
		RosterID:   m.RosterID,
		Status:     m.Status,
		RankID:     m.RankID,
		Version:    m.Version,
		ApprovedAt: m.ApprovedAt,
	}
	if m.Rank != nil {
		v.RankName = m.Rank.Name
	}
	if len(m.Answers) > 0 {
		v.Answers = make(map[string]string, len(m.Answers))
		for _, a := range m.Answers {
			v.Answers[a.Field] = a.Value
		}
	}
	return v
}

// BroadcastService 提交后的实时扇出：hub 推在线客户端，
// kafka 留审计事件流（按战队 id 作 key，同队事件有序）。
// 整条链路都在提交之后，失败只记日志。
type BroadcastService struct {
	hub      emitter
	producer streamProducer
}

func NewBroadcastService(hub *ws.Hub, producer *pkg.KafkaProducer) *BroadcastService {
	var p streamProducer
	if producer != nil {
		p = producer
	}
	return &BroadcastService{hub: hub, producer: p}
}

func (s *BroadcastService) stream(rosterID uint64, event string, payload any) {
	if s.producer == nil {
		return
	}
	data, err := json.Marshal(map[string]any{"event": event, "payload": payload})
	if err != nil {
		log.Printf("stream marshal err event=%s: %v", event, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err = s.producer.Send(ctx, strconv.FormatUint(rosterID, 10), data); err != nil {
		log.Printf("stream send err event=%s roster=%d: %v", event, rosterID, err)
	}
}

type statusPayload struct {
	RosterID uint64         `json:"roster_id"`
	Source   string         `json:"source"`
	Members  []statusChange `json:"members"`
}

type statusChange struct {
	ID        uint64 `json:"id"`
	UserID    uint64 `json:"user_id"`
	OldStatus string `json:"old_status"`
	Status    string `json:"status"`
	Version   uint64 `json:"version"`
}

// MembersStatusChanged 状态类通知走 volatile：漏一条可以接受，
// 重连后客户端重新拉全量。Version 保证单成员观测不回退。
func (s *BroadcastService) MembersStatusChanged(rosterID uint64, changes []mysql.StatusChange, source string) {
	if len(changes) == 0 {
		return
	}
	p := statusPayload{RosterID: rosterID, Source: source}
	for _, c := range changes {
		p.Members = append(p.Members, statusChange{
			ID:        c.MemberID,
			UserID:    c.UserID,
			OldStatus: c.OldStatus,
			Status:    c.NewStatus,
			Version:   c.Version,
		})
	}
	s.hub.Emit(ws.RoomRoster(rosterID), EventMembersStatus, p, true)
	s.hub.Emit(ws.RoomIndex, EventMembersStatus, p, true)
	s.stream(rosterID, EventMembersStatus, p)
}

type rankPayload struct {
	RosterID uint64     `json:"roster_id"`
	Source   string     `json:"source"`
	Member   MemberView `json:"member"`
}

// MemberRankChanged 战队房间 volatile；当事人房间走可靠发送，
// 权限变化不允许被静默漏掉
func (s *BroadcastService) MemberRankChanged(m *model.Member, source string) {
	p := rankPayload{RosterID: m.RosterID, Source: source, Member: NormalizeMember(m)}
	s.hub.Emit(ws.RoomRoster(m.RosterID), EventMemberRank, p, true)
	s.hub.Emit(ws.RoomRosterUser(m.RosterID, m.UserID), EventMemberRank, p, false)
	s.stream(m.RosterID, EventMemberRank, p)
}

type removePayload struct {
	RosterID  uint64   `json:"roster_id"`
	Source    string   `json:"source"`
	MemberIDs []uint64 `json:"member_ids"`
}

func (s *BroadcastService) MembersRemoved(rosterID uint64, memberIDs []uint64, source string) {
	p := removePayload{RosterID: rosterID, Source: source, MemberIDs: memberIDs}
	s.hub.Emit(ws.RoomRoster(rosterID), EventRemoveMembers, p, true)
	s.hub.Emit(ws.RoomIndex, EventRemoveMembers, p, true)
	s.stream(rosterID, EventRemoveMembers, p)
}

type settingsPayload struct {
	RosterID uint64 `json:"roster_id"`
	Source   string `json:"source"`
	Roster   any    `json:"roster"`
}

// SettingsChanged 设置类变更不允许丢，走可靠发送
func (s *BroadcastService) SettingsChanged(rosterID uint64, view any, source string) {
	p := settingsPayload{RosterID: rosterID, Source: source, Roster: view}
	s.hub.Emit(ws.RoomRoster(rosterID), EventSettings, p, false)
	s.hub.Emit(ws.RoomIndex, EventSettings, p, false)
	s.stream(rosterID, EventSettings, p)
}
