package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// 房间命名
const RoomIndex = "rosters:index"

func RoomRoster(rosterID uint64) string {
	return fmt.Sprintf("roster:%d", rosterID)
}

// RoomRosterUser 按成员定向推送（权限相关的私有变更）
func RoomRosterUser(rosterID, userID uint64) string {
	return fmt.Sprintf("roster:%d:user:%d", rosterID, userID)
}

// Envelope 下行事件统一外壳
type Envelope struct {
	Event   string `json:"event"`
	Room    string `json:"room"`
	Payload any    `json:"payload"`
}

// Hub 房间到会话的注册表。
// volatile 发送允许丢（慢消费者直接跳过）；可靠发送不丢事件，
// 发不进去就摘除该会话，客户端重连后重新拉全量，同样满足不回退约束。
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Session]struct{})}
}

func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// 已摘除的会话其 send 已关闭，重新入房会让后续 Emit 写关闭的通道
	if s.detached {
		return
	}
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*Session]struct{})
		h.rooms[room] = set
	}
	set[s] = struct{}{}
	s.rooms[room] = struct{}{}
}

func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s, room)
}

func (h *Hub) leaveLocked(s *Session, room string) {
	if set, ok := h.rooms[room]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(s.rooms, room)
}

// Detach 会话断开时清理全部房间
func (h *Hub) Detach(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range s.rooms {
		h.leaveLocked(s, room)
	}
	s.detached = true
	s.closeOnce.Do(func() { close(s.send) })
}

// Emit 向房间广播一个事件。载荷在入口处统一序列化，所有订阅者看到同一形状。
func (h *Hub) Emit(room, event string, payload any, volatile bool) {
	data, err := json.Marshal(Envelope{Event: event, Room: room, Payload: payload})
	if err != nil {
		log.Printf("ws marshal err room=%s event=%s: %v", room, event, err)
		return
	}

	h.mu.RLock()
	var evicted []*Session
	for s := range h.rooms[room] {
		select {
		case s.send <- data:
		default:
			if volatile {
				continue
			}
			evicted = append(evicted, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range evicted {
		log.Printf("ws slow consumer evicted room=%s event=%s", room, event)
		h.Detach(s)
	}
}

// RoomSize 仅测试与诊断用
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
