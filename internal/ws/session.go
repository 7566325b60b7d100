package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// clientCmd 客户端上行控制消息：进出房间
type clientCmd struct {
	Action string `json:"action"` // join / leave
	Room   string `json:"room"`
}

// Session 一条 websocket 连接。CanJoin 由上层注入，
// 进房前做成员/管理员校验，连接层不感知权限模型。
type Session struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	rooms     map[string]struct{}
	closeOnce sync.Once
	// detached 由 hub.mu 保护。摘除后 send 已关闭，
	// 读泵迟到的 join 不得再把会话挂回房间
	detached bool

	CanJoin func(room string) bool
}

func NewSession(hub *Hub, conn *websocket.Conn, canJoin func(room string) bool) *Session {
	return &Session{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		rooms:   make(map[string]struct{}),
		CanJoin: canJoin,
	}
}

// Run 启动读写泵，读泵退出时整体收尾
func (s *Session) Run() {
	go s.writePump()
	s.readPump()
}

func (s *Session) readPump() {
	defer func() {
		s.hub.Detach(s)
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd clientCmd
		if err = json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "join":
			if s.CanJoin != nil && s.CanJoin(cmd.Room) {
				s.hub.Join(s, cmd.Room)
			}
		case "leave":
			s.hub.Leave(s, cmd.Room)
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
