package handler

import (
	"log"
	"net/http"

	"Guild_Roster/internal/service"
	"Guild_Roster/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 同源校验交给网关层
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub *ws.Hub
	svc *service.MemberService
}

func NewWSHandler(hub *ws.Hub, svc *service.MemberService) *WSHandler {
	return &WSHandler{hub: hub, svc: svc}
}

// Serve 升级连接。进房校验闭包捕获当前用户，连接层不感知权限模型。
func (h *WSHandler) Serve(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	userID := userIDAny.(uint64)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade err user=%d: %v", userID, err)
		return
	}

	session := ws.NewSession(h.hub, conn, func(room string) bool {
		return h.svc.CanJoinRoom(userID, room)
	})
	go session.Run()
}
