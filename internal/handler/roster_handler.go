package handler

import (
	"net/http"
	"strconv"

	"Guild_Roster/internal/service"

	"github.com/gin-gonic/gin"
)

type RosterHandler struct {
	svc *service.RosterService
}

type RosterCreateReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SettingsReq 指针字段区分"没传"和"清空"
type SettingsReq struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	GuildID              *string `json:"guild_id"`
	ChannelID            *string `json:"channel_id"`
	ApplyRolesOnApproval *bool   `json:"apply_roles_on_approval"`
	Source               string  `json:"source"`
}

func NewRosterHandler(svc *service.RosterService) *RosterHandler {
	return &RosterHandler{svc: svc}
}

func (h *RosterHandler) Create(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	userID := userIDAny.(uint64)

	var req RosterCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	roster, err := h.svc.Create(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": roster.ID, "name": roster.Name})
}

func (h *RosterHandler) Get(c *gin.Context) {
	raw, err := h.svc.Get(c.Request.Context(), rosterIDParam(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// UpdateSettings 只把传了的字段收进更新集
func (h *RosterHandler) UpdateSettings(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)

	var req SettingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.GuildID != nil {
		updates["guild_id"] = *req.GuildID
	}
	if req.ChannelID != nil {
		updates["channel_id"] = *req.ChannelID
	}
	if req.ApplyRolesOnApproval != nil {
		updates["apply_roles_on_approval"] = *req.ApplyRolesOnApproval
	}

	roster, err := h.svc.UpdateSettings(c.Request.Context(), actorID, rosterIDParam(c), updates, req.Source)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NormalizeRoster(roster))
}

func (h *RosterHandler) Delete(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)

	if err := h.svc.Delete(c.Request.Context(), actorID, rosterIDParam(c), c.Query("source")); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *RosterHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))

	list, err := h.svc.List(c.Request.Context(), page, size)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}
