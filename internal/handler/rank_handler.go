package handler

import (
	"net/http"
	"strconv"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/service"

	"github.com/gin-gonic/gin"
)

type RankHandler struct {
	svc *service.RankService
}

func NewRankHandler(svc *service.RankService) *RankHandler {
	return &RankHandler{svc: svc}
}

type RankReq struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Priority    int             `json:"priority"`
	Permissions *PermissionsReq `json:"permissions"`
	Source      string          `json:"source"`
}

// Upsert id=0 新建，否则更新
func (h *RankHandler) Upsert(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)

	var req RankReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	rank := &model.Rank{
		ID:       req.ID,
		RosterID: rosterIDParam(c),
		Name:     req.Name,
		Priority: req.Priority,
	}
	if p := req.Permissions; p != nil {
		rank.AddMembers, rank.EditMembers, rank.RemoveMembers = p.AddMembers, p.EditMembers, p.RemoveMembers
		rank.AddRanks, rank.EditRanks, rank.RemoveRanks = p.AddRanks, p.EditRanks, p.RemoveRanks
		rank.EditDetails, rank.DeleteRoster, rank.EditPermissions = p.EditDetails, p.DeleteRoster, p.EditPermissions
	}

	if err := h.svc.Upsert(c.Request.Context(), actorID, rank, req.Source); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rank.ID})
}

func (h *RankHandler) Delete(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)
	rankID, _ := strconv.ParseUint(c.Param("rankID"), 10, 64)

	if err := h.svc.Delete(c.Request.Context(), actorID, rosterIDParam(c), rankID, c.Query("source")); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *RankHandler) List(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)

	list, err := h.svc.List(c.Request.Context(), actorID, rosterIDParam(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}
