package handler

import (
	"net/http"
	"strconv"

	"Guild_Roster/internal/model"
	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/service"

	"github.com/gin-gonic/gin"
)

type MemberHandler struct {
	svc *service.MemberService
}

func NewMemberHandler(svc *service.MemberService) *MemberHandler {
	return &MemberHandler{svc: svc}
}

// PermissionsReq 成员覆盖，九个开关与职级同形
type PermissionsReq struct {
	AddMembers      bool `json:"add_members"`
	EditMembers     bool `json:"edit_members"`
	RemoveMembers   bool `json:"remove_members"`
	AddRanks        bool `json:"add_ranks"`
	EditRanks       bool `json:"edit_ranks"`
	RemoveRanks     bool `json:"remove_ranks"`
	EditDetails     bool `json:"edit_details"`
	DeleteRoster    bool `json:"delete_roster"`
	EditPermissions bool `json:"edit_permissions"`
}

func (p *PermissionsReq) toModel() *model.MemberPermission {
	return &model.MemberPermission{
		AddMembers: p.AddMembers, EditMembers: p.EditMembers, RemoveMembers: p.RemoveMembers,
		AddRanks: p.AddRanks, EditRanks: p.EditRanks, RemoveRanks: p.RemoveRanks,
		EditDetails: p.EditDetails, DeleteRoster: p.DeleteRoster, EditPermissions: p.EditPermissions,
	}
}

// MutateReq 成员变更统一载荷。source 由发起方传入并在广播里原样回显，
// 客户端据此跳过自己这次变更的本地重渲染。
type MutateReq struct {
	ID          uint64          `json:"id"`
	IDs         []uint64        `json:"ids"`
	Status      string          `json:"status"`
	Permissions *PermissionsReq `json:"permissions"`
	RankID      *uint64         `json:"roster_rank_id"`
	Source      string          `json:"source"`
}

type AnswerReq struct {
	Field   string `json:"field" binding:"required"`
	Value   string `json:"value"`
	Visible *bool  `json:"visible"`
}

type ApplyReq struct {
	Answers []AnswerReq `json:"answers"`
	Source  string      `json:"source"`
}

func rosterIDParam(c *gin.Context) uint64 {
	id, _ := strconv.ParseUint(c.Param("id"), 10, 64)
	return id
}

// Apply 提交入队申请
func (h *MemberHandler) Apply(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	userID := userIDAny.(uint64)

	var req ApplyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	answers := make([]model.MemberAnswer, 0, len(req.Answers))
	for i, a := range req.Answers {
		visible := true
		if a.Visible != nil {
			visible = *a.Visible
		}
		answers = append(answers, model.MemberAnswer{
			Field:    a.Field,
			Value:    a.Value,
			Position: i,
			Visible:  visible,
		})
	}

	m, err := h.svc.Apply(c.Request.Context(), userID, rosterIDParam(c), answers, req.Source)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": m.ID, "status": m.Status})
}

// Mutate 成员变更统一入口：带 status 走批量状态流，
// 否则按 roster_rank_id / permissions 走职级与覆盖流
func (h *MemberHandler) Mutate(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)
	rosterID := rosterIDParam(c)

	var req MutateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	if req.Status != "" {
		ids := req.IDs
		if len(ids) == 0 && req.ID != 0 {
			ids = []uint64{req.ID}
		}
		changes, err := h.svc.UpdateStatus(c.Request.Context(), actorID, rosterID, ids, req.Status, req.Source)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"changed": len(changes)})
		return
	}

	if req.ID == 0 || (req.RankID == nil && req.Permissions == nil) {
		writeErr(c, pkg.ErrValidation)
		return
	}
	var perms *model.MemberPermission
	if req.Permissions != nil {
		perms = req.Permissions.toModel()
	}
	m, err := h.svc.UpdateRankAndPermissions(c.Request.Context(), actorID, rosterID, req.ID, req.RankID, perms, req.Source)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": m.ID, "version": m.Version})
}

// Remove staff 移出成员
func (h *MemberHandler) Remove(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)
	memberID, _ := strconv.ParseUint(c.Param("memberID"), 10, 64)

	if err := h.svc.Remove(c.Request.Context(), actorID, rosterIDParam(c), memberID, c.Query("source")); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

// Leave 主动退出
func (h *MemberHandler) Leave(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	userID := userIDAny.(uint64)

	if err := h.svc.Leave(c.Request.Context(), userID, rosterIDParam(c), c.Query("source")); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

// List 按状态分页
func (h *MemberHandler) List(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)

	status := c.DefaultQuery("status", model.MemberStatusApproved)
	cursor, _ := strconv.ParseUint(c.Query("cursor"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	raw, err := h.svc.ListMembers(c.Request.Context(), actorID, rosterIDParam(c), status, cursor, limit)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// Get 单成员详情
func (h *MemberHandler) Get(c *gin.Context) {
	userIDAny, _ := c.Get("user_id")
	actorID := userIDAny.(uint64)
	memberID, _ := strconv.ParseUint(c.Param("memberID"), 10, 64)

	raw, err := h.svc.GetMember(c.Request.Context(), actorID, rosterIDParam(c), memberID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
