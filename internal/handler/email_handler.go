package handler

import (
	"net/http"

	"Guild_Roster/internal/pkg"
	"Guild_Roster/internal/service"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	svc *service.EmailService
}

type SendCodeReq struct {
	Scope string `json:"scope" binding:"required,oneof=register reset"`
	Email string `json:"email" binding:"required,email"`
}

type VerifyReq struct {
	Scope string `json:"scope" binding:"required,oneof=register reset"`
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code"  binding:"required,len=6"`
}

func NewEmailHandler(cfg pkg.SMTPConfig) *EmailHandler {
	return &EmailHandler{svc: service.NewEmailService(cfg)}
}

func (h *EmailHandler) SendCode(c *gin.Context) {
	var req SendCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	if err := h.svc.SendCode(req.Scope, req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

// VerifyCode 校验并消费验证码，通过一次后即失效
func (h *EmailHandler) VerifyCode(c *gin.Context) {
	var req VerifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	ok, err := h.svc.VerifyCode(req.Scope, req.Email, req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": ok})
}
