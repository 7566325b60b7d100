package handler

import (
	"errors"
	"net/http"

	"Guild_Roster/internal/pkg"

	"github.com/gin-gonic/gin"
)

// writeErr 错误分层到状态码的唯一出口：
// 403 不重试，422 用户可改参重提，500 可安全重试
func writeErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkg.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
	case errors.Is(err, pkg.ErrPermissionDenied), errors.Is(err, pkg.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"msg": "permission denied"})
	case errors.Is(err, pkg.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "not found"})
	case errors.Is(err, pkg.ErrConstraint):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"msg": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
	}
}
