package handler

import (
	"github.com/bitfantasy/nimo-oa/internal/oa/repository"
	"github.com/gin-gonic/gin"
)

// UserHandler 用户查询处理器（选择审批人/参与人用）
type UserHandler struct {
	users *repository.UserRepository
}

// NewUserHandler 创建用户查询处理器
func NewUserHandler(users *repository.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Search 搜索用户（按名字/工号/邮箱模糊匹配）
// GET /api/v1/users/search?q=xxx
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		BadRequest(c, "搜索关键字不能为空")
		return
	}
	users, err := h.users.Search(c.Request.Context(), q, 20)
	if err != nil {
		InternalError(c, "搜索用户失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": users})
}
