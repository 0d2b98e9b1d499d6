package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/pkg/response"
)

// ResetStories 重置生成故事
// @Summary 删除全部生成故事并写入种子帖
// @Tags 管理
// @Produce json
// @Param X-ADMIN-KEY header string true "管理密钥"
// @Success 200 {object} response.Response{data=service.ResetReport}
// @Failure 401 {object} response.Response
// @Router /api/admin/reset_ai_stories [post]
func (h *Handler) ResetStories(c *gin.Context) {
	report, err := h.resetter.Reset(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, report)
}
