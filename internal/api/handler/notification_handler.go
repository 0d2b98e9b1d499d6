package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/pkg/response"
)

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// ListNotifications 通知列表
// @Summary 当前用户的通知（最新在前）
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	page, size := pageParams(c, 20)
	items, unread, err := h.notifications.List(c.Request.Context(), currentUser(c), page, size)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"notifications": items, "unread": unread, "page": page})
}

// MarkNotificationsRead 标记已读
// @Summary 按 id 标记已读；ids 为空时全部标记
// @Tags 通知
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body markReadRequest false "通知ID列表"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/notifications/read [post]
func (h *Handler) MarkNotificationsRead(c *gin.Context) {
	var req markReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	n, err := h.notifications.MarkRead(c.Request.Context(), currentUser(c), req.IDs)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}
