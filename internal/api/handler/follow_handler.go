package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/pkg/response"
)

// ToggleFollow 关注 / 取消关注
// @Summary 切换关注状态
// @Tags 关注
// @Produce json
// @Security BearerAuth
// @Param id path string true "故事ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/stories/{id}/follow [post]
func (h *Handler) ToggleFollow(c *gin.Context) {
	on, err := h.follows.Toggle(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	status := "unfollowed"
	if on {
		status = "followed"
	}
	response.Success(c, gin.H{"status": status, "followed": on})
}

// FollowStatus 是否已关注
// @Summary 查询关注状态
// @Tags 关注
// @Produce json
// @Security BearerAuth
// @Param id path string true "故事ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/stories/{id}/follow [get]
func (h *Handler) FollowStatus(c *gin.Context) {
	on, err := h.follows.IsFollowing(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"followed": on})
}
