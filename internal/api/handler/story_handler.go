package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/pkg/response"
)

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListStories 故事列表
// @Summary 分页获取故事列表（最新在前）
// @Tags 故事
// @Produce json
// @Param page query int false "页码" default(1)
// @Param per_page query int false "每页数量" default(8)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/stories [get]
func (h *Handler) ListStories(c *gin.Context) {
	page, size := pageParams(c, 8)
	p, err := h.stories.List(c.Request.Context(), page, size)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"stories": p.Items, "total": p.Total, "page": page})
}

// GetStory 故事详情
// @Summary 获取故事详情（浏览量加一）
// @Tags 故事
// @Produce json
// @Param id path string true "故事ID"
// @Success 200 {object} response.Response{data=service.StoryDetail}
// @Failure 404 {object} response.Response
// @Router /api/stories/{id} [get]
func (h *Handler) GetStory(c *gin.Context) {
	d, err := h.stories.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, d)
}

// SubmitComment 发表评论
// @Summary 发表评论；楼主回复与证据异步生成
// @Tags 故事
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "故事ID"
// @Param request body commentRequest true "评论内容"
// @Success 201 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/stories/{id}/comments [post]
func (h *Handler) SubmitComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.comments.Submit(c.Request.Context(), c.Param("id"), currentUser(c), req.Content)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Created(c, gin.H{
		"comment":             res.Comment,
		"user_comment_count":  res.UserCommentCount,
		"ai_response_pending": true,
		"evidence_pending":    res.EvidenceJobID != "",
	})
}
