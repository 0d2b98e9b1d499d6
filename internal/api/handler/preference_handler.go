package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/internal/generator"
	"github.com/d60-Lab/living-legends/pkg/response"
)

type categoryClickRequest struct {
	Category string `json:"category" binding:"required"`
}

// TrackCategoryClick 记录一次分类点击
// @Summary 记录分类点击
// @Tags 偏好
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body categoryClickRequest true "分类"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Router /api/track-category-click [post]
func (h *Handler) TrackCategoryClick(c *gin.Context) {
	var req categoryClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "category is required")
		return
	}
	n, err := h.categories.Track(c.Request.Context(), currentUser(c), req.Category)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "success", "click_count": n})
}

// TopCategories 点击最多的两个分类
// @Summary 常看分类
// @Tags 偏好
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/user-top-categories [get]
func (h *Handler) TopCategories(c *gin.Context) {
	top, err := h.categories.Top(c.Request.Context(), currentUser(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"categories": top})
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

// Translate 翻译帖子或评论
// @Summary 即时翻译
// @Description 生成服务不可用时返回 translated=null 与 error，状态码仍为 200
// @Tags 翻译
// @Accept json
// @Produce json
// @Param request body translateRequest true "原文与目标语言（默认 en）"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Router /api/translate [post]
func (h *Handler) Translate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	out, err := h.translator.Translate(c.Request.Context(), req.Text, req.Target)
	switch {
	case errors.Is(err, generator.ErrUnavailable):
		response.Success(c, gin.H{"translated": nil, "error": "no translation service available"})
	case err != nil:
		serviceError(c, err)
	default:
		response.Success(c, gin.H{"translated": out})
	}
}
