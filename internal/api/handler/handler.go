package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/internal/api/middleware"
	"github.com/d60-Lab/living-legends/internal/service"
	"github.com/d60-Lab/living-legends/pkg/response"
)

// Commenter 评论提交
type Commenter interface {
	Submit(ctx context.Context, storyID, userID, body string) (*service.SubmitResult, error)
}

// Resetter 管理员重置
type Resetter interface {
	Reset(ctx context.Context) (*service.ResetReport, error)
}

// Translator 即时翻译
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Handler 聚合所有 HTTP 处理函数
type Handler struct {
	auth          service.AuthService
	stories       service.StoryService
	comments      Commenter
	follows       service.FollowService
	notifications service.NotificationService
	resetter      Resetter
	categories    service.CategoryService
	translator    Translator
}

// Options 构造 Handler 所需的服务
type Options struct {
	Auth          service.AuthService
	Stories       service.StoryService
	Comments      Commenter
	Follows       service.FollowService
	Notifications service.NotificationService
	Resetter      Resetter
	Categories    service.CategoryService
	Translator    Translator
}

func New(o Options) *Handler {
	return &Handler{
		auth:          o.Auth,
		stories:       o.Stories,
		comments:      o.Comments,
		follows:       o.Follows,
		notifications: o.Notifications,
		resetter:      o.Resetter,
		categories:    o.Categories,
		translator:    o.Translator,
	}
}

func pageParams(c *gin.Context, defSize int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defSize)))
	return page, size
}

func currentUser(c *gin.Context) string { return c.GetString(middleware.UserIDKey) }

// serviceError 领域错误映射为 HTTP 状态码
func serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStoryNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrCommentNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrStoryLocked):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrEmptyComment), errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrTextTooLong):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrUserExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		response.Unauthorized(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
