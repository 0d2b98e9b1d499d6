// Package api 组装 gin 路由与中间件。
package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/living-legends/docs"
	"github.com/d60-Lab/living-legends/internal/api/handler"
	"github.com/d60-Lab/living-legends/internal/api/middleware"
	"github.com/d60-Lab/living-legends/pkg/logger"
)

// RouterOptions 路由级配置
type RouterOptions struct {
	Mode         string
	ServiceName  string
	Tracing      bool
	AdminKey     string
	StaticDir    string
	StaticPrefix string
}

// NewRouter 注册全部路由；auth 用于校验 Bearer 令牌
func NewRouter(h *handler.Handler, auth middleware.TokenParser, o RouterOptions) *gin.Engine {
	if o.Mode != "" {
		gin.SetMode(o.Mode)
	}
	r := gin.New()
	log := logger.Named("http")
	r.Use(middleware.Recovery(log), middleware.Logger(log))
	if o.Tracing {
		r.Use(otelgin.Middleware(o.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if o.StaticDir != "" && o.StaticPrefix != "" {
		r.Static(o.StaticPrefix, o.StaticDir)
	}

	requireAuth := middleware.RequireAuth(auth)
	api := r.Group("/api")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)

		api.GET("/stories", h.ListStories)
		api.GET("/stories/:id", h.GetStory)
		api.POST("/stories/:id/comments", requireAuth, h.SubmitComment)
		api.POST("/stories/:id/follow", requireAuth, h.ToggleFollow)
		api.GET("/stories/:id/follow", requireAuth, h.FollowStatus)

		api.GET("/notifications", requireAuth, h.ListNotifications)
		api.POST("/notifications/read", requireAuth, h.MarkNotificationsRead)

		api.POST("/track-category-click", requireAuth, h.TrackCategoryClick)
		api.GET("/user-top-categories", requireAuth, h.TopCategories)
		api.POST("/translate", h.Translate)

		api.POST("/admin/reset_ai_stories", middleware.AdminKey(o.AdminKey), h.ResetStories)
	}
	return r
}
