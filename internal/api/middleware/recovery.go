package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/living-legends/pkg/monitor"
	"github.com/d60-Lab/living-legends/pkg/response"
)

// Recovery 捕获 panic，上报 Sentry 后返回 500
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", zap.Any("panic", r), zap.String("path", c.Request.URL.Path))
				monitor.CapturePanic(c.Request.Context(), r, map[string]string{"path": c.FullPath()})
				response.InternalError(c, fmt.Errorf("panic: %v", r))
				c.Abort()
			}
		}()
		c.Next()
	}
}
