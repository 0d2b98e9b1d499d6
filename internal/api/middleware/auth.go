package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/pkg/response"
)

// UserIDKey gin 上下文中当前用户 ID 的键
const UserIDKey = "user_id"

// TokenParser 校验令牌并返回用户 ID
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// RequireAuth 接受 "Bearer <token>" 或裸 token
func RequireAuth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			response.Unauthorized(c, "unauthorized")
			return
		}
		token := header
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = strings.TrimSpace(parts[1])
		}
		uid, err := p.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "unauthorized")
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// AdminKey 校验 X-ADMIN-KEY；未配置密钥时拒绝所有请求
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-ADMIN-KEY")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			response.Unauthorized(c, "invalid admin key")
			return
		}
		c.Next()
	}
}
