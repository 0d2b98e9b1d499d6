package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func write(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Response{Code: status, Message: msg, Data: data})
}

func Success(c *gin.Context, data interface{}) { write(c, http.StatusOK, "success", data) }

func Created(c *gin.Context, data interface{}) { write(c, http.StatusCreated, "created", data) }

func BadRequest(c *gin.Context, msg string) { write(c, http.StatusBadRequest, msg, nil) }

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Code: http.StatusUnauthorized, Message: msg})
}

func Forbidden(c *gin.Context, msg string) { write(c, http.StatusForbidden, msg, nil) }

func NotFound(c *gin.Context, msg string) { write(c, http.StatusNotFound, msg, nil) }

func Conflict(c *gin.Context, msg string) { write(c, http.StatusConflict, msg, nil) }

// InternalError 不向客户端暴露内部错误细节
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	write(c, http.StatusInternalServerError, "internal server error", nil)
}
