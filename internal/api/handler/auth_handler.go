package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/pkg/response"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register 注册
// @Summary 注册新用户
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 201 {object} response.Response{data=authResponse}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, token, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Created(c, authResponse{Token: token, User: u})
}

// Login 登录
// @Summary 用户名密码登录
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录信息"
// @Success 200 {object} response.Response{data=authResponse}
// @Failure 401 {object} response.Response
// @Router /api/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		serviceError(c, err)
		return
	}
	response.Success(c, authResponse{Token: token, User: u})
}
