package controllers

import (
	"bookbid_go/services"
	"bookbid_go/utils"

	"github.com/gin-gonic/gin"
)

// AuthController 认证控制器
type AuthController struct {
	authService *services.AuthService
}

// NewAuthController 创建认证控制器实例
func NewAuthController() *AuthController {
	return &AuthController{
		authService: services.NewAuthService(),
	}
}

// Register 用户注册
// @Summary 用户注册
// @Tags auth
// @Router /api/auth/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, token, err := ac.authService.Register(&req)
	if err != nil {
		utils.Error(c, utils.CodeError, err.Error())
		return
	}

	utils.Created(c, gin.H{
		"user":  user,
		"token": token,
	})
}

// Login 用户登录
// @Summary 用户登录
// @Tags auth
// @Router /api/auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, token, err := ac.authService.Login(&req)
	if err != nil {
		utils.Unauthorized(c, err.Error())
		return
	}

	utils.Success(c, gin.H{
		"user":  user,
		"token": token,
	})
}
