package services

import (
	"errors"
	"fmt"
	"time"

	"bookbid_go/config"
	"bookbid_go/models"

	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务
type AuthService struct {
	jwtService *config.JWTService
}

// NewAuthService 创建认证服务实例
func NewAuthService() *AuthService {
	return &AuthService{
		jwtService: config.GetJWTService(),
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=100"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register 用户注册
func (as *AuthService) Register(req *RegisterRequest) (*models.User, string, error) {
	// 1. 检查用户名是否已存在
	var existingUser models.User
	if err := config.DB.Where("username = ?", req.Username).First(&existingUser).Error; err == nil {
		return nil, "", errors.New("username already exists")
	}

	// 2. 检查邮箱是否已存在
	if err := config.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		return nil, "", errors.New("email already exists")
	}

	// 3. 密码加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	// 4. 创建用户
	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		Status:   1,
	}

	if err := config.DB.Create(&user).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	// 5. 生成JWT token
	token, err := as.jwtService.GenerateToken(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	// 6. 记录注册事件
	notifyEvent("user_registered", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})

	return &user, token, nil
}

// Login 用户登录
func (as *AuthService) Login(req *LoginRequest) (*models.User, string, error) {
	// 1. 查找用户
	var user models.User
	if err := config.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return nil, "", errors.New("invalid email or password")
	}

	// 2. 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, "", errors.New("invalid email or password")
	}

	// 3. 检查用户状态
	if user.Status == 0 {
		return nil, "", errors.New("account is disabled, please contact support")
	}

	// 4. 更新最后登录时间
	now := time.Now()
	config.DB.Model(&user).Update("last_login", &now)

	// 5. 生成JWT token
	token, err := as.jwtService.GenerateToken(user.ID, user.Username, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return &user, token, nil
}
