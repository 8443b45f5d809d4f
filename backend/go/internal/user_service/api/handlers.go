package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"IntentCode/backend/go/internal/auth"
	"IntentCode/backend/go/internal/user_service/service"
	"IntentCode/backend/go/internal/user_service/store"

	"github.com/gin-gonic/gin"
)

// Handler 封装了所有 API endpoint 的处理函数。
type Handler struct {
	service *service.Service
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(s *service.Service) *Handler {
	return &Handler{service: s}
}

// --- Registration and Login Handlers ---

// RegisterEmailRequest 定义了邮箱注册请求的 JSON 结构。
type RegisterEmailRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Username string `json:"username" binding:"required"`
	FullName string `json:"fullName"`
}

// RegisterEmail 处理邮箱注册请求。
func (h *Handler) RegisterEmail(c *gin.Context) {
	var req RegisterEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.RegisterUserByEmail(c.Request.Context(), req.Email, req.Password, req.Username, req.FullName)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "注册成功", "user_id": user.ID})
}

// LoginEmailRequest 定义了邮箱登录请求的 JSON 结构。
type LoginEmailRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginEmail 处理邮箱登录请求。
func (h *Handler) LoginEmail(c *gin.Context) {
	var req LoginEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.service.LoginUserByEmail(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "identity": user.Identity()})
}

// GoogleLoginRequest 定义了 Google 登录请求的 JSON 结构。
// 注意：这是一个简化的实现。在生产环境中，后端应该接收来自前端的 id_token，
// 然后在后端验证这个 token 的有效性，而不是直接信任前端发来的用户信息。
type GoogleLoginRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Username   string `json:"username" binding:"required"`
	FullName   string `json:"fullName"`
	AvatarURL  string `json:"avatarUrl"`
}

// HandleGoogleLogin 处理 Google 登录回调。
func (h *Handler) HandleGoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.service.HandleProviderLogin(c.Request.Context(),
		"google", req.ProviderID, req.Email, req.Username, req.FullName, req.AvatarURL)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "identity": user.Identity()})
}

// --- Profile Handlers ---

// Me 返回当前用户的资料。
func (h *Handler) Me(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"username":      user.Username,
		"fullName":      user.FullName,
		"avatarUrl":     user.AvatarURL,
		"status":        user.Status,
		"last_login_at": user.LastLoginAt,
		"settings":      user.Settings,
	})
}

// UpdateSettings 覆盖当前用户的客户端设置。
func (h *Handler) UpdateSettings(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.UpdateSettings(c.Request.Context(), id, raw); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// userID 从 JWT 中间件写入的身份中取出数字用户 ID。
func userID(c *gin.Context) (uint, bool) {
	ident, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return 0, false
	}
	id, err := strconv.ParseUint(ident.ID, 10, 32)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的用户 ID 格式"})
		return 0, false
	}
	return uint(id), true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, service.ErrEmailTaken), errors.Is(err, store.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
