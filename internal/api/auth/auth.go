package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Handler 提供单管理员登录接口。
//
// 管理员邮箱与 bcrypt 密码哈希来自配置, 不落数据库。
type Handler struct {
	jwtSecret  []byte
	adminEmail string
	adminHash  string
	logger     *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(jwtSecret, adminEmail, adminPasswordHash string, logger *slog.Logger) *Handler {
	return &Handler{
		jwtSecret:  []byte(jwtSecret),
		adminEmail: strings.TrimSpace(strings.ToLower(adminEmail)),
		adminHash:  strings.TrimSpace(adminPasswordHash),
		logger:     logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type customClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Login 校验管理员凭据并返回 JWT。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.adminEmail == "" || h.adminHash == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "login disabled"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email != h.adminEmail {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.adminHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.issueToken()
	if err != nil {
		if h.logger != nil {
			h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("admin logged in", slog.String("email", email))
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Logout 处理注销请求（当前为无状态，直接返回成功）。
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) issueToken() (string, error) {
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   h.adminEmail,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: "admin",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}
