package httptransport

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/auth"
	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/middleware"
)

const (
	stateCookie = "oauth_state"
	// sessionCookie 与认证中间件读取的 cookie 名保持一致
	sessionCookie = "access_token"
)

// AuthHandler 处理登录与身份相关的端点。
type AuthHandler struct {
	auth        *auth.Service
	frontendURL string
	log         *zap.Logger
}

// NewAuthHandler 创建认证处理器。
func NewAuthHandler(authService *auth.Service, frontendURL string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:        authService,
		frontendURL: frontendURL,
		log:         log,
	}
}

type userResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
	}
}

// GoogleLogin 重定向到 Google 授权页面。
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state := randomState()
	c.SetCookie(stateCookie, state, 300, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.auth.LoginURL(state))
}

// GoogleCallback 处理 OAuth2 回调。
// 成功时带着令牌与用户资料重定向回前端，失败时重定向到错误页。
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	errorRedirect := h.frontendURL + "/auth/error"

	code := c.Query("code")
	if code == "" {
		h.log.Warn("oauth callback missing code")
		c.Redirect(http.StatusTemporaryRedirect, errorRedirect)
		return
	}

	// state 校验：回调里的值必须与下发的 cookie 一致
	if cookie, err := c.Cookie(stateCookie); err != nil || cookie != c.Query("state") {
		h.log.Warn("oauth callback state mismatch", zap.String("ip", c.ClientIP()))
		c.Redirect(http.StatusTemporaryRedirect, errorRedirect)
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", false, true)

	token, user, err := h.auth.HandleCallback(c.Request.Context(), code)
	if err != nil {
		h.log.Warn("oauth callback failed", zap.Error(err))
		c.Redirect(http.StatusTemporaryRedirect, errorRedirect)
		return
	}

	h.setSessionCookie(c, token)

	params := url.Values{}
	params.Set("token", token)
	params.Set("userId", user.ID)
	params.Set("name", user.Name)
	params.Set("email", user.Email)
	params.Set("picture", user.Picture)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/auth/callback?"+params.Encode())
}

type loginRequest struct {
	Email string `json:"email" binding:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login 免密演示登录，仅验证邮箱格式。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	token, user, err := h.auth.LoginByEmail(req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidEmail) {
			BadRequest(c, "invalid email address")
			return
		}
		h.log.Error("demo login failed", zap.Error(err))
		InternalError(c)
		return
	}

	h.setSessionCookie(c, token)
	Success(c, loginResponse{Token: token, User: toUserResponse(user)})
}

// setSessionCookie 下发会话 cookie，有效期与令牌一致。
func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(sessionCookie, token, int(h.auth.TokenTTL().Seconds()), "/", "", false, true)
}

// Me 返回当前登录用户的身份。
func (h *AuthHandler) Me(c *gin.Context) {
	subject, ok := middleware.Subject(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.auth.UserBySubject(subject)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			Unauthorized(c, MsgAuthRequired)
			return
		}
		InternalError(c)
		return
	}

	Success(c, toUserResponse(user))
}

// Logout 清除会话 cookie 并返回确认。
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	Success(c, gin.H{"status": "logged out"})
}

func randomState() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "state"
	}
	return hex.EncodeToString(buf)
}
