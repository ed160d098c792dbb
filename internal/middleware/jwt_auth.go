package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/auth/jwt"
	"github.com/cjaradhye/burnbox/internal/storage"
)

// 上下文键名
const (
	ContextSubject = "subject"
	ContextUserID  = "userID"
	ContextEmail   = "email"
)

// JWTAuth JWT 认证中间件。
// 解析失败不中断请求，而是继续以未认证身份处理，
// 由需要认证的接口在缺少身份时返回 401。
type JWTAuth struct {
	tokens *jwt.Manager
	users  storage.UserRepository
	log    *zap.Logger
}

// NewJWTAuth 创建 JWT 认证中间件。
func NewJWTAuth(tokens *jwt.Manager, users storage.UserRepository, log *zap.Logger) *JWTAuth {
	return &JWTAuth{tokens: tokens, users: users, log: log}
}

// Authenticate 尝试解析请求携带的 JWT。
// 签名与有效期校验之外还要求主体对应的用户存在；
// 任何一步失败都继续放行，请求以未认证身份进入后续处理。
func (ja *JWTAuth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := ja.tokens.Validate(token)
		if err != nil {
			ja.log.Debug("token rejected",
				zap.String("ip", c.ClientIP()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		// 主体必须对应现存用户，防止已删除用户的令牌继续有效
		user, err := ja.users.GetUserBySubject(claims.Subject)
		if err != nil {
			ja.log.Debug("token subject has no user record",
				zap.String("subject", claims.Subject),
			)
			c.Next()
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextEmail, user.Email)
		c.Next()
	}
}

// RequireAuth 要求请求已通过认证，否则返回 401。
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextSubject); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractToken 从 Authorization 头或 cookie 中提取 JWT。
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}
	return ""
}

// Subject 返回上下文中的认证主体，未认证时 ok 为 false。
func Subject(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextSubject)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// UserID 返回上下文中的用户 ID，未认证时 ok 为 false。
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
