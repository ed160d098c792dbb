package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/cjaradhye/burnbox/internal/auth/jwt"
	"github.com/cjaradhye/burnbox/internal/config"
	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"
)

var (
	// ErrInvalidEmail 无效的邮箱格式
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrOAuthExchange OAuth 授权码交换失败
	ErrOAuthExchange = errors.New("oauth code exchange failed")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// googleUserInfoURL Google 用户信息接口
const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// UserRepository 用户存储接口
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserBySubject(subject string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// Service 认证服务。负责 Google OAuth2 登录、用户落库与 JWT 签发。
type Service struct {
	users  UserRepository
	tokens *jwt.Manager
	oauth  *oauth2.Config
	log    *zap.Logger

	// userInfoURL 可在测试中替换为本地假服务
	userInfoURL string
}

// NewService 创建认证服务
func NewService(users UserRepository, tokens *jwt.Manager, googleCfg *config.GoogleConfig, log *zap.Logger) *Service {
	oauthCfg := &oauth2.Config{
		ClientID:     googleCfg.ClientID,
		ClientSecret: googleCfg.ClientSecret,
		RedirectURL:  googleCfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}

	return &Service{
		users:       users,
		tokens:      tokens,
		oauth:       oauthCfg,
		log:         log,
		userInfoURL: googleUserInfoURL,
	}
}

// LoginURL 返回 Google 授权页地址。
func (s *Service) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// googleProfile Google userinfo 接口的响应
type googleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// HandleCallback 处理授权回调：交换授权码、拉取用户信息、
// 落库（首次登录创建，之后更新资料）并签发 JWT。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, *domain.User, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.log.Warn("oauth code exchange failed", zap.Error(err))
		return "", nil, ErrOAuthExchange
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return "", nil, err
	}

	user, err := s.upsertUser(profile)
	if err != nil {
		return "", nil, err
	}

	signed, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

// fetchProfile 调用 Google userinfo 接口获取用户资料。
func (s *Service) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode google userinfo: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("google userinfo missing subject")
	}
	return &profile, nil
}

// upsertUser 按 subject 查找用户，不存在则创建，存在则刷新资料。
func (s *Service) upsertUser(profile *googleProfile) (*domain.User, error) {
	user, err := s.users.GetUserBySubject(profile.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			return nil, err
		}
		user = &domain.User{
			ID:        uuid.New().String(),
			Subject:   profile.ID,
			Email:     strings.ToLower(profile.Email),
			Name:      profile.Name,
			Picture:   profile.Picture,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.users.CreateUser(user); err != nil {
			return nil, err
		}
		s.log.Info("new user registered",
			zap.String("user_id", user.ID),
			zap.String("email", user.Email),
		)
	} else {
		user.Email = strings.ToLower(profile.Email)
		user.Name = profile.Name
		user.Picture = profile.Picture
		if err := s.users.UpdateUser(user); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateLastLogin(user.ID); err != nil {
		s.log.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// LoginByEmail 免密登录，仅用于本地开发和演示环境。
// 邮箱对应的用户不存在时创建一个本地账号。
func (s *Service) LoginByEmail(email string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return "", nil, ErrInvalidEmail
	}

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			return "", nil, err
		}
		user = &domain.User{
			ID:        uuid.New().String(),
			Subject:   "local_" + uuid.New().String(),
			Email:     email,
			Name:      email[:strings.Index(email, "@")],
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.users.CreateUser(user); err != nil {
			return "", nil, err
		}
		s.log.Info("local user created", zap.String("user_id", user.ID), zap.String("email", email))
	}

	if err := s.users.UpdateLastLogin(user.ID); err != nil {
		s.log.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	signed, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

// issueToken 为用户签发 JWT。
func (s *Service) issueToken(user *domain.User) (string, error) {
	return s.tokens.Generate(user.Subject, user.ID, user.Name, user.Email, user.Picture)
}

// TokenTTL 返回签发令牌的有效期，供会话 cookie 设置 Max-Age。
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.Expiry()
}

// UserBySubject 按令牌 subject 查找用户。
func (s *Service) UserBySubject(subject string) (*domain.User, error) {
	user, err := s.users.GetUserBySubject(subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
