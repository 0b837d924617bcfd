package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"doof/internal/core/auth"
	"doof/internal/core/errs"
	"doof/internal/domain"
	"doof/pkg/utils"
)

type AuthService struct {
	users    domain.UserRepository
	jwt      *auth.JWTer
	sessions auth.SessionStore
	log      *zap.Logger
}

func NewAuthService(users domain.UserRepository, j *auth.JWTer, sessions auth.SessionStore, log *zap.Logger) *AuthService {
	return &AuthService{users: users, jwt: j, sessions: sessions, log: log}
}

// RegisterInput 校验在绑定层完成；password 上限 72 为 bcrypt 限制
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Username string `json:"username" binding:"required,min=3,max=32,excludesall=@ "`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type ProfileInput struct {
	Email    *string `json:"email" binding:"omitempty,email,max=254"`
	Username *string `json:"username" binding:"omitempty,min=3,max=32,excludesall=@ "`
	Password *string `json:"password" binding:"omitempty,min=6,max=72"`
}

// AuthResult 登录/注册/刷新的返回
type AuthResult struct {
	User *domain.User `json:"user"`
	*auth.TokenPair
}

type StatusResult struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if err := s.ensureUnique(ctx, "", email, username); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, errs.Internal("hash password failed", err)
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		AccountType:  domain.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("uid", u.ID))
	return s.issue(ctx, u)
}

// ensureUnique selfID 非空时忽略自身
func (s *AuthService) ensureUnique(ctx context.Context, selfID, email, username string) error {
	if email != "" {
		u, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if u != nil && u.ID != selfID {
			return errs.Conflict("email already registered")
		}
	}
	if username != "" {
		u, err := s.users.FindByUsername(ctx, username)
		if err != nil {
			return err
		}
		if u != nil && u.ID != selfID {
			return errs.Conflict("username already taken")
		}
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	// 已封禁用户（软删）查不到，同样按凭证错误处理
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, errs.Unauthorized("invalid email or password")
	}
	return s.issue(ctx, u)
}

// Refresh refresh token 只能兑换一次，兑换后轮换
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return nil, errs.Unauthorized("invalid refresh token")
	}
	uid, err := s.sessions.ConsumeRefresh(ctx, claims.ID)
	if errors.Is(err, auth.ErrSessionNotFound) {
		return nil, errs.Unauthorized("refresh token expired or already used")
	}
	if err != nil {
		return nil, err
	}
	if uid != claims.UID {
		return nil, errs.Unauthorized("invalid refresh token")
	}
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.Unauthorized("account disabled")
	}
	return s.issue(ctx, u)
}

// Logout 幂等：吊销当前 access token，丢弃 refresh token
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims, refreshToken string) error {
	if claims != nil && claims.ID != "" {
		// 覆盖到 Parse 的 leeway 结束
		if err := s.sessions.RevokeAccess(ctx, claims.ID, claims.Remaining(time.Now())+auth.Leeway); err != nil {
			return err
		}
	}
	if refreshToken == "" {
		return nil
	}
	rc, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if _, err := s.sessions.ConsumeRefresh(ctx, rc.ID); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Status 匿名调用不报错
func (s *AuthService) Status(ctx context.Context, claims *auth.Claims) (*StatusResult, error) {
	if claims == nil {
		return &StatusResult{}, nil
	}
	u, err := s.users.FindByID(ctx, claims.UID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return &StatusResult{}, nil
	}
	out := &StatusResult{Authenticated: true, User: u}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		out.ExpiresAt = &exp
	}
	return out, nil
}

func (s *AuthService) Me(ctx context.Context, uid string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.NotFound("user not found")
	}
	return u, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, uid string, in ProfileInput) (*domain.User, error) {
	u, err := s.Me(ctx, uid)
	if err != nil {
		return nil, err
	}
	var email, username string
	if in.Email != nil {
		email = normalizeEmail(*in.Email)
	}
	if p := trimPtr(in.Username); p != nil {
		username = *p
	}
	if err := s.ensureUnique(ctx, u.ID, email, username); err != nil {
		return nil, err
	}
	if email != "" {
		u.Email = email
	}
	if username != "" {
		u.Username = username
	}
	if in.Password != nil {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, errs.Internal("hash password failed", err)
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	// 改密码后旧 refresh token 全部作废
	if in.Password != nil {
		if err := s.sessions.RevokeUser(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (s *AuthService) issue(ctx context.Context, u *domain.User) (*AuthResult, error) {
	pair, err := s.jwt.IssuePair(u.ID, u.AccountType)
	if err != nil {
		return nil, errs.Internal("issue token failed", err)
	}
	if err := s.sessions.SaveRefresh(ctx, pair.RefreshID, u.ID, s.jwt.RefreshTTL); err != nil {
		return nil, err
	}
	return &AuthResult{User: u, TokenPair: pair}, nil
}
