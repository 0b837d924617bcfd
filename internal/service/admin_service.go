package service

import (
	"context"

	"go.uber.org/zap"

	"doof/internal/core/auth"
	"doof/internal/core/errs"
	"doof/internal/domain"
)

type AdminService struct {
	users    domain.UserRepository
	lists    domain.ListRepository
	sessions auth.SessionStore
	log      *zap.Logger
}

func NewAdminService(users domain.UserRepository, lists domain.ListRepository, sessions auth.SessionStore, log *zap.Logger) *AdminService {
	return &AdminService{users: users, lists: lists, sessions: sessions, log: log}
}

type CleanupReport struct {
	RemovedItems int64 `json:"removed_items"`
}

func (s *AdminService) Users(ctx context.Context, f domain.UserFilter) (domain.PageResult[domain.User], error) {
	if f.AccountType != "" && !domain.ValidRole(f.AccountType) {
		return domain.PageResult[domain.User]{}, errs.BadRequest("invalid account_type")
	}
	rows, total, err := s.users.List(ctx, f)
	if err != nil {
		return domain.PageResult[domain.User]{}, err
	}
	return domain.NewPageResult(rows, total, f.Page), nil
}

// SetAccountType 只有 superuser 能授予或撤销 superuser
func (s *AdminService) SetAccountType(ctx context.Context, actorID, actorRole, id, accountType string) (*domain.User, error) {
	if !domain.ValidRole(accountType) {
		return nil, errs.BadRequest("account_type must be user, admin or superuser")
	}
	if actorID == id {
		return nil, errs.BadRequest("cannot change your own account type")
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.NotFound("user not found")
	}
	if (accountType == domain.RoleSuperuser || u.AccountType == domain.RoleSuperuser) && actorRole != domain.RoleSuperuser {
		return nil, errs.Forbidden("superuser required")
	}
	if err := s.users.SetAccountType(ctx, id, accountType); err != nil {
		return nil, wrapNotFound(err, "user not found")
	}
	// 角色变化后旧 refresh token 作废
	if err := s.sessions.RevokeUser(ctx, id); err != nil {
		s.log.Warn("revoke sessions failed", zap.String("uid", id), zap.Error(err))
	}
	u.AccountType = accountType
	return u, nil
}

// PromoteByEmail 运维命令行使用，不做操作者校验
func (s *AdminService) PromoteByEmail(ctx context.Context, email, accountType string) (*domain.User, error) {
	if !domain.ValidRole(accountType) {
		return nil, errs.BadRequest("account_type must be user, admin or superuser")
	}
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.NotFound("user not found")
	}
	if err := s.users.SetAccountType(ctx, u.ID, accountType); err != nil {
		return nil, wrapNotFound(err, "user not found")
	}
	if err := s.sessions.RevokeUser(ctx, u.ID); err != nil {
		s.log.Warn("revoke sessions failed", zap.String("uid", u.ID), zap.Error(err))
	}
	u.AccountType = accountType
	return u, nil
}

// Ban 软删并清掉该用户所有 refresh token
func (s *AdminService) Ban(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return errs.BadRequest("cannot ban yourself")
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return wrapNotFound(err, "user not found")
	}
	if err := s.sessions.RevokeUser(ctx, id); err != nil {
		return err
	}
	s.log.Info("user banned", zap.String("uid", id), zap.String("by", actorID))
	return nil
}

func (s *AdminService) Unban(ctx context.Context, id string) error {
	return wrapNotFound(s.users.Restore(ctx, id), "user not banned")
}

func (s *AdminService) CleanupOrphans(ctx context.Context) (*CleanupReport, error) {
	n, err := s.lists.CleanupOrphans(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("orphan list items removed", zap.Int64("count", n))
	return &CleanupReport{RemovedItems: n}, nil
}
