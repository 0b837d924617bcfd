package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/domain"
	"doof/internal/service"
	"doof/internal/transport/http/ez"
)

// AdminHandler 用户管理 + 数据清理
type AdminHandler struct{ d Deps }

type usersQuery struct {
	Q           string `form:"q"`
	AccountType string `form:"account_type"`
	WithDeleted bool   `form:"with_deleted"`
	ez.PageQuery
}

type accountTypeIn struct {
	AccountType string `json:"account_type" binding:"required"`
}

func (h *AdminHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log)
	users := e.Group("/users")

	ez.RegisterAction(users, ez.Action[usersQuery, domain.PageResult[domain.User]]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *usersQuery) (domain.PageResult[domain.User], error) {
			return h.d.Admin.Users(c, domain.UserFilter{
				Q:           in.Q,
				AccountType: in.AccountType,
				WithDeleted: in.WithDeleted,
				Page:        in.ToPage(),
			})
		},
	})

	ez.RegisterAction(users, ez.Action[accountTypeIn, *domain.User]{
		Method: http.MethodPut,
		Path:   "/:id/account-type",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *accountTypeIn) (*domain.User, error) {
			return h.d.Admin.SetAccountType(c, ez.UserID(c), c.GetString("role"), c.Param("id"), in.AccountType)
		},
	})

	// 封禁（软删）
	ez.RegisterAction(users, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/:id/ban",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			if err := h.d.Admin.Ban(c, ez.UserID(c), c.Param("id")); err != nil {
				return nil, err
			}
			return gin.H{"id": c.Param("id"), "banned": true}, nil
		},
	})

	ez.RegisterAction(users, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/:id/unban",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			if err := h.d.Admin.Unban(c, c.Param("id")); err != nil {
				return nil, err
			}
			return gin.H{"id": c.Param("id"), "banned": false}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.CleanupReport]{
		Method: http.MethodPost,
		Path:   "/cleanup/orphans",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (*service.CleanupReport, error) {
			return h.d.Admin.CleanupOrphans(c)
		},
	})
}
