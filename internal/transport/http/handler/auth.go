package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/domain"
	"doof/internal/service"
	"doof/internal/transport/http/ez"
	mdw "doof/internal/transport/http/middleware"
)

type AuthHandler struct{ d Deps }

func (h *AuthHandler) Priority() int { return 10 }

type loginIn struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshIn struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutIn struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log).Group("/auth")

	ez.RegisterAction(e, ez.Action[service.RegisterInput, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.RegisterInput) (*service.AuthResult, error) {
			return h.d.Auth.Register(c, *in)
		},
	})

	ez.RegisterAction(e, ez.Action[loginIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (*service.AuthResult, error) {
			return h.d.Auth.Login(c, in.Email, in.Password)
		},
	})

	ez.RegisterAction(e, ez.Action[refreshIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/refresh",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *refreshIn) (*service.AuthResult, error) {
			return h.d.Auth.Refresh(c, in.RefreshToken)
		},
	})

	ez.RegisterAction(e, ez.Action[logoutIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/logout",
		Binder: ez.BindOptionalJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *logoutIn) (gin.H, error) {
			if err := h.d.Auth.Logout(c, mdw.ClaimsFrom(c), in.RefreshToken); err != nil {
				return nil, err
			}
			return gin.H{"logged_out": true}, nil
		},
	})

	// status 允许匿名：未登录返回 authenticated=false
	ez.RegisterAction(e, ez.Action[struct{}, *service.StatusResult]{
		Method: http.MethodGet,
		Path:   "/status",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.StatusResult, error) {
			return h.d.Auth.Status(c, mdw.ClaimsFrom(c))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.d.Auth.Me(c, ez.UserID(c))
		},
	})

	ez.RegisterAction(e, ez.Action[service.ProfileInput, *domain.User]{
		Method: http.MethodPut,
		Path:   "/profile",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *service.ProfileInput) (*domain.User, error) {
			return h.d.Auth.UpdateProfile(c, ez.UserID(c), *in)
		},
	})
}
