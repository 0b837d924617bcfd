package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/domain"
	"doof/internal/service"
	"doof/internal/transport/http/ez"
)

type SubmissionHandler struct{ d Deps }

type submissionsQuery struct {
	Status string `form:"status"`
	ez.PageQuery
}

func (h *SubmissionHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log).Group("/submissions")

	ez.RegisterAction(e, ez.Action[service.SubmissionInput, *domain.Submission]{
		Method: http.MethodPost,
		Path:   "",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.SubmissionInput) (*domain.Submission, error) {
			return h.d.Submissions.Create(c, ez.UserID(c), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[ez.PageQuery, domain.PageResult[domain.Submission]]{
		Method: http.MethodGet,
		Path:   "/mine",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *ez.PageQuery) (domain.PageResult[domain.Submission], error) {
			return h.d.Submissions.Mine(c, ez.UserID(c), in.ToPage())
		},
	})
}

// MountAdmin 审核
func (h *SubmissionHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log).Group("/submissions")

	ez.RegisterAction(e, ez.Action[submissionsQuery, domain.PageResult[domain.Submission]]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *submissionsQuery) (domain.PageResult[domain.Submission], error) {
			return h.d.Submissions.List(c, in.Status, in.ToPage())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Submission]{
		Method: http.MethodPost,
		Path:   "/:id/approve",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Submission, error) {
			return h.d.Submissions.Approve(c, c.Param("id"), ez.UserID(c))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Submission]{
		Method: http.MethodPost,
		Path:   "/:id/reject",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Submission, error) {
			return h.d.Submissions.Reject(c, c.Param("id"), ez.UserID(c))
		},
	})
}
