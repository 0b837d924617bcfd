package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/domain"
	"doof/internal/service"
	"doof/internal/transport/http/ez"
)

type ListHandler struct{ d Deps }

type listsQuery struct {
	CreatedByUser  bool   `form:"createdByUser"`
	FollowedByUser bool   `form:"followedByUser"`
	Type           string `form:"type"`
	Q              string `form:"q"`
	City           string `form:"city"`
	Tag            string `form:"tag"`
	ez.PageQuery
}

func (q listsQuery) filter() domain.ListFilter {
	return domain.ListFilter{Q: q.Q, Type: q.Type, City: q.City, Tag: q.Tag, Page: q.ToPage()}
}

type visibilityIn struct {
	IsPublic *bool `json:"is_public" binding:"required"`
}

func (h *ListHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log).Group("/lists")

	ez.RegisterAction(e, ez.Action[listsQuery, domain.PageResult[domain.List]]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *listsQuery) (domain.PageResult[domain.List], error) {
			return h.d.Lists.FindListsByUser(c, ez.UserID(c), service.ListQuery{
				CreatedByUser:  in.CreatedByUser,
				FollowedByUser: in.FollowedByUser,
				Filter:         in.filter(),
			})
		},
	})

	ez.RegisterAction(e, ez.Action[service.CreateListInput, *domain.List]{
		Method: http.MethodPost,
		Path:   "",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.CreateListInput) (*domain.List, error) {
			return h.d.Lists.CreateList(c, ez.UserID(c), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.List]{
		Method: http.MethodGet,
		Path:   "/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.List, error) {
			return h.d.Lists.FindListByID(c, c.Param("id"), ez.UserID(c))
		},
	})

	ez.RegisterAction(e, ez.Action[service.UpdateListInput, *domain.List]{
		Method: http.MethodPut,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *service.UpdateListInput) (*domain.List, error) {
			return h.d.Lists.UpdateList(c, c.Param("id"), ez.UserID(c), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			return deleted(c), h.d.Lists.DeleteList(c, c.Param("id"), ez.UserID(c))
		},
	})

	ez.RegisterAction(e, ez.Action[visibilityIn, *domain.List]{
		Method: http.MethodPut,
		Path:   "/:id/visibility",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *visibilityIn) (*domain.List, error) {
			return h.d.Lists.UpdateVisibility(c, c.Param("id"), ez.UserID(c), *in.IsPublic)
		},
	})

	ez.RegisterAction(e, ez.Action[service.AddItemInput, *domain.ListItem]{
		Method: http.MethodPost,
		Path:   "/:id/items",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.AddItemInput) (*domain.ListItem, error) {
			return h.d.Lists.AddItemToList(c, c.Param("id"), ez.UserID(c), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.ListItem]{
		Method: http.MethodDelete,
		Path:   "/:id/items/:itemId",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.ListItem, error) {
			return h.d.Lists.RemoveItemFromList(c, c.Param("id"), ez.UserID(c), c.Param("itemId"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.FollowResult]{
		Method: http.MethodPost,
		Path:   "/:id/follow",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.FollowResult, error) {
			return h.d.Lists.FollowList(c, c.Param("id"), ez.UserID(c))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.FollowResult]{
		Method: http.MethodDelete,
		Path:   "/:id/follow",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.FollowResult, error) {
			return h.d.Lists.UnfollowList(c, c.Param("id"), ez.UserID(c))
		},
	})
}

// MountAdmin /admin/v1/lists
func (h *ListHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log).Group("/lists")

	ez.RegisterAction(e, ez.Action[listsQuery, domain.PageResult[domain.List]]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *listsQuery) (domain.PageResult[domain.List], error) {
			return h.d.Lists.AdminLists(c, in.filter())
		},
	})

	ez.RegisterAction(e, ez.Action[service.UpdateListInput, *domain.List]{
		Method: http.MethodPut,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *service.UpdateListInput) (*domain.List, error) {
			return h.d.Lists.AdminUpdateList(c, c.Param("id"), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			return deleted(c), h.d.Lists.AdminDeleteList(c, c.Param("id"))
		},
	})
}
