package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/domain"
	"doof/internal/service"
	"doof/internal/transport/http/ez"
)

type SearchHandler struct{ d Deps }

type hashtagsQuery struct {
	Q     string `form:"q"`
	Limit int    `form:"limit"`
}

type searchQuery struct {
	Q        string   `form:"q"`
	Type     string   `form:"type"`
	Hashtags []string `form:"hashtags"`
	City     string   `form:"city"`
	Limit    int      `form:"limit"`
}

type hashtagIn struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category"`
}

type adminHashtagsQuery struct {
	Q string `form:"q"`
	ez.PageQuery
}

func (h *SearchHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log)

	ez.RegisterAction(e, ez.Action[hashtagsQuery, []domain.HashtagCount]{
		Method: http.MethodGet,
		Path:   "/hashtags",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *hashtagsQuery) ([]domain.HashtagCount, error) {
			return h.d.Search.PopularHashtags(c, in.Q, in.Limit)
		},
	})

	ez.RegisterAction(e, ez.Action[searchQuery, *service.SearchResult]{
		Method: http.MethodGet,
		Path:   "/search",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *searchQuery) (*service.SearchResult, error) {
			return h.d.Search.Search(c, ez.UserID(c), service.SearchQuery{
				Q:        in.Q,
				Type:     in.Type,
				Hashtags: ez.SplitCSV(in.Hashtags),
				City:     in.City,
				Limit:    in.Limit,
			})
		},
	})
}

// MountAdmin 话题管理
func (h *SearchHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log).Group("/hashtags")

	ez.RegisterAction(e, ez.Action[adminHashtagsQuery, domain.PageResult[domain.Hashtag]]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *adminHashtagsQuery) (domain.PageResult[domain.Hashtag], error) {
			return h.d.Search.Hashtags(c, in.Q, in.ToPage())
		},
	})

	ez.RegisterAction(e, ez.Action[hashtagIn, idOut]{
		Method: http.MethodPut,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *hashtagIn) (idOut, error) {
			return idOut{ID: c.Param("id")}, h.d.Search.RenameHashtag(c, c.Param("id"), in.Name, in.Category)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			return deleted(c), h.d.Search.DeleteHashtag(c, c.Param("id"))
		},
	})
}
