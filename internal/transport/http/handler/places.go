package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/core/errs"
	"doof/internal/places"
	"doof/internal/transport/http/ez"
)

type PlacesHandler struct{ d Deps }

type placesSearchQuery struct {
	Query string `form:"query"`
}

type placesDetailsQuery struct {
	PlaceID string `form:"placeId"`
}

var errPlacesDisabled = &errs.Error{Code: http.StatusServiceUnavailable, Msg: "places lookup is not configured"}

func (h *PlacesHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log).Group("/places")

	ez.RegisterAction(e, ez.Action[placesSearchQuery, []places.Place]{
		Method: http.MethodGet,
		Path:   "/search",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *placesSearchQuery) ([]places.Place, error) {
			if h.d.Places == nil {
				return nil, errPlacesDisabled
			}
			out, err := h.d.Places.Search(c, in.Query)
			if out == nil && err == nil {
				out = []places.Place{}
			}
			return out, err
		},
	})

	ez.RegisterAction(e, ez.Action[placesDetailsQuery, *places.Details]{
		Method: http.MethodGet,
		Path:   "/details",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *placesDetailsQuery) (*places.Details, error) {
			if h.d.Places == nil {
				return nil, errPlacesDisabled
			}
			return h.d.Places.Details(c, in.PlaceID)
		},
	})
}
