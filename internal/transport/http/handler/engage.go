package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/service"
	"doof/internal/transport/http/ez"
)

// EngageHandler 允许匿名
type EngageHandler struct{ d Deps }

func (h *EngageHandler) MountAPI(g *gin.RouterGroup) {
	ez.RegisterAction(ez.New(g, h.d.Log), ez.Action[service.EngageInput, *service.Engagement]{
		Method: http.MethodPost,
		Path:   "/engage",
		Binder: ez.BindJSON,
		Status: http.StatusAccepted,
		Handler: func(c *gin.Context, in *service.EngageInput) (*service.Engagement, error) {
			return h.d.Engagement.Record(c, ez.UserID(c), *in)
		},
	})
}
