// Package handler 每个资源一个模块，实现 MountAPI / MountAdmin 之一或两者
package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"doof/internal/places"
	"doof/internal/service"
)

// Deps handler 依赖的服务；Places 为 nil 表示未配置地点检索
type Deps struct {
	Log         *zap.Logger
	Auth        *service.AuthService
	Lists       *service.ListService
	Catalog     *service.CatalogService
	Bulk        *service.BulkService
	Search      *service.SearchService
	Submissions *service.SubmissionService
	Engagement  *service.EngagementService
	Admin       *service.AdminService
	Places      places.Lookup
}

// Modules 全部模块，交给 router.Registry 挂载
func Modules(d Deps) []any {
	return []any{
		&AuthHandler{d: d},
		&ListHandler{d: d},
		&CatalogHandler{d: d},
		&SearchHandler{d: d},
		&PlacesHandler{d: d},
		&SubmissionHandler{d: d},
		&EngageHandler{d: d},
		&AdminHandler{d: d},
	}
}

type idOut struct {
	ID string `json:"id"`
}

func deleted(c *gin.Context) idOut { return idOut{ID: c.Param("id")} }
