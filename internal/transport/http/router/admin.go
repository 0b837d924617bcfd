package router

import (
	"github.com/gin-gonic/gin"

	"doof/internal/core/server"
	mdw "doof/internal/transport/http/middleware"
)

// NewAdminEngine 管理端 v1（统一要求 admin / superuser）
func NewAdminEngine(o Options) *gin.Engine {
	r := server.NewRouter(o.Log, server.Options{CORSOrigins: o.CORSOrigins})
	r.Use(chain(o)...)
	mountProbes(r, o.DB)

	admin := r.Group("/admin/v1",
		mdw.AuthJWT(o.JWT, o.Sessions, mdw.AuthRequired),
		mdw.RequireAdmin(),
	)
	o.Registry.MountAdmin(admin)
	return r
}
