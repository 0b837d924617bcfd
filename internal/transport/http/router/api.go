package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"doof/internal/core/auth"
	"doof/internal/core/config"
	"doof/internal/core/database"
	"doof/internal/core/server"
	mdw "doof/internal/transport/http/middleware"
	resp "doof/internal/transport/http/response"
)

type Options struct {
	Log         *zap.Logger
	DB          *gorm.DB
	JWT         *auth.JWTer
	Sessions    auth.SessionStore
	Limits      config.Limits // 零值表示不限
	CORSOrigins []string
	Registry    *Registry
}

func NewAPIEngine(o Options) *gin.Engine {
	r := server.NewRouter(o.Log, server.Options{CORSOrigins: o.CORSOrigins})
	r.Use(chain(o)...)
	mountProbes(r, o.DB)

	// 可选鉴权：匿名可读，带 token 时必须有效
	api := r.Group("/api", mdw.AuthJWT(o.JWT, o.Sessions, mdw.AuthOptional))
	o.Registry.MountAPI(api)
	return r
}

func chain(o Options) []gin.HandlerFunc {
	l := o.Limits
	hs := []gin.HandlerFunc{mdw.RequestID()}
	if l.RPS > 0 {
		hs = append(hs, mdw.RateLimit(rate.Limit(l.RPS), l.Burst))
	}
	if l.PerIPRPS > 0 {
		hs = append(hs, mdw.RateLimitPerIP(rate.Limit(l.PerIPRPS), l.PerIPBurst))
	}
	if l.Concurrency > 0 {
		hs = append(hs, mdw.ConcurrencyLimit(l.Concurrency))
	}
	if l.MaxBodyMB > 0 {
		hs = append(hs, mdw.MaxBodyBytes(l.MaxBodyMB<<20))
	}
	if l.TimeoutSec > 0 {
		hs = append(hs, mdw.Timeout(time.Duration(l.TimeoutSec)*time.Second))
	}
	return append(hs, mdw.Metrics(), mdw.AccessLog(o.Log))
}

// mountProbes /health 存活；/ready 检查 DB；/metrics prometheus
func mountProbes(r *gin.Engine, db *gorm.DB) {
	r.GET("/health", func(c *gin.Context) { resp.JSON(c, http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			resp.Abort(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		resp.JSON(c, http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
