// Package app 组装 api / admin / doofctl 共用的依赖
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"doof/internal/core/auth"
	"doof/internal/core/cache"
	"doof/internal/core/config"
	"doof/internal/core/database"
	"doof/internal/core/logger"
	"doof/internal/events"
	"doof/internal/places"
	"doof/internal/repo"
	"doof/internal/service"
	"doof/internal/transport/http/handler"
	"doof/internal/transport/http/router"
)

type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Cache    *cache.Cache
	Sessions auth.SessionStore
	Pub      events.Publisher
	JWT      *auth.JWTer
	Deps     handler.Deps
}

// NewLogger 按配置决定是否写文件并切割
func NewLogger(cfg *config.Config) (*zap.Logger, func()) {
	if !cfg.Log.File.Enable {
		return logger.New(cfg.Log.Level, cfg.Log.JSON)
	}
	f := cfg.Log.File
	return logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON, logger.FileRotate{
		Filename:   f.Filename,
		MaxSizeMB:  f.MaxSizeMB,
		MaxBackups: f.MaxBackups,
		MaxAgeDays: f.MaxAgeDays,
		Compress:   f.Compress,
	})
}

func OpenDB(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := repo.Migrate(db); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}
	return db, nil
}

func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	db, err := OpenDB(cfg, l)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: l, DB: db}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if a.Cache.Enabled() {
		if err := a.Cache.Ping(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Sessions = auth.NewRedisSessions(a.Cache.RDB)
	} else {
		l.Warn("redis not configured, using in-process session store and no cache")
		a.Sessions = auth.NewMemorySessions()
	}

	a.Pub = newPublisher(cfg.NATS, l)

	a.JWT = &auth.JWTer{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		TTL:        time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
		RefreshTTL: time.Duration(cfg.JWT.RefreshTokenTTLHour) * time.Hour,
	}

	var lookup places.Lookup
	if cfg.Places.APIKey != "" {
		lookup = places.New(places.Options{
			APIKey:   cfg.Places.APIKey,
			BaseURL:  cfg.Places.BaseURL,
			Timeout:  time.Duration(cfg.Places.TimeoutSec) * time.Second,
			RPS:      cfg.Places.RPS,
			CacheTTL: time.Duration(cfg.Places.CacheTTLMin) * time.Minute,
		}, a.Cache)
	} else {
		l.Warn("places api key not configured, lookup disabled")
	}

	users := repo.NewUserRepo(db)
	restaurants := repo.NewRestaurantRepo(db)
	dishes := repo.NewDishRepo(db)
	lists := repo.NewListRepo(db)

	catalog := service.NewCatalogService(restaurants, dishes, a.Cache, l)
	listSvc := service.NewListService(lists, restaurants, dishes, users, a.Pub, l)
	a.Deps = handler.Deps{
		Log:         l,
		Auth:        service.NewAuthService(users, a.JWT, a.Sessions, l),
		Lists:       listSvc,
		Catalog:     catalog,
		Bulk:        service.NewBulkService(catalog, restaurants, dishes, lookup, l),
		Search:      service.NewSearchService(repo.NewHashtagRepo(db), catalog, listSvc),
		Submissions: service.NewSubmissionService(repo.NewSubmissionRepo(db), catalog, a.Pub, l),
		Engagement:  service.NewEngagementService(a.Pub, l),
		Admin:       service.NewAdminService(users, lists, a.Sessions, l),
		Places:      lookup,
	}
	return a, nil
}

// newPublisher NATS 不可用时退化为只记日志
func newPublisher(c config.NATS, l *zap.Logger) events.Publisher {
	if c.URL == "" {
		return events.LogPublisher{Log: l}
	}
	p, err := events.NewNATS(c.URL, c.SubjectPrefix, l)
	if err != nil {
		l.Warn("nats connect failed, events will only be logged", zap.String("url", c.URL), zap.Error(err))
		return events.LogPublisher{Log: l}
	}
	l.Info("nats connected", zap.String("url", c.URL))
	return p
}

func (a *App) RouterOptions() router.Options {
	return router.Options{
		Log:         a.Log,
		DB:          a.DB,
		JWT:         a.JWT,
		Sessions:    a.Sessions,
		Limits:      a.Cfg.Limits,
		CORSOrigins: a.Cfg.App.HTTP.CORSOrigins,
		Registry:    router.NewRegistry(handler.Modules(a.Deps)...),
	}
}

func (a *App) Close() {
	if a.Pub != nil {
		a.Pub.Close()
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.DB != nil {
		_ = database.Close(a.DB)
	}
}
