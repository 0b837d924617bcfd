package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"doof/internal/core/auth"
	"doof/internal/core/cache"
	"doof/internal/core/database"
	"doof/internal/domain"
	"doof/internal/repo"
)

type recordingPublisher struct {
	subjects []string
	payloads []any
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, v any) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, v)
	return nil
}

func (p *recordingPublisher) Close() {}

type env struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	cache    *cache.Cache
	sessions *auth.RedisSessions
	pub      *recordingPublisher

	users       *repo.UserRepo
	restaurants *repo.RestaurantRepo
	dishes      *repo.DishRepo
	listsRepo   *repo.ListRepo

	auth    *AuthService
	lists   *ListService
	catalog *CatalogService
	bulk    *BulkService
	search  *SearchService
	subs    *SubmissionService
	engage  *EngagementService
	admin   *AdminService
	jwt     *auth.JWTer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "doof.db") + "?_busy_timeout=5000"
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	e := &env{
		db:          db,
		mr:          mr,
		cache:       cache.NewFromClient(rdb),
		sessions:    auth.NewRedisSessions(rdb),
		pub:         &recordingPublisher{},
		users:       repo.NewUserRepo(db),
		restaurants: repo.NewRestaurantRepo(db),
		dishes:      repo.NewDishRepo(db),
		listsRepo:   repo.NewListRepo(db),
		jwt: &auth.JWTer{
			Secret:     []byte("test-secret-test-secret-test-secret"),
			Issuer:     "doof-test",
			TTL:        15 * time.Minute,
			RefreshTTL: time.Hour,
		},
	}
	e.auth = NewAuthService(e.users, e.jwt, e.sessions, log)
	e.catalog = NewCatalogService(e.restaurants, e.dishes, e.cache, log)
	e.lists = NewListService(e.listsRepo, e.restaurants, e.dishes, e.users, e.pub, log)
	e.bulk = NewBulkService(e.catalog, e.restaurants, e.dishes, nil, log)
	e.search = NewSearchService(repo.NewHashtagRepo(db), e.catalog, e.lists)
	e.subs = NewSubmissionService(repo.NewSubmissionRepo(db), e.catalog, e.pub, log)
	e.engage = NewEngagementService(e.pub, log)
	e.admin = NewAdminService(e.users, e.listsRepo, e.sessions, log)
	return e
}

func (e *env) register(t *testing.T, username string) *domain.User {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{
		Email: username + "@doof.test", Username: username, Password: "secret123",
	})
	require.NoError(t, err)
	return res.User
}

func (e *env) restaurant(t *testing.T, name, city string, tags ...string) *domain.Restaurant {
	t.Helper()
	r, err := e.catalog.CreateRestaurant(context.Background(), "", RestaurantInput{Name: name, City: city, Hashtags: tags})
	require.NoError(t, err)
	return r
}

func (e *env) dish(t *testing.T, name, restaurantID string, tags ...string) *domain.Dish {
	t.Helper()
	d, err := e.catalog.CreateDish(context.Background(), "", DishInput{Name: name, RestaurantID: restaurantID, Hashtags: tags})
	require.NoError(t, err)
	return d
}
