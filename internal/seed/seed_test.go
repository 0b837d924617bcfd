package seed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"doof/internal/core/auth"
	"doof/internal/core/cache"
	"doof/internal/core/database"
	"doof/internal/domain"
	"doof/internal/events"
	"doof/internal/repo"
	"doof/internal/service"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "doof.db") + "?_busy_timeout=5000"
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1, LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	log := zap.NewNop()
	pub := events.LogPublisher{Log: log}
	users := repo.NewUserRepo(db)
	restaurants := repo.NewRestaurantRepo(db)
	dishes := repo.NewDishRepo(db)
	j := &auth.JWTer{Secret: []byte("seed-secret-seed-secret-seed-secret"), Issuer: "doof", TTL: time.Minute, RefreshTTL: time.Hour}
	catalog := service.NewCatalogService(restaurants, dishes, cache.New("", "", 0), log)
	return Deps{
		Auth:  service.NewAuthService(users, j, auth.NewMemorySessions(), log),
		Bulk:  service.NewBulkService(catalog, restaurants, dishes, nil, log),
		Lists: service.NewListService(repo.NewListRepo(db), restaurants, dishes, users, pub, log),
		Log:   log,
	}
}

func TestRunIsIdempotent(t *testing.T) {
	d := newDeps(t)
	ctx := context.Background()

	first, err := Run(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Users)
	assert.Equal(t, len(demoItems), first.Created)
	require.NotEmpty(t, first.ListID)

	second, err := Run(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, len(demoItems), second.Duplicates)
	assert.Equal(t, first.ListID, second.ListID)

	l, err := d.Lists.FindListByID(ctx, first.ListID, "")
	require.NoError(t, err)
	assert.Len(t, l.Items, len(demoItems))
	assert.Equal(t, domain.ListTypeMixed, l.ListType)
}
