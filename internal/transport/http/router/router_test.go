package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"doof/internal/app"
	"doof/internal/core/config"
	"doof/internal/domain"
	"doof/internal/repo"
	"doof/internal/transport/http/router"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type stack struct {
	app   *app.App
	api   http.Handler
	admin http.Handler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		App: config.App{Name: "doof", Env: "test"},
		JWT: config.JWT{
			Secret:              "router-test-secret-router-test-secret",
			Issuer:              "doof-test",
			AccessTokenTTLMin:   15,
			RefreshTokenTTLHour: 1,
		},
		DB: config.DB{
			Driver:       "sqlite",
			DSN:          "file:" + filepath.Join(t.TempDir(), "doof.db") + "?_busy_timeout=5000",
			MaxOpenConns: 1,
			AutoMigrate:  true,
			LogLevel:     "silent",
		},
		Redis: config.Redis{Addr: mr.Addr()},
		NATS:  config.NATS{SubjectPrefix: "doof"},
	}
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &stack{
		app:   a,
		api:   router.NewAPIEngine(a.RouterOptions()),
		admin: router.NewAdminEngine(a.RouterOptions()),
	}
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type authOut struct {
	User         domain.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
}

func (s *stack) register(t *testing.T, name string) authOut {
	t.Helper()
	code, env := call(t, s.api, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": name + "@doof.test", "username": name, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	return decode[authOut](t, env)
}

// promoteAdmin 注册后提权并重新登录，token 才带上新角色
func (s *stack) promoteAdmin(t *testing.T, name string) authOut {
	t.Helper()
	u := s.register(t, name)
	require.NoError(t, repo.NewUserRepo(s.app.DB).SetAccountType(context.Background(), u.User.ID, domain.RoleAdmin))
	code, env := call(t, s.api, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": name + "@doof.test", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	return decode[authOut](t, env)
}

func TestProbes(t *testing.T) {
	s := newStack(t)

	code, env := call(t, s.api, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = call(t, s.api, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	s.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "doof_http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	s := newStack(t)

	code, env := call(t, s.api, http.MethodGet, "/api/auth/status", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"authenticated":false}`, string(env.Data))

	a := s.register(t, "alice")
	require.NotEmpty(t, a.Token)
	require.NotEmpty(t, a.RefreshToken)

	code, env = call(t, s.api, http.MethodGet, "/api/auth/status", a.Token, nil)
	require.Equal(t, http.StatusOK, code)
	st := decode[struct {
		Authenticated bool        `json:"authenticated"`
		User          domain.User `json:"user"`
	}](t, env)
	assert.True(t, st.Authenticated)
	assert.Equal(t, "alice", st.User.Username)

	code, env = call(t, s.api, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "alice@doof.test", "username": "alice2", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, _ = call(t, s.api, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@doof.test", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = call(t, s.api, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": a.RefreshToken})
	require.Equal(t, http.StatusOK, code, env.Error)
	rotated := decode[authOut](t, env)

	// refresh token 只能用一次
	code, _ = call(t, s.api, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": a.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, s.api, http.MethodPost, "/api/auth/logout", rotated.Token, gin.H{"refresh_token": rotated.RefreshToken})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, s.api, http.MethodGet, "/api/auth/me", rotated.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "token revoked", env.Error)

	code, _ = call(t, s.api, http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCatalogWritesRequireAdmin(t *testing.T) {
	s := newStack(t)
	u := s.register(t, "bob")
	adm := s.promoteAdmin(t, "root")

	body := gin.H{"name": "Joe's Pizza", "city": "New York", "hashtags": []string{"#Pizza"}}
	code, _ := call(t, s.api, http.MethodPost, "/api/restaurants", "", body)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = call(t, s.api, http.MethodPost, "/api/restaurants", u.Token, body)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := call(t, s.api, http.MethodPost, "/api/restaurants", adm.Token, body)
	require.Equal(t, http.StatusCreated, code, env.Error)
	r := decode[domain.Restaurant](t, env)

	code, env = call(t, s.api, http.MethodGet, "/api/restaurants?hashtags=pizza&city=new+york", "", nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[domain.PageResult[domain.Restaurant]](t, env)
	require.Len(t, page.Items, 1)
	assert.Equal(t, r.ID, page.Items[0].ID)

	code, _ = call(t, s.api, http.MethodGet, "/api/restaurants/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, s.api, http.MethodPost, "/api/restaurants/bulk", adm.Token, gin.H{
		"text": "Joe's Pizza; restaurant; 7 Carmine St, New York\nGrandma Slice; dish; Joe's Pizza; pizza",
	})
	require.Equal(t, http.StatusOK, code, env.Error)
	rep := decode[struct {
		Created    int `json:"created"`
		Duplicates int `json:"duplicates"`
	}](t, env)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, 1, rep.Duplicates)

	code, env = call(t, s.api, http.MethodGet, "/api/search?q=slice", "", nil)
	require.Equal(t, http.StatusOK, code)
	res := decode[struct {
		Dishes []domain.Dish `json:"dishes"`
	}](t, env)
	require.Len(t, res.Dishes, 1)
}

func TestListFlow(t *testing.T) {
	s := newStack(t)
	owner := s.register(t, "owner")
	other := s.register(t, "other")
	adm := s.promoteAdmin(t, "curator")

	code, env := call(t, s.api, http.MethodPost, "/api/restaurants", adm.Token, gin.H{"name": "Lucali", "city": "Brooklyn"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	r := decode[domain.Restaurant](t, env)

	code, env = call(t, s.api, http.MethodPost, "/api/lists", owner.Token, gin.H{"name": "Pizza spots", "list_type": "restaurant"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	l := decode[domain.List](t, env)
	assert.True(t, l.IsPublic)

	itemPath := "/api/lists/" + l.ID + "/items"
	code, env = call(t, s.api, http.MethodPost, itemPath, owner.Token, gin.H{"item_type": "restaurant", "item_id": r.ID})
	require.Equal(t, http.StatusCreated, code, env.Error)
	item := decode[domain.ListItem](t, env)

	code, _ = call(t, s.api, http.MethodPost, itemPath, owner.Token, gin.H{"item_type": "restaurant", "item_id": r.ID})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = call(t, s.api, http.MethodPost, itemPath, owner.Token, gin.H{"item_type": "dish", "item_id": r.ID})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, s.api, http.MethodPost, itemPath, other.Token, gin.H{"item_type": "restaurant", "item_id": r.ID})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, s.api, http.MethodGet, "/api/lists?createdByUser=true", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, env = call(t, s.api, http.MethodGet, "/api/lists?createdByUser=true", owner.Token, nil)
	require.Equal(t, http.StatusOK, code)
	mine := decode[domain.PageResult[domain.List]](t, env)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, 1, mine.Items[0].ItemCount)
	assert.True(t, mine.Items[0].CreatedByUser)

	code, env = call(t, s.api, http.MethodPost, "/api/lists/"+l.ID+"/follow", other.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	fr := decode[struct {
		IsFollowing bool `json:"is_following"`
		SavedCount  int  `json:"saved_count"`
	}](t, env)
	assert.True(t, fr.IsFollowing)
	assert.Equal(t, 1, fr.SavedCount)

	code, _ = call(t, s.api, http.MethodPost, "/api/lists/"+l.ID+"/follow", owner.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, s.api, http.MethodPut, "/api/lists/"+l.ID+"/visibility", owner.Token, gin.H{"is_public": false})
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, s.api, http.MethodGet, "/api/lists/"+l.ID, other.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, env = call(t, s.api, http.MethodGet, "/api/lists/"+l.ID, owner.Token, nil)
	require.Equal(t, http.StatusOK, code)
	full := decode[domain.List](t, env)
	require.Len(t, full.Items, 1)
	assert.Equal(t, "Lucali", full.Items[0].Name)

	code, _ = call(t, s.api, http.MethodDelete, itemPath+"/"+item.ID, owner.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, s.api, http.MethodDelete, itemPath+"/"+item.ID, owner.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, s.api, http.MethodDelete, "/api/lists/"+l.ID, other.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = call(t, s.api, http.MethodDelete, "/api/lists/"+l.ID, owner.Token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestEngageSubmissionsAndPlaces(t *testing.T) {
	s := newStack(t)
	u := s.register(t, "carol")

	code, env := call(t, s.api, http.MethodPost, "/api/engage", "", gin.H{
		"item_type": "restaurant", "item_id": "r-1", "engagement_type": "view",
	})
	assert.Equal(t, http.StatusAccepted, code, env.Error)
	code, _ = call(t, s.api, http.MethodPost, "/api/engage", "", gin.H{
		"item_type": "restaurant", "item_id": "r-1", "engagement_type": "like",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, s.api, http.MethodPost, "/api/submissions", u.Token, gin.H{"type": "restaurant"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env = call(t, s.api, http.MethodPost, "/api/submissions", u.Token, gin.H{"type": "restaurant", "name": "Di Fara", "city": "Brooklyn"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	code, env = call(t, s.api, http.MethodGet, "/api/submissions/mine", u.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, decode[domain.PageResult[domain.Submission]](t, env).Total)

	code, env = call(t, s.api, http.MethodGet, "/api/places/search?query=pizza", u.Token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "places lookup is not configured", env.Error)
}

func TestAdminEngine(t *testing.T) {
	s := newStack(t)
	u := s.register(t, "dave")
	adm := s.promoteAdmin(t, "boss")

	code, _ := call(t, s.admin, http.MethodGet, "/admin/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = call(t, s.admin, http.MethodGet, "/admin/v1/users", u.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := call(t, s.admin, http.MethodGet, "/admin/v1/users?q=dave", adm.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.EqualValues(t, 1, decode[domain.PageResult[domain.User]](t, env).Total)

	code, env = call(t, s.api, http.MethodPost, "/api/submissions", u.Token, gin.H{"type": "restaurant", "name": "L&B", "city": "Brooklyn"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	sub := decode[domain.Submission](t, env)

	code, env = call(t, s.admin, http.MethodPost, "/admin/v1/submissions/"+sub.ID+"/approve", adm.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.NotEmpty(t, decode[domain.Submission](t, env).CreatedEntityID)
	code, _ = call(t, s.admin, http.MethodPost, "/admin/v1/submissions/"+sub.ID+"/reject", adm.Token, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = call(t, s.admin, http.MethodPost, "/admin/v1/users/"+u.User.ID+"/ban", adm.Token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = call(t, s.api, http.MethodPost, "/api/auth/login", "", gin.H{"email": "dave@doof.test", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = call(t, s.admin, http.MethodPost, "/admin/v1/users/"+u.User.ID+"/unban", adm.Token, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, s.admin, http.MethodPost, "/admin/v1/cleanup/orphans", adm.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
}

func TestBadJSON(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.api.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestAuthInputValidation(t *testing.T) {
	s := newStack(t)
	bad := []gin.H{
		{"email": "a@b", "username": "x", "password": "1"},
		{"email": "not-an-email", "username": "valid", "password": "secret123"},
		{"email": "ok@doof.test", "username": "ab", "password": "secret123"},
		{"email": "ok@doof.test", "username": "has space", "password": "secret123"},
		{"email": "ok@doof.test", "username": "at@sign", "password": "secret123"},
		{"email": "ok@doof.test", "username": "valid", "password": "12345"},
		{"email": "ok@doof.test", "username": "valid", "password": strings.Repeat("p", 73)},
	}
	for _, body := range bad {
		code, env := call(t, s.api, http.MethodPost, "/api/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, code, "%v", body)
		assert.False(t, env.Success)
	}

	u := s.register(t, "vera")
	code, _ := call(t, s.api, http.MethodPut, "/api/auth/profile", u.Token, gin.H{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, s.api, http.MethodPut, "/api/auth/profile", u.Token, gin.H{"password": "123"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env := call(t, s.api, http.MethodPut, "/api/auth/profile", u.Token, gin.H{"username": "vera_v"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "vera_v", decode[domain.User](t, env).Username)
}
