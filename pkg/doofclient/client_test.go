package doofclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

// fakeServer 模拟 /api 的鉴权语义：access 可吊销，refresh 单次使用
type fakeServer struct {
	mu           sync.Mutex
	ttl          time.Duration
	seq          int
	access       map[string]bool
	refresh      map[string]bool
	down         bool
	refreshCalls int
	requests     []string
	srv          *httptest.Server
}

func newFake(t *testing.T, ttl time.Duration) *fakeServer {
	t.Helper()
	f := &fakeServer{ttl: ttl, access: map[string]bool{}, refresh: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/auth/refresh", f.doRefresh)
	mux.HandleFunc("POST /api/auth/logout", f.authed(func(w http.ResponseWriter, _ *http.Request) {
		ok(w, map[string]bool{"logged_out": true})
	}))
	mux.HandleFunc("GET /api/auth/status", f.status)
	mux.HandleFunc("GET /api/lists", f.authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, Page[List]{Items: []List{{ID: "l1", Name: "Pizza", CreatedByUser: r.URL.Query().Get("createdByUser") == "true"}}, Total: 1, Limit: 20, Page: 1})
	}))
	mux.HandleFunc("POST /api/lists", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var in NewList
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		ok(w, List{ID: "l2", Name: in.Name, ListType: "mixed", IsPublic: true})
	}))
	mux.HandleFunc("POST /api/lists/{id}/items", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["item_id"] == "dup" {
			fail(w, http.StatusConflict, "item already in list")
			return
		}
		w.WriteHeader(http.StatusCreated)
		ok(w, ListItem{ID: "li1", ListID: r.PathValue("id"), ItemType: in["item_type"], ItemID: in["item_id"]})
	}))
	mux.HandleFunc("DELETE /api/lists/{id}/items/{itemId}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, ListItem{ID: r.PathValue("itemId")})
	}))
	mux.HandleFunc("POST /api/lists/{id}/follow", f.authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, FollowResult{ListID: r.PathValue("id"), IsFollowing: true, SavedCount: 1})
	}))
	mux.HandleFunc("DELETE /api/lists/{id}/follow", f.authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, FollowResult{ListID: r.PathValue("id")})
	}))
	mux.HandleFunc("GET /api/places/search", f.authed(func(w http.ResponseWriter, r *http.Request) {
		ok(w, []Place{{PlaceID: "p1", Name: r.URL.Query().Get("query")}})
	}))
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func ok(w http.ResponseWriter, data any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func fail(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

func (f *fakeServer) issue() authResult {
	f.seq++
	a, r := fmt.Sprintf("access-%d", f.seq), fmt.Sprintf("refresh-%d", f.seq)
	f.access[a], f.refresh[r] = true, true
	return authResult{
		User:         User{ID: "u1", Email: "a@doof.test", Username: "alice", AccountType: "user"},
		Token:        a,
		RefreshToken: r,
		ExpiresAt:    time.Now().Add(f.ttl),
	}
}

func (f *fakeServer) login(w http.ResponseWriter, r *http.Request) {
	var in map[string]string
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in["password"] != "secret123" {
		fail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ok(w, f.issue())
}

func (f *fakeServer) doRefresh(w http.ResponseWriter, r *http.Request) {
	var in map[string]string
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.down {
		fail(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	if !f.refresh[in["refresh_token"]] {
		fail(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	delete(f.refresh, in["refresh_token"])
	ok(w, f.issue())
}

func (f *fakeServer) status(w http.ResponseWriter, r *http.Request) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tok == "" {
		ok(w, StatusResult{})
		return
	}
	f.mu.Lock()
	valid := f.access[tok]
	f.mu.Unlock()
	if !valid {
		fail(w, http.StatusUnauthorized, "token revoked")
		return
	}
	ok(w, StatusResult{Authenticated: true, User: &User{ID: "u1", Username: "alice-renamed"}})
}

func (f *fakeServer) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		valid := f.access[tok]
		f.mu.Unlock()
		if !valid {
			fail(w, http.StatusUnauthorized, "invalid token")
			return
		}
		h(w, r)
	}
}

func (f *fakeServer) revokeAll(refresh bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = map[string]bool{}
	if refresh {
		f.refresh = map[string]bool{}
	}
}

func (f *fakeServer) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeServer) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeServer) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

type recorder struct {
	mu sync.Mutex
	ts []Transition
}

func (r *recorder) observe(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ts = append(r.ts, t)
}

func (r *recorder) path() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.ts))
	for _, t := range r.ts {
		out = append(out, string(t.From)+">"+string(t.To))
	}
	return out
}

func newClient(t *testing.T, f *fakeServer, o Options) (*Client, *recorder) {
	t.Helper()
	o.BaseURL = f.srv.URL
	c := New(o)
	t.Cleanup(c.Close)
	rec := &recorder{}
	c.OnTransition(rec.observe)
	return c, rec
}

func waitPath(t *testing.T, rec *recorder, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := rec.path()
		return len(got) >= len(want) && assert.ObjectsAreEqual(want, got[:len(want)])
	}, 2*time.Second, 5*time.Millisecond, "transitions: %v", rec.path())
}

func TestLoginTransitions(t *testing.T) {
	f := newFake(t, time.Hour)
	c, rec := newClient(t, f, Options{})
	ctx := context.Background()

	assert.Equal(t, Anonymous, c.State())
	u, err := c.Login(ctx, "a@doof.test", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, Authenticated, c.State())
	waitPath(t, rec, "anonymous>authenticating", "authenticating>authenticated")

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, Anonymous, c.State())
	assert.Nil(t, c.User())
	waitPath(t, rec, "anonymous>authenticating", "authenticating>authenticated", "authenticated>anonymous")
}

func TestLoginFailureReturnsToAnonymous(t *testing.T) {
	f := newFake(t, time.Hour)
	c, rec := newClient(t, f, Options{})

	_, err := c.Login(context.Background(), "a@doof.test", "nope")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, Anonymous, c.State())
	waitPath(t, rec, "anonymous>authenticating", "authenticating>anonymous")
}

func TestUnauthorizedRefreshesAndRetriesOnce(t *testing.T) {
	f := newFake(t, time.Hour)
	c, rec := newClient(t, f, Options{})
	ctx := context.Background()
	_, err := c.Login(ctx, "a@doof.test", "secret123")
	require.NoError(t, err)

	f.revokeAll(false)
	page, err := c.Lists(ctx, ListsQuery{CreatedByUser: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].CreatedByUser)
	assert.Equal(t, 1, f.refreshes())
	assert.Equal(t, Authenticated, c.State())
	waitPath(t, rec, "anonymous>authenticating", "authenticating>authenticated",
		"authenticated>refreshing", "refreshing>authenticated")
}

func TestRejectedRefreshExpires(t *testing.T) {
	f := newFake(t, time.Hour)
	c, rec := newClient(t, f, Options{})
	ctx := context.Background()
	_, err := c.Login(ctx, "a@doof.test", "secret123")
	require.NoError(t, err)

	f.revokeAll(true)
	_, err = c.Lists(ctx, ListsQuery{})
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, Expired, c.State())
	assert.Nil(t, c.User())
	waitPath(t, rec, "anonymous>authenticating", "authenticating>authenticated",
		"authenticated>refreshing", "refreshing>expired")

	// 过期后不再自动刷新
	_, err = c.Lists(ctx, ListsQuery{})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, f.refreshes())
}

func TestNetworkErrorKeepsStateAndRetries(t *testing.T) {
	f := newFake(t, time.Hour)
	c, rec := newClient(t, f, Options{Backoff: 20 * time.Millisecond, MaxBackoff: 40 * time.Millisecond})
	ctx := context.Background()
	_, err := c.Login(ctx, "a@doof.test", "secret123")
	require.NoError(t, err)

	f.setDown(true)
	err = c.Refresh(ctx)
	require.True(t, IsNetwork(err), "%v", err)
	assert.Equal(t, Authenticated, c.State())

	// 后台按退避重试，服务恢复后换到新 token
	require.Eventually(t, func() bool { return f.refreshes() >= 2 }, 2*time.Second, 5*time.Millisecond)
	f.setDown(false)
	require.Eventually(t, func() bool { return c.accessToken() != "access-1" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Authenticated, c.State())
	assert.NotContains(t, rec.path(), "refreshing>expired")
}

func TestTimerRefreshesBeforeExpiry(t *testing.T) {
	f := newFake(t, 300*time.Millisecond)
	c, _ := newClient(t, f, Options{RefreshSkew: 250 * time.Millisecond})
	_, err := c.Login(context.Background(), "a@doof.test", "secret123")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.refreshes() >= 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, Authenticated, c.State())
}

func TestShortTTLDoesNotRefreshInTightLoop(t *testing.T) {
	f := newFake(t, 200*time.Millisecond)
	c, _ := newClient(t, f, Options{}) // 默认 RefreshSkew 30s 远大于 TTL
	_, err := c.Login(context.Background(), "a@doof.test", "secret123")
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	n := f.refreshes()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 10)
	assert.Equal(t, Authenticated, c.State())
}

func TestConcurrentUnauthorizedCallsShareOneRefresh(t *testing.T) {
	f := newFake(t, time.Hour)
	c, _ := newClient(t, f, Options{})
	ctx := context.Background()
	_, err := c.Login(ctx, "a@doof.test", "secret123")
	require.NoError(t, err)
	f.revokeAll(false)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Lists(ctx, ListsQuery{})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, f.refreshes(), 1)
	assert.LessOrEqual(t, f.refreshes(), len(errs))
	assert.Equal(t, Authenticated, c.State())
}

func TestStatus(t *testing.T) {
	f := newFake(t, time.Hour)
	c, _ := newClient(t, f, Options{})
	ctx := context.Background()

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Authenticated)

	_, err = c.Login(ctx, "a@doof.test", "secret123")
	require.NoError(t, err)
	st, err = c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.Equal(t, "alice-renamed", c.User().Username)
}

func TestAPIHelpers(t *testing.T) {
	f := newFake(t, time.Hour)
	c, _ := newClient(t, f, Options{})
	ctx := context.Background()

	_, err := c.CreateList(ctx, NewList{Name: "x"})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)

	_, err = c.Login(ctx, "a@doof.test", "secret123")
	require.NoError(t, err)

	l, err := c.CreateList(ctx, NewList{Name: "Tacos"})
	require.NoError(t, err)
	assert.Equal(t, "Tacos", l.Name)

	item, err := c.AddItem(ctx, l.ID, "restaurant", "r1", "")
	require.NoError(t, err)
	assert.Equal(t, l.ID, item.ListID)
	_, err = c.AddItem(ctx, l.ID, "restaurant", "dup", "")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusConflict, ae.Status)
	assert.Equal(t, "item already in list", ae.Msg)

	require.NoError(t, c.RemoveItem(ctx, l.ID, item.ID))

	fr, err := c.Follow(ctx, "l9")
	require.NoError(t, err)
	assert.True(t, fr.IsFollowing)
	fr, err = c.Unfollow(ctx, "l9")
	require.NoError(t, err)
	assert.False(t, fr.IsFollowing)

	ps, err := c.SearchPlaces(ctx, "tacos el gordo")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "tacos el gordo", ps[0].Name)

	assert.Contains(t, f.seen(), "DELETE /api/lists/l2/items/li1")
	assert.Contains(t, f.seen(), "DELETE /api/lists/l9/follow")
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFake(t, time.Hour)
	c := New(Options{BaseURL: f.srv.URL})
	_, err := c.Login(context.Background(), "a@doof.test", "secret123")
	require.NoError(t, err)

	c.Close()
	c.Close()
	_, err = c.Lists(context.Background(), ListsQuery{})
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, c.Refresh(context.Background()), ErrClosed)
}
