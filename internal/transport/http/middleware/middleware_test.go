package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"doof/internal/core/auth"
	"doof/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

func newJWT() *auth.JWTer {
	return &auth.JWTer{
		Secret:     []byte("middleware-secret-middleware-secret"),
		Issuer:     "doof-test",
		TTL:        time.Minute,
		RefreshTTL: time.Hour,
	}
}

func serve(r *gin.Engine, method, path, token string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func echoUser(c *gin.Context) {
	c.String(http.StatusOK, c.GetString(KeyUserID)+"|"+c.GetString(KeyRole))
}

func TestAuthJWTRequired(t *testing.T) {
	j := newJWT()
	sessions := auth.NewMemorySessions()
	r := gin.New()
	r.GET("/me", AuthJWT(j, sessions, AuthRequired), echoUser)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "not-a-jwt", "").Code)

	pair, err := j.IssuePair("u1", domain.RoleUser)
	require.NoError(t, err)
	// refresh token 不能当 access token 用
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", pair.RefreshToken, "").Code)

	w := serve(r, http.MethodGet, "/me", pair.AccessToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1|user", w.Body.String())

	claims, err := j.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, sessions.RevokeAccess(context.Background(), claims.ID, time.Minute))
	w = serve(r, http.MethodGet, "/me", pair.AccessToken, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token revoked")
}

func TestAuthJWTOptional(t *testing.T) {
	j := newJWT()
	r := gin.New()
	r.GET("/feed", AuthJWT(j, nil, AuthOptional), echoUser)

	w := serve(r, http.MethodGet, "/feed", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "|", w.Body.String())

	// 带了无效 token 仍然拒绝
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/feed", "bad", "").Code)

	tok, err := j.Issue("u2", domain.RoleAdmin)
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/feed", tok, "")
	assert.Equal(t, "u2|admin", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	j := newJWT()
	r := gin.New()
	r.GET("/admin", AuthJWT(j, nil, AuthRequired), RequireAdmin(), echoUser)

	user, _ := j.Issue("u1", domain.RoleUser)
	super, _ := j.Issue("u9", domain.RoleSuperuser)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", user, "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", super, "").Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(1, 1), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/x", "", "").Code)
	w := serve(r, http.MethodGet, "/x", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimitPerIP(1, 1), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusNoContent, get("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, get("10.0.0.2"))
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.POST("/x", MaxBodyBytes(8), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/x", "", "small").Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, http.MethodPost, "/x", "", "way too large body").Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/slow", Timeout(20*time.Millisecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	assert.Equal(t, http.StatusGatewayTimeout, serve(r, http.MethodGet, "/slow", "", "").Code)
}

func TestConcurrencyLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", ConcurrencyLimit(1), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/x", "", "").Code)
}

func TestRequestIDAndAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x?token=abc&q=pizza", nil)
	req.Header.Set(KeyRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "rid-1", w.Header().Get(KeyRequestID))

	entries := logs.FilterMessage("HTTP").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "rid-1", fields["rid"])
	assert.EqualValues(t, http.StatusNoContent, fields["status"])
	q := fields["query"].(map[string][]string)
	assert.Equal(t, []string{"****"}, q["token"])
	assert.Equal(t, []string{"pizza"}, q["q"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(KeyRequestID))

	// 非法的上游 id 被替换
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(KeyRequestID, "bad id\r\nx")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "bad id\r\nx", w.Header().Get(KeyRequestID))
	assert.Len(t, w.Header().Get(KeyRequestID), 36)
}

func TestMetricsRouteLabel(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/lists/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/lists/:id", http.MethodGet, "200"))
	serve(r, http.MethodGet, "/lists/abc", "", "")
	serve(r, http.MethodGet, "/lists/def", "", "")
	assert.Equal(t, before+2, testutil.ToFloat64(httpRequests.WithLabelValues("/lists/:id", http.MethodGet, "200")))

	unmatched := testutil.ToFloat64(httpRequests.WithLabelValues(routeUnmatched, http.MethodGet, "404"))
	serve(r, http.MethodGet, "/random/path/123", "", "")
	assert.Equal(t, unmatched+1, testutil.ToFloat64(httpRequests.WithLabelValues(routeUnmatched, http.MethodGet, "404")))
	assert.Zero(t, testutil.ToFloat64(httpInFlight))
}
