package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"doof/internal/core/auth"
	"doof/internal/domain"
	resp "doof/internal/transport/http/response"
)

const (
	KeyUserID = "userId"
	KeyRole   = "role"
	KeyClaims = "claims"
)

// AuthMode Required 无 token 直接 401；Optional 允许匿名，但携带的 token 必须有效
type AuthMode int

const (
	AuthRequired AuthMode = iota
	AuthOptional
)

func AuthJWT(j *auth.JWTer, sessions auth.SessionStore, mode AuthMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			if mode == AuthOptional {
				c.Next()
				return
			}
			resp.Abort(c, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := j.ParseAccess(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			resp.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if sessions != nil {
			revoked, err := sessions.IsRevoked(c, claims.ID)
			if err != nil {
				resp.Abort(c, http.StatusServiceUnavailable, "session store unavailable")
				return
			}
			if revoked {
				resp.Abort(c, http.StatusUnauthorized, "token revoked")
				return
			}
		}
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UID)
		c.Set(KeyRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin admin 与 superuser 放行
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(KeyUserID) == "" {
			resp.Abort(c, http.StatusUnauthorized, "")
			return
		}
		if !domain.IsAdminRole(c.GetString(KeyRole)) {
			resp.Abort(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

// ClaimsFrom 未登录返回 nil
func ClaimsFrom(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(KeyClaims); ok {
		if cl, ok := v.(*auth.Claims); ok {
			return cl
		}
	}
	return nil
}
