package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Leeway Parse 允许的过期宽限；吊销记录必须覆盖这段时间
const Leeway = 60 * time.Second

var ErrWrongTokenType = errors.New("auth: wrong token type")

type Claims struct {
	UID  string `json:"uid"`
	Role string `json:"role"` // user / admin / superuser
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Remaining 距过期的剩余时间（吊销记录的 TTL）
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

type JWTer struct {
	Secret     []byte
	Issuer     string
	TTL        time.Duration // access token
	RefreshTTL time.Duration
}

type TokenPair struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshID    string    `json:"-"`
}

func (j *JWTer) Issue(uid, role string) (string, error) {
	tok, _, err := j.sign(uid, role, TypeAccess, j.TTL)
	return tok, err
}

// IssuePair 登录/刷新时签发 access + refresh
func (j *JWTer) IssuePair(uid, role string) (*TokenPair, error) {
	access, ac, err := j.sign(uid, role, TypeAccess, j.TTL)
	if err != nil {
		return nil, err
	}
	refresh, rc, err := j.sign(uid, role, TypeRefresh, j.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    ac.ExpiresAt.Time,
		RefreshID:    rc.ID,
	}, nil
}

func (j *JWTer) sign(uid, role, typ string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UID:  uid,
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
	if err != nil {
		return "", nil, err
	}
	return s, claims, nil
}

func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithIssuer(j.Issuer), jwt.WithLeeway(Leeway))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func (j *JWTer) ParseAccess(tokenStr string) (*Claims, error) { return j.parseTyped(tokenStr, TypeAccess) }

func (j *JWTer) ParseRefresh(tokenStr string) (*Claims, error) {
	return j.parseTyped(tokenStr, TypeRefresh)
}

func (j *JWTer) parseTyped(tokenStr, typ string) (*Claims, error) {
	c, err := j.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Type != typ {
		return nil, ErrWrongTokenType
	}
	return c, nil
}
