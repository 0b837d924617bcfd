package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound refresh token 不存在、已用过或已过期
var ErrSessionNotFound = errors.New("auth: session not found")

// SessionStore 服务端唯一的会话真相来源
type SessionStore interface {
	SaveRefresh(ctx context.Context, jti, uid string, ttl time.Duration) error
	// ConsumeRefresh 单次使用：取出即删除
	ConsumeRefresh(ctx context.Context, jti string) (string, error)
	RevokeAccess(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeUser 删除该用户全部 refresh token（改密码 / 封禁）
	RevokeUser(ctx context.Context, uid string) error
}

type RedisSessions struct {
	RDB    *redis.Client
	Prefix string
}

func NewRedisSessions(rdb *redis.Client) *RedisSessions {
	return &RedisSessions{RDB: rdb, Prefix: "doof:session:"}
}

func (s *RedisSessions) refreshKey(jti string) string { return s.Prefix + "refresh:" + jti }
func (s *RedisSessions) revokedKey(jti string) string { return s.Prefix + "revoked:" + jti }
func (s *RedisSessions) userKey(uid string) string    { return s.Prefix + "user:" + uid }

func (s *RedisSessions) SaveRefresh(ctx context.Context, jti, uid string, ttl time.Duration) error {
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.refreshKey(jti), uid, ttl)
		p.SAdd(ctx, s.userKey(uid), jti)
		p.Expire(ctx, s.userKey(uid), ttl)
		return nil
	})
	return err
}

func (s *RedisSessions) ConsumeRefresh(ctx context.Context, jti string) (string, error) {
	uid, err := s.RDB.GetDel(ctx, s.refreshKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	_ = s.RDB.SRem(ctx, s.userKey(uid), jti).Err()
	return uid, nil
}

func (s *RedisSessions) RevokeAccess(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.RDB.Set(ctx, s.revokedKey(jti), 1, ttl).Err()
}

func (s *RedisSessions) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.RDB.Exists(ctx, s.revokedKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisSessions) RevokeUser(ctx context.Context, uid string) error {
	jtis, err := s.RDB.SMembers(ctx, s.userKey(uid)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(jtis)+1)
	for _, j := range jtis {
		keys = append(keys, s.refreshKey(j))
	}
	keys = append(keys, s.userKey(uid))
	return s.RDB.Del(ctx, keys...).Err()
}

// MemorySessions 未配置 redis 时的进程内实现（单实例开发环境）
type MemorySessions struct {
	mu      sync.Mutex
	now     func() time.Time
	refresh map[string]memEntry
	revoked map[string]time.Time
}

type memEntry struct {
	uid string
	exp time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		now:     time.Now,
		refresh: map[string]memEntry{},
		revoked: map[string]time.Time{},
	}
}

func (s *MemorySessions) SaveRefresh(_ context.Context, jti, uid string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[jti] = memEntry{uid: uid, exp: s.now().Add(ttl)}
	return nil
}

func (s *MemorySessions) ConsumeRefresh(_ context.Context, jti string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.refresh[jti]
	delete(s.refresh, jti)
	if !ok || s.now().After(e.exp) {
		return "", ErrSessionNotFound
	}
	return e.uid, nil
}

func (s *MemorySessions) RevokeAccess(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, k)
		}
	}
	s.revoked[jti] = now.Add(ttl)
	return nil
}

func (s *MemorySessions) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	return ok && !s.now().After(exp), nil
}

func (s *MemorySessions) RevokeUser(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.refresh {
		if e.uid == uid {
			delete(s.refresh, k)
		}
	}
	return nil
}
