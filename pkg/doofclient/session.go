package doofclient

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type State string

const (
	Anonymous      State = "anonymous"
	Authenticating State = "authenticating"
	Authenticated  State = "authenticated"
	Refreshing     State = "refreshing"
	Expired        State = "expired"
)

type Transition struct {
	From State
	To   State
	Err  error // 导致本次变化的错误（失败 / 过期时）
	At   time.Time
}

// Observer 在后台 goroutine 中按发生顺序被调用，不要阻塞
type Observer func(Transition)

// OnTransition 注册观察者，返回取消函数
func (c *Client) OnTransition(o Observer) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
	idx := len(c.observers) - 1
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.observers) {
			c.observers[idx] = func(Transition) {}
		}
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User 未登录返回 nil
func (c *Client) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.user == nil {
		return nil
	}
	u := *c.sess.user
	return &u
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.access
}

func (c *Client) hasRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.refresh != ""
}

// setLocked 调用方持有 c.mu
func (c *Client) setLocked(to State, err error) {
	if c.state == to {
		return
	}
	c.queue = append(c.queue, Transition{From: c.state, To: to, Err: err, At: time.Now()})
	c.state = to
	c.signal()
}

func (c *Client) scheduleLocked(at time.Time) {
	c.nextAt = at
	c.signal()
}

func (c *Client) applyLocked(res *authResult) {
	u := res.User
	c.sess = session{access: res.Token, refresh: res.RefreshToken, expiresAt: res.ExpiresAt, user: &u}
	c.failures = 0
	now := time.Now()
	ttl := res.ExpiresAt.Sub(now)
	at := res.ExpiresAt.Add(-c.opts.RefreshSkew)
	switch {
	case ttl <= 0:
		at = now.Add(c.opts.Backoff)
	case at.Before(now.Add(ttl / 2)):
		// TTL 不大于 RefreshSkew 时至少等半个 TTL
		at = now.Add(ttl / 2)
	}
	c.scheduleLocked(at)
}

func (c *Client) clearLocked() {
	c.sess = session{}
	c.failures = 0
	c.scheduleLocked(time.Time{})
}

func (c *Client) backoffLocked() time.Duration {
	c.failures++
	d := c.opts.Backoff
	for i := 1; i < c.failures && d < c.opts.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.opts.MaxBackoff {
		d = c.opts.MaxBackoff
	}
	return d
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

func (c *Client) Register(ctx context.Context, email, username, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"email": email, "username": username, "password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	if c.closed() {
		return nil, ErrClosed
	}
	c.mu.Lock()
	c.setLocked(Authenticating, nil)
	c.mu.Unlock()

	var res authResult
	err := c.send(ctx, http.MethodPost, path, "", body, &res)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.clearLocked()
		c.setLocked(Anonymous, err)
		return nil, err
	}
	c.applyLocked(&res)
	c.setLocked(Authenticated, nil)
	u := res.User
	return &u, nil
}

// Logout 服务端吊销失败也会清掉本地会话
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	access, refresh := c.sess.access, c.sess.refresh
	c.mu.Unlock()

	var err error
	if access != "" && !c.closed() {
		err = c.send(ctx, http.MethodPost, "/api/auth/logout", access, map[string]string{"refresh_token": refresh}, nil)
	}

	c.mu.Lock()
	c.clearLocked()
	c.setLocked(Anonymous, nil)
	c.mu.Unlock()
	return err
}

// Refresh 并发调用合并为一次请求
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed() {
		return ErrClosed
	}
	return c.refresh(ctx)
}

func (c *Client) refresh(ctx context.Context) error {
	ch := c.sf.DoChan("refresh", func() (any, error) { return nil, c.doRefresh(ctx) })
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) doRefresh(ctx context.Context) error {
	c.mu.Lock()
	rt := c.sess.refresh
	if rt == "" {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	prev := c.state
	c.setLocked(Refreshing, nil)
	c.mu.Unlock()

	var res authResult
	err := c.send(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": rt}, &res)

	c.mu.Lock()
	defer c.mu.Unlock()
	// 刷新期间已登出或重新登录
	if c.sess.refresh != rt {
		return ErrNotAuthenticated
	}
	switch {
	case err == nil:
		c.applyLocked(&res)
		c.setLocked(Authenticated, nil)
		return nil
	case IsNetwork(err):
		c.setLocked(prev, err)
		c.scheduleLocked(time.Now().Add(c.backoffLocked()))
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.setLocked(prev, err)
		return err
	default:
		c.clearLocked()
		c.setLocked(Expired, err)
		return ErrSessionExpired
	}
}

// Status 向服务端确认会话；服务端不再认可时进入 expired
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var out StatusResult
	if err := c.call(ctx, http.MethodGet, "/api/auth/status", nil, &out); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case out.Authenticated && out.User != nil && c.sess.access != "":
		u := *out.User
		c.sess.user = &u
	case !out.Authenticated && c.sess.access != "":
		c.clearLocked()
		c.setLocked(Expired, ErrSessionExpired)
	}
	return &out, nil
}
