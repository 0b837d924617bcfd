// Package doofclient DOOF API 的 Go 客户端。
//
// Client 持有唯一的会话（token + 用户），状态变化按顺序通知观察者：
//
//	anonymous -> authenticating -> authenticated | anonymous
//	authenticated -> refreshing -> authenticated | expired
//	任意状态 -> anonymous (Logout)
//
// access token 过期前由后台定时刷新；任意请求遇到 401 会刷新一次并重试。
// 网络错误（连接失败 / 5xx）不改变状态，后台按指数退避重试刷新。
package doofclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	RefreshSkew time.Duration // 提前多久刷新，默认 30s
	Backoff     time.Duration // 网络错误首次重试间隔，默认 1s
	MaxBackoff  time.Duration // 默认 1m
	Log         *zap.Logger
}

type Client struct {
	base string
	http *http.Client
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	state     State
	sess      session
	observers []Observer
	queue     []Transition // 待投递，保持顺序
	nextAt    time.Time    // 下次后台刷新；零值表示不刷新
	failures  int

	sf     singleflight.Group
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

type session struct {
	access    string
	refresh   string
	expiresAt time.Time
	user      *User
}

func New(o Options) *Client {
	if o.HTTPClient == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		o.HTTPClient = &http.Client{Transport: tr, Timeout: 15 * time.Second}
	}
	if o.RefreshSkew <= 0 {
		o.RefreshSkew = 30 * time.Second
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Minute
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		base:   strings.TrimRight(o.BaseURL, "/"),
		http:   o.HTTPClient,
		opts:   o,
		log:    o.Log,
		state:  Anonymous,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.loop()
	return c
}

// Close 停止后台刷新并等待观察者投递结束；可重复调用
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
		c.http.CloseIdleConnections()
	})
}

func (c *Client) closed() bool { return c.ctx.Err() != nil }

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// loop 唯一的后台 goroutine：投递状态变化 + 定时刷新
func (c *Client) loop() {
	defer close(c.done)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var armed time.Time

	for {
		c.deliver()

		c.mu.Lock()
		next := c.nextAt
		c.mu.Unlock()
		if !next.Equal(armed) {
			timer.Stop()
			armed = next
			if !next.IsZero() {
				timer.Reset(time.Until(next))
			}
		}

		select {
		case <-c.ctx.Done():
			timer.Stop()
			c.deliver()
			return
		case <-c.wake:
		case <-timer.C:
			armed = time.Time{}
			c.mu.Lock()
			c.nextAt = time.Time{}
			c.mu.Unlock()
			if err := c.refresh(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Debug("background refresh failed", zap.Error(err))
			}
		}
	}
}

func (c *Client) deliver() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		batch := c.queue
		c.queue = nil
		obs := append([]Observer(nil), c.observers...)
		c.mu.Unlock()

		for _, t := range batch {
			for _, o := range obs {
				o(t)
			}
		}
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// send 单次请求；token 为空则不带 Authorization
func (c *Client) send(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &NetworkError{Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
		}
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return &APIError{Status: resp.StatusCode, Msg: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// call 带会话的请求：401 时刷新一次并重试
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	if c.closed() {
		return ErrClosed
	}
	err := c.send(ctx, method, path, c.accessToken(), in, out)
	if statusOf(err) != http.StatusUnauthorized || !c.hasRefresh() {
		return err
	}
	if rerr := c.refresh(ctx); rerr != nil {
		return rerr
	}
	return c.send(ctx, method, path, c.accessToken(), in, out)
}
