package doofclient

import (
	"errors"
	"fmt"
)

var (
	ErrClosed           = errors.New("doofclient: client closed")
	ErrNotAuthenticated = errors.New("doofclient: not authenticated")
	ErrSessionExpired   = errors.New("doofclient: session expired")
)

// APIError 服务端返回的 4xx
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string { return fmt.Sprintf("doofclient: %d %s", e.Status, e.Msg) }

// NetworkError 连接失败或 5xx；会话状态保持不变
type NetworkError struct {
	Status int // 0 表示没有拿到响应
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("doofclient: server unavailable (%d)", e.Status)
	}
	return "doofclient: network: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func statusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
