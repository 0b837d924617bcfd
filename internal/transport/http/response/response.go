package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/core/errs"
)

// Resp 成功 {success:true,data}；失败 {success:false,error}
type Resp struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func OK(data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Success: true, Data: data}
}

// Error 失败响应；customMsg 为空时使用默认信息
func Error(code int, customMsg string) Resp {
	msg := customMsg
	if msg == "" {
		msg = MsgFor(code)
	}
	return Resp{Success: false, Error: msg}
}

func JSON(c *gin.Context, status int, data any) { c.JSON(status, OK(data)) }

func Abort(c *gin.Context, code int, msg string) { c.AbortWithStatusJSON(code, Error(code, msg)) }

// Fail 按 errs 映射状态码；5xx 只返回通用信息
func Fail(c *gin.Context, err error) {
	code := errs.CodeOf(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		msg = ""
	}
	Abort(c, code, msg)
}
