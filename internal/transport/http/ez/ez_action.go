package ez

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"doof/internal/core/errs"
	"doof/internal/domain"
	resp "doof/internal/transport/http/response"
)

// EZ 路由分组的轻封装：Action 一行注册
type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, log *zap.Logger) EZ {
	if log == nil {
		log = zap.NewNop()
	}
	return EZ{g: g, log: log}
}

// Group 子分组，可附加中间件
func (e EZ) Group(path string, mws ...gin.HandlerFunc) EZ {
	return EZ{g: e.g.Group(path, mws...), log: e.log}
}

// 绑定方式
type Binder string

const (
	BindJSON         Binder = "json"          // 从 JSON 绑定
	BindOptionalJSON Binder = "optional_json" // 有 body 才绑定
	BindQuery        Binder = "query"         // 从 URL ?a=b 绑定
	BindNone         Binder = "none"          // 不绑定，自己从 c.Param 取
)

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method  string   // "GET" | "POST" | "PUT" | "DELETE"
	Path    string   // 例："/auth/login"、"/lists/:id/items"
	Binder  Binder   // 绑定方式
	Auth    bool     // 是否要求登录（检查 userId）
	Roles   []string // 限定角色（可选）
	Status  int      // 成功状态码，默认 200
	Handler func(c *gin.Context, in *I) (O, error)
}

// AdminRoles admin 与 superuser
var AdminRoles = []string{domain.RoleAdmin, domain.RoleSuperuser}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth || len(a.Roles) > 0 {
			if c.GetString("userId") == "" {
				resp.Abort(c, http.StatusUnauthorized, "authentication required")
				return
			}
			if len(a.Roles) > 0 && !hasRole(c.GetString("role"), a.Roles) {
				resp.Abort(c, http.StatusForbidden, "")
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindOptionalJSON:
			if c.Request.ContentLength > 0 {
				bindErr = c.ShouldBindJSON(&in)
			}
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			resp.Abort(c, http.StatusBadRequest, bindErr.Error())
			return
		}

		// 3) 执行 + 统一错误映射
		out, err := a.Handler(c, &in)
		if err != nil {
			if code := errs.CodeOf(err); code >= http.StatusInternalServerError {
				e.log.Error("action failed",
					zap.String("method", c.Request.Method),
					zap.String("path", c.FullPath()),
					zap.Int("status", code),
					zap.Error(err),
				)
			}
			resp.Fail(c, err)
			return
		}
		resp.JSON(c, status, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}

// UserID 未登录为空串
func UserID(c *gin.Context) string { return c.GetString("userId") }

// PageQuery ?page=&limit=，page 从 1 开始
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (q PageQuery) ToPage() domain.Page { return domain.FromPageNumber(q.Page, q.Limit) }

// SplitCSV "a,b" 与重复参数都支持
func SplitCSV(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
