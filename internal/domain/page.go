package domain

const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxPage      = 10000
)

type Page struct {
	Offset int
	Limit  int
}

// Normalize 限制分页参数到合法范围
func (p Page) Normalize() Page {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// FromPageNumber page 从 1 开始
func FromPageNumber(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	p := Page{Limit: limit}.Normalize()
	p.Offset = (page - 1) * p.Limit
	return p
}

type PageResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Limit int   `json:"limit"`
	Page  int   `json:"page"`
}

func NewPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	p = p.Normalize()
	return PageResult[T]{Items: items, Total: total, Limit: p.Limit, Page: p.Offset/p.Limit + 1}
}
