// internal/pkg/pagination/pagination.go
package pagination

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params is the page/page_size pair bound from list query strings.
type Params struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Normalize clamps to page >= 1 and 1 <= page_size <= MaxPageSize.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

func (p Params) Limit() int {
	return p.Normalize().PageSize
}
