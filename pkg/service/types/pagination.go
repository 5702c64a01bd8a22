package types

type Pagination struct {
	Page     uint32 `json:"page"`
	PageSize uint32 `json:"page_size"`
}

const DefaultPageSize = 100
const MaxPageSize = 1000
const DefaultPage = 0

func NewDefaultPagination() *Pagination {
	return &Pagination{
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
	}
}

func (p *Pagination) Load(pageNumber uint32, pageSize uint32) {
	p.Page = pageNumber
	if pageSize > 0 {
		p.PageSize = min(pageSize, MaxPageSize)
	}
}

func (p *Pagination) Limit() int {
	if p == nil || p.PageSize == 0 {
		return DefaultPageSize
	}
	return int(p.PageSize)
}

func (p *Pagination) Offset() int {
	if p == nil {
		return 0
	}
	return int(p.Page) * p.Limit()
}
