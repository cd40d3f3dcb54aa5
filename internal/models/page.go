package models

// Sortable journal fields, as accepted in the sort query parameter.
const (
	SortByCreatedAt  = "createdAt"
	SortByModifiedAt = "modifiedAt"
	SortByTitle      = "title"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest selects one zero-based page of results.
type PageRequest struct {
	Page      int
	Size      int
	SortField string
	SortDesc  bool
}

// DefaultPageRequest returns the first page sorted by newest first.
func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize, SortField: SortByCreatedAt, SortDesc: true}
}

// Offset is the number of items to skip.
func (p PageRequest) Offset() int64 {
	return int64(p.Page) * int64(p.Size)
}

// Page is one slice of a larger result set.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// NewPage fills in the derived page count.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{Items: items, Page: req.Page, Size: req.Size, TotalItems: total, TotalPages: pages}
}

// MapPage converts the items of a page while keeping its paging fields.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, fn(it))
	}
	return Page[U]{Items: out, Page: p.Page, Size: p.Size, TotalItems: p.TotalItems, TotalPages: p.TotalPages}
}
