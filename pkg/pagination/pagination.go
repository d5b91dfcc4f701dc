// Package pagination provides pagination utilities.
package pagination

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// DefaultPerPage is the page size used when none is requested.
const DefaultPerPage = 25

// MaxPerPage caps the page size a client can request.
const MaxPerPage = 100

// New creates a Pagination, clamping out-of-range values.
func New(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Pagination{Page: page, PerPage: perPage}
}

// Offset returns the row offset for this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the row limit for this page.
func (p Pagination) Limit() int {
	return p.PerPage
}

// Result is a paginated result set.
type Result[T any] struct {
	Items   []T   `json:"results"`
	Total   int64 `json:"count"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

// NewResult builds a Result from items and a total count.
func NewResult[T any](items []T, total int64, p Pagination) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items:   items,
		Total:   total,
		Page:    p.Page,
		PerPage: p.PerPage,
	}
}
