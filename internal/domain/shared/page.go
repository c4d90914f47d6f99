package shared

// Filter selects one page of a listing. Page is 1-based; without both a
// page and a page size the listing is unbounded.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter is the first 20 rows, newest first
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: 20, OrderBy: "created_at", OrderDir: "desc"}
}

// Offset is the number of rows before the page
func (f Filter) Offset() int {
	if f.Page < 2 || f.PageSize < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Limited reports whether the filter caps the row count
func (f Filter) Limited() bool {
	return f.Page > 0 && f.PageSize > 0
}
