package generic

// =============================================================================
// PAGINATION - {items, total, pages, current_page, per_page}
// =============================================================================

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize clamps page to >= 1 and per_page to [1, MaxPerPage].
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

type Page[T any] struct {
	Items       []T
	Total       int
	Pages       int
	CurrentPage int
	PerPage     int
}

// Paginate slices an already ordered result set. A page past the end is empty.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	req = req.Normalize()
	total := len(items)
	pages := (total + req.PerPage - 1) / req.PerPage

	// Compare in pages first; (Page-1)*PerPage overflows for huge pages.
	from := total
	if req.Page-1 < pages {
		from = (req.Page - 1) * req.PerPage
	}
	to := from + req.PerPage
	if to > total {
		to = total
	}

	out := make([]T, to-from)
	copy(out, items[from:to])
	return Page[T]{
		Items:       out,
		Total:       total,
		Pages:       pages,
		CurrentPage: req.Page,
		PerPage:     req.PerPage,
	}
}

// MapPage converts page items while keeping the paging metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Items))
	for i, it := range p.Items {
		out[i] = fn(it)
	}
	return Page[U]{Items: out, Total: p.Total, Pages: p.Pages, CurrentPage: p.CurrentPage, PerPage: p.PerPage}
}
