package types

// PaginationResponse describes the page that was returned. Total is omitted
// when counting would need an extra query.
type PaginationResponse struct {
	Total   *int `json:"total,omitempty"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListResponse is the envelope of every list endpoint
type ListResponse[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewListResponse builds a page with a known total. A nil or unlimited filter
// means items is the whole result.
func NewListResponse[T any](items []T, total int, filter BaseFilter) ListResponse[T] {
	page := newPage(items, filter)
	page.Pagination.Total = &total
	page.Pagination.HasMore = page.Pagination.Offset+len(page.Items) < total
	return page
}

// NewPageResponse builds a page without a total. HasMore is a guess from a
// full page, so callers may see one trailing empty page.
func NewPageResponse[T any](items []T, filter BaseFilter) ListResponse[T] {
	page := newPage(items, filter)
	page.Pagination.HasMore = page.Pagination.Limit > 0 && len(page.Items) == page.Pagination.Limit
	return page
}

func newPage[T any](items []T, filter BaseFilter) ListResponse[T] {
	if items == nil {
		items = []T{}
	}

	pagination := PaginationResponse{Limit: len(items)}
	if filter != nil && !filter.IsUnlimited() {
		pagination.Limit = filter.GetLimit()
		pagination.Offset = filter.GetOffset()
	}
	return ListResponse[T]{Items: items, Pagination: pagination}
}
