package models

// Page is a single page of an ordered listing.
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNumber    int   `json:"page_number"`
	PageSize      int   `json:"page_size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

// NewPage wraps content with pagination metadata. total is the number of
// elements across all pages.
func NewPage[T any](content []T, page, size int, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	pages := int((total + int64(size) - 1) / int64(size))
	return Page[T]{
		Content:       content,
		PageNumber:    page,
		PageSize:      size,
		TotalElements: total,
		TotalPages:    pages,
		First:         page == 0,
		Last:          page >= pages-1,
		Empty:         len(content) == 0,
	}
}
