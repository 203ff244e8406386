package feed

import (
	"fmt"
	"strconv"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// PageRequest selects a page. Page is 1-indexed.
type PageRequest struct {
	Page int
	Size int
}

// Page is the paginated envelope returned to clients.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// ParsePageRequest reads the page and size query values, applying defaults
// for empty values.
func ParsePageRequest(page, size string) (PageRequest, error) {
	req := PageRequest{Page: DefaultPage, Size: DefaultPageSize}

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil {
			return req, apperr.New(apperr.InvalidRequest, "page must be an integer")
		}
		req.Page = n
	}
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return req, apperr.New(apperr.InvalidRequest, "size must be an integer")
		}
		req.Size = n
	}

	return req, req.Validate()
}

func (r PageRequest) Validate() error {
	if r.Page < 1 {
		return apperr.New(apperr.InvalidRequest, "page must be >= 1")
	}
	if r.Size < 1 || r.Size > MaxPageSize {
		return apperr.New(apperr.InvalidRequest, fmt.Sprintf("size must be between 1 and %d", MaxPageSize))
	}
	return nil
}

// Paginate slices items according to req. A page past the end is empty.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	if req.Size < 1 {
		req.Size = DefaultPageSize
	}
	if req.Page < 1 {
		req.Page = DefaultPage
	}

	total := len(items)
	pages := (total + req.Size - 1) / req.Size

	start := (req.Page - 1) * req.Size
	if start > total {
		start = total
	}
	end := start + req.Size
	if end > total {
		end = total
	}

	page := make([]T, end-start)
	copy(page, items[start:end])

	return Page[T]{
		Items: page,
		Total: total,
		Page:  req.Page,
		Size:  req.Size,
		Pages: pages,
	}
}
