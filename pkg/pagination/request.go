package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names understood by the backend.
const (
	ParamPage          = "page"
	ParamSize          = "size"
	ParamSortBy        = "sort_by"
	ParamSortDirection = "sort_direction"
)

// Sort directions accepted by the backend. Other values are passed through unchanged.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

var (
	// ErrInvalidPage is returned when the page index is negative.
	ErrInvalidPage = errors.New("page must be >= 0")

	// ErrInvalidSize is returned when the page size is not positive.
	ErrInvalidSize = errors.New("size must be > 0")
)

// PagedRequest selects one page of a larger collection.
type PagedRequest struct {
	// Page is the zero-based page index.
	Page int

	// Size is the number of items per page.
	Size int

	// SortBy lists sort fields in priority order (optional).
	SortBy []string

	// SortDirection is the sort order, typically "asc" or "desc" (optional).
	SortDirection string
}

// Validate checks the page index and size.
func (r PagedRequest) Validate() error {
	if r.Page < 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidPage, r.Page)
	}
	if r.Size <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidSize, r.Size)
	}
	return nil
}

// Values returns the query parameters for the request.
// sort_by and sort_direction are only present when supplied; sort fields
// are comma-joined in their original order.
func (r PagedRequest) Values() url.Values {
	values := url.Values{}
	values.Set(ParamPage, strconv.Itoa(r.Page))
	values.Set(ParamSize, strconv.Itoa(r.Size))

	if len(r.SortBy) > 0 {
		values.Set(ParamSortBy, strings.Join(r.SortBy, ","))
	}
	if r.SortDirection != "" {
		values.Set(ParamSortDirection, r.SortDirection)
	}

	return values
}

// Encode returns the URL-encoded query string, e.g.
// "page=2&size=10&sort_by=name%2Cdate&sort_direction=asc".
func (r PagedRequest) Encode() string {
	return r.Values().Encode()
}

// Next returns the request for the following page with the same size and sort.
func (r PagedRequest) Next() PagedRequest {
	next := r
	next.Page = r.Page + 1
	return next
}

// FromValues parses a PagedRequest from query parameters.
// Missing page defaults to 0 and missing size to defaultSize.
func FromValues(values url.Values, defaultSize int) (PagedRequest, error) {
	req := PagedRequest{Size: defaultSize}

	if raw := values.Get(ParamPage); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return PagedRequest{}, fmt.Errorf("parse %s: %w", ParamPage, err)
		}
		req.Page = page
	}

	if raw := values.Get(ParamSize); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return PagedRequest{}, fmt.Errorf("parse %s: %w", ParamSize, err)
		}
		req.Size = size
	}

	if raw := values.Get(ParamSortBy); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			if field = strings.TrimSpace(field); field != "" {
				req.SortBy = append(req.SortBy, field)
			}
		}
	}
	req.SortDirection = values.Get(ParamSortDirection)

	return req, req.Validate()
}
