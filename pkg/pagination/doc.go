// Package pagination builds page/size/sort query parameters for the backend's
// paginated collection endpoints.
//
// Example usage:
//
//	req := pagination.PagedRequest{
//		Page:          2,
//		Size:          10,
//		SortBy:        []string{"name", "date"},
//		SortDirection: pagination.SortAsc,
//	}
//	req.Encode() // page=2&size=10&sort_by=name%2Cdate&sort_direction=asc
//
// The backend expects:
//   - page: zero-based page index
//   - size: items per page
//   - sort_by: comma-separated sort fields, in priority order (optional)
//   - sort_direction: "asc" or "desc" (optional)
//
// FromValues performs the reverse mapping for servers that forward incoming
// query strings to the backend.
package pagination
