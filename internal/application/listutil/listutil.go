package listutil

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// PageParams carries pagination parameters parsed from a request.
type PageParams struct {
	Page    int // 1-indexed page number
	PerPage int // rows per page
}

// SortParams carries sorting parameters parsed from a request.
type SortParams struct {
	Sort string // column name, empty for the store default
	Dir  string // "asc" or "desc"
}

// FilterParams carries search and filter parameters.
type FilterParams struct {
	Search  string            // free-text search query
	Filters map[string]string // exact-match filters (e.g. membership=expired)
}

// ListParams combines all list parameters.
type ListParams struct {
	PageParams
	SortParams
	FilterParams
}

// Filter names one exact-match query parameter a list accepts.
type Filter struct {
	Key string
	// Values lists the accepted values; empty accepts any non-blank value.
	Values []string
}

// Schema describes the sort columns and filters a list endpoint accepts.
type Schema struct {
	SortColumns []string
	Filters     []Filter
}

// PageInfo is the pagination block returned with a list.
type PageInfo struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

const (
	// DefaultPerPage is the page size when per_page is absent or invalid.
	DefaultPerPage = 20
	// MaxPerPage caps per_page.
	MaxPerPage = 200
)

// ParsePageParams extracts page and per_page from URL query values.
// PRE: none
// POST: Page >= 1 and 1 <= PerPage <= MaxPerPage
func ParsePageParams(q url.Values) PageParams {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(q.Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = DefaultPerPage
	}
	return PageParams{Page: page, PerPage: min(perPage, MaxPerPage)}
}

// ParseSortParams extracts sort and dir from URL query values.
// PRE: none
// POST: Sort is empty or one of allowedColumns; Dir is always "asc" or "desc"
func ParseSortParams(q url.Values, allowedColumns []string) SortParams {
	sort := strings.ToLower(q.Get("sort"))
	if !slices.Contains(allowedColumns, sort) {
		sort = ""
	}
	dir := strings.ToLower(q.Get("dir"))
	if dir != "desc" {
		dir = "asc"
	}
	return SortParams{Sort: sort, Dir: dir}
}

// ParseFilterParams extracts search and the filters declared in filters.
// search is read from "search", falling back to "q".
// PRE: none
// POST: Filters holds only declared keys with accepted values
func ParseFilterParams(q url.Values, filters []Filter) FilterParams {
	search := q.Get("search")
	if search == "" {
		search = q.Get("q")
	}
	fp := FilterParams{
		Search:  strings.TrimSpace(search),
		Filters: make(map[string]string),
	}
	for _, f := range filters {
		v := strings.TrimSpace(q.Get(f.Key))
		if v == "" {
			continue
		}
		if len(f.Values) > 0 && !slices.Contains(f.Values, v) {
			continue
		}
		fp.Filters[f.Key] = v
	}
	return fp
}

// ParseListParams parses all list parameters accepted by schema.
func ParseListParams(q url.Values, schema Schema) ListParams {
	return ListParams{
		PageParams:   ParsePageParams(q),
		SortParams:   ParseSortParams(q, schema.SortColumns),
		FilterParams: ParseFilterParams(q, schema.Filters),
	}
}

// NewPageInfo computes pagination metadata.
// PRE: total >= 0
// POST: Page is clamped to [1, TotalPages]; TotalPages >= 1
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	page = min(max(page, 1), totalPages)
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// Offset returns the row offset of the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}
