package common

import (
	"net/http"
	"strconv"
	"strings"
)

// MaxPerPage caps the page size accepted from query strings.
const MaxPerPage = 200

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills in the page count for the given totals.
func NewPagination(page, perPage, total int) Pagination {
	p := Pagination{Page: page, PerPage: perPage, TotalItems: total}
	if perPage > 0 {
		p.TotalPages = (total + perPage - 1) / perPage
	}
	return p
}

// Offset is the number of items before the current page.
func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// ParsePagination reads ?page= and ?limit=. Invalid values fall back to page 1 and the
// default size; sizes above MaxPerPage are clamped.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = AtoiDefault(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage = ParseLimit(q.Get("limit"), defaultPerPage, MaxPerPage)
	return page, perPage
}

// ParseLimit parses a positive size, clamping it to max when max > 0.
func ParseLimit(raw string, def, max int) int {
	n := AtoiDefault(raw, def)
	if n < 1 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// AtoiDefault converts value to an int, returning def when it is empty or malformed.
func AtoiDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
