package utils

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const maxPageSize = 500

// PaginationParams selects a page of history counted back from the newest
// message. Page 1 is the most recent PageSize messages.
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPaginationParams extracts page and limit from the query string. ok is
// false when no limit was given and the caller should return everything.
func GetPaginationParams(c echo.Context) (params PaginationParams, ok bool) {
	pageSize, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || pageSize <= 0 {
		return PaginationParams{}, false
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	offset := math.MaxInt
	if page-1 <= math.MaxInt/pageSize {
		offset = (page - 1) * pageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   offset,
	}, true
}

// Window returns the [start, end) bounds of the page within n items kept in
// insertion order. A page past the oldest item yields an empty window.
func (p PaginationParams) Window(n int) (start, end int) {
	if p.Offset < 0 || p.Offset >= n {
		return 0, 0
	}
	end = n - p.Offset
	start = end - p.PageSize
	if start < 0 {
		start = 0
	}
	return start, end
}
