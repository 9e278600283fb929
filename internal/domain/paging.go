package domain

import (
	"fmt"
	"math"
	"strings"

	"ledger-service/internal/errors"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// SortField is the whitelist of columns a page may be ordered by.
type SortField string

const (
	SortByAmount    SortField = "amount"
	SortByType      SortField = "type"
	SortByTimestamp SortField = "timestamp"
)

func ParseSortField(raw string) (SortField, error) {
	if strings.TrimSpace(raw) == "" {
		return SortByTimestamp, nil
	}
	switch f := SortField(strings.ToLower(strings.TrimSpace(raw))); f {
	case SortByAmount, SortByType, SortByTimestamp:
		return f, nil
	default:
		return "", errors.ErrInvalidSortField.WithDetails(fmt.Sprintf("got %q", raw))
	}
}

type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

func ParseSortDirection(raw string) (SortDirection, error) {
	if strings.TrimSpace(raw) == "" {
		return Descending, nil
	}
	switch d := SortDirection(strings.ToUpper(strings.TrimSpace(raw))); d {
	case Ascending, Descending:
		return d, nil
	default:
		return "", errors.ErrInvalidDirection.WithDetails(fmt.Sprintf("got %q", raw))
	}
}

// PageRequest is what callers send: Page is 1-based.
type PageRequest struct {
	Page      int
	Size      int
	Direction SortDirection
	SortBy    SortField
}

// PageWindow is what the store executes: Page is 0-based.
type PageWindow struct {
	Page   int
	Offset int
	Limit  int
}

// ToInternalPage converts a caller page into a 0-based page index.
// Pages below 1 are clamped to the first page.
func ToInternalPage(callerPage int) int {
	return max(callerPage, 1) - 1
}

// Normalize checks the request against maxSize and returns it with the
// sort defaults applied and the sort values in canonical form. A maxSize of
// 0 disables the upper bound.
func (r PageRequest) Normalize(maxSize int) (PageRequest, error) {
	if r.Size < 1 {
		return PageRequest{}, errors.NewAppError(errors.InvalidPage, "page size must be at least 1")
	}
	if maxSize > 0 && r.Size > maxSize {
		return PageRequest{}, errors.NewAppErrorf(errors.InvalidPage, "page size cannot exceed %d", maxSize)
	}
	// (page+1)*size must fit in an int so the window offset never wraps.
	if ToInternalPage(r.Page) > math.MaxInt/r.Size-1 {
		return PageRequest{}, errors.NewAppErrorf(errors.InvalidPage, "page %d is out of range", r.Page)
	}

	sortBy, err := ParseSortField(string(r.SortBy))
	if err != nil {
		return PageRequest{}, err
	}
	direction, err := ParseSortDirection(string(r.Direction))
	if err != nil {
		return PageRequest{}, err
	}

	r.SortBy = sortBy
	r.Direction = direction
	return r, nil
}

func (r PageRequest) Window() PageWindow {
	page := ToInternalPage(r.Page)
	return PageWindow{
		Page:   page,
		Offset: page * r.Size,
		Limit:  r.Size,
	}
}

// Pagination describes a returned page to the caller.
type Pagination struct {
	TotalElements int64 `json:"totalElements"`
	CurrentPage   int   `json:"currentPage"`
	PageSize      int   `json:"pageSize"`
	TotalPages    int   `json:"totalPages"`
}

// NewPagination builds the caller facing descriptor. pageSize is the size
// the query ran with, not the number of items on the page.
func NewPagination(totalElements int64, pageSize int, internalPage int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((totalElements + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{
		TotalElements: totalElements,
		CurrentPage:   internalPage + 1,
		PageSize:      pageSize,
		TotalPages:    totalPages,
	}
}

type PagedResponse[T any] struct {
	Items      T          `json:"items"`
	Pagination Pagination `json:"pagination"`
}
