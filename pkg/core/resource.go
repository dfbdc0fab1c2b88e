package core

import (
	"math"
	"time"
)

// Resource is a single entry of the directory. Search only ever returns
// resources whose Approved flag is set.
type Resource struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Address          string    `json:"address"`
	CategoryID       int64     `json:"categoryId"`
	ServicesOffered  []string  `json:"servicesOffered"`
	PopulationServed []string  `json:"populationServed"`
	Approved         bool      `json:"approved"`
	Phone            string    `json:"phone,omitempty"`
	Website          string    `json:"website,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Category groups resources. Users filter by Name, storage joins by ID.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ResultPage is one page of a search together with the exact number of
// matching rows across all pages.
type ResultPage struct {
	Items      []Resource `json:"resources"`
	TotalCount int        `json:"totalCount"`
	Page       int        `json:"page"`
	PageSize   int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// NewResultPage builds a page and derives TotalPages. A nil items slice is
// replaced by an empty one so that JSON output carries [] instead of null.
func NewResultPage(items []Resource, totalCount, page, pageSize int) *ResultPage {
	if items == nil {
		items = []Resource{}
	}
	return &ResultPage{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(totalCount, pageSize),
	}
}

// EmptyResultPage is the page returned when nothing can match.
func EmptyResultPage(page, pageSize int) *ResultPage {
	return NewResultPage(nil, 0, page, pageSize)
}

// TotalPages returns ceil(total/pageSize), or 0 when either is not positive.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Offset returns the number of rows skipped before the given 1-based page.
// It saturates at math.MaxInt instead of overflowing, so an absurd page is
// simply past the end.
func Offset(page, pageSize int) int {
	if page < 1 || pageSize < 1 {
		return 0
	}
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}
