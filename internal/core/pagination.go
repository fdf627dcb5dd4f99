// AngelaMos | 2026
// pagination.go

package core

import (
	"net/http"
	"strconv"
)

// PageSize is fixed for every list endpoint.
const PageSize = 20

func ParsePage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Paginate slices items for page. Pages past the end come back empty.
func Paginate[T any](items []T, page int) []T {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * PageSize
	if start >= len(items) {
		return []T{}
	}
	end := min(start+PageSize, len(items))
	return items[start:end]
}

// WritePage paginates a fully loaded list and writes it.
func WritePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page := ParsePage(r)
	Paginated(w, Paginate(items, page), page, PageSize, len(items))
}
