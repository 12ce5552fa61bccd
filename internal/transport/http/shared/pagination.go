package shared

import (
	"net/http"
	"strconv"
)

const TotalCountHeader = "X-Total-Count"

type Page struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset, falling back to defaultLimit and
// zero for missing or malformed values. A positive maxLimit caps the limit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Page {
	page := Page{Limit: defaultLimit}
	if v, ok := QueryInt(r, "limit", defaultLimit); ok && v > 0 {
		page.Limit = v
	}
	if v, ok := QueryInt(r, "offset", 0); ok && v >= 0 {
		page.Offset = v
	}
	if maxLimit > 0 && page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	return page
}

func SetTotalCount(w http.ResponseWriter, total int) {
	w.Header().Set(TotalCountHeader, strconv.Itoa(total))
}
