package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const pageSize = 24

func pageFromRequest(r *http.Request) int {
	page, err := strconv.Atoi(mux.Vars(r)["page"])
	if err != nil || page < 1 {
		return 1
	}

	return page
}

// pageOffset and pageLimit are used with sb.OffsetLimit. The limit is one row
// past the page boundary so handlers can tell whether a next page exists
// without a separate count query.
func pageOffset(page int) string {
	return strconv.Itoa((page - 1) * pageSize)
}

func pageLimit() string {
	return strconv.Itoa(pageSize + 1)
}

type pagination struct {
	BasePath string
	Page     int
	PrevPage int
	NextPage int
	HasPrev  bool
	HasNext  bool
}

func paginate(basePath string, page, fetched int) pagination {
	return pagination{
		BasePath: basePath,
		Page:     page,
		PrevPage: page - 1,
		NextPage: page + 1,
		HasPrev:  page > 1,
		HasNext:  fetched > pageSize,
	}
}
