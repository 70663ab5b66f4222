package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/elimu-cd/elimu/core"
)

var (
	orderingParam = "ordering"
	pageParam     = "page"
	pageSizeParam = "page_size"

	defaultPageSize = 20
	maxPageSize     = 100
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type Pagination struct {
	core.Pagination
}

func (pg *Pagination) Bind(ctx echo.Context) {
	pg.Page = 1
	pg.Size = defaultPageSize

	if val := ctx.QueryParam(pageParam); val != "" {
		if page, err := strconv.Atoi(val); err == nil && page > 0 {
			pg.Page = page
		}
	}
	if val := ctx.QueryParam(pageSizeParam); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			if size > maxPageSize {
				size = maxPageSize
			}
			pg.Size = size
		}
	}
}

// window clips the slice bounds of the page pg covers, for handlers whose
// repositories return the full result set.
func (pg Pagination) window(n int) (lo, hi int) {
	lo = (pg.Page - 1) * pg.Size
	if lo > n {
		lo = n
	}
	if hi = lo + pg.Size; hi > n {
		hi = n
	}
	return lo, hi
}

// PaginatedResponse is the envelope returned by every list endpoint.
type PaginatedResponse struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// paginated builds the list envelope, deriving next/previous page links from
// the request URL.
func paginated(ctx echo.Context, count int, pg Pagination, results interface{}) PaginatedResponse {
	res := PaginatedResponse{Count: count, Results: results}

	if pg.Page*pg.Size < count {
		res.Next = pageURL(ctx, pg.Page+1)
	}
	if pg.Page > 1 {
		res.Previous = pageURL(ctx, pg.Page-1)
	}
	return res
}

func pageURL(ctx echo.Context, page int) *string {
	u := *ctx.Request().URL
	q := u.Query()
	q.Set(pageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}
