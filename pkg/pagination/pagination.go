// Package pagination reads limit/offset query parameters and shapes list
// responses.
package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a window over a list.
type Params struct {
	Limit  int
	Offset int
}

func positive(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FromContext reads limit and offset. A page parameter (1-based) is accepted
// in place of offset. Bad values fall back to the defaults.
func FromContext(c echo.Context) Params {
	p := Params{Limit: positive(c, "limit"), Offset: positive(c, "offset")}
	switch {
	case p.Limit == 0:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	if page := positive(c, "page"); page > 0 && c.QueryParam("offset") == "" {
		p.Offset = (page - 1) * p.Limit
	}
	return p
}

// Bounds clamps the window to a list of n items, for slicing.
func (p Params) Bounds(n int) (lo, hi int) {
	lo = min(p.Offset, n)
	hi = min(lo+p.Limit, n)
	return lo, hi
}

// Response is the envelope for list endpoints.
type Response struct {
	Data    any    `json:"data"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"hasMore"`
	Next    string `json:"next,omitempty"`
}

func NewResponse(data any, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// WithNext links the following page. Other query parameters on u, such as
// filters, are carried over; page is replaced by offset.
func (r *Response) WithNext(u *url.URL) *Response {
	if !r.HasMore {
		return r
	}
	q := u.Query()
	q.Del("page")
	q.Set("limit", strconv.Itoa(r.Limit))
	q.Set("offset", strconv.Itoa(r.Offset+r.Limit))
	r.Next = u.Path + "?" + q.Encode()
	return r
}
