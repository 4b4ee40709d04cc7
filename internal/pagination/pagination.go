// Package pagination computes page controls and the "Mostrando a de" summary
// shown under every list screen.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	PageParam  = "pagina"
	LimitParam = "limite"
)

// Page is one page of a list of Total elements, Limit per page. Page is 1-based.
type Page struct {
	Page  int
	Limit int
	Total int
}

// New normalises page and limit: page below 1 becomes 1, limit outside
// [1, MaxLimit] becomes DefaultLimit or MaxLimit.
func New(page, limit, total int) Page {
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page < 1 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	return Page{Page: page, Limit: limit, Total: total}
}

// FromQuery reads pagina and limite from q. Malformed values fall back to the defaults.
func FromQuery(q url.Values) Page {
	page, _ := strconv.Atoi(q.Get(PageParam))
	limit, _ := strconv.Atoi(q.Get(LimitParam))
	return New(page, limit, 0)
}

// WithTotal returns p with the total set, as reported by the list endpoint.
func (p Page) WithTotal(total int) Page {
	return New(p.Page, p.Limit, total)
}

// Pages returns the number of pages; an empty list has zero pages.
func (p Page) Pages() int {
	if p.Total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// From is the 1-based index of the first element on the page, 0 when empty.
func (p Page) From() int {
	if p.Total == 0 {
		return 0
	}
	from := (p.Page-1)*p.Limit + 1
	if from > p.Total {
		return 0
	}
	return from
}

// To is the 1-based index of the last element on the page, 0 when empty.
func (p Page) To() int {
	if p.From() == 0 {
		return 0
	}
	return min(p.Page*p.Limit, p.Total)
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.Page < p.Pages() }

// Control is one numbered page link.
type Control struct {
	Number  int
	Current bool
}

// Controls returns one control per page.
func (p Page) Controls() []Control {
	n := p.Pages()
	out := make([]Control, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Control{Number: i, Current: i == p.Page})
	}
	return out
}

// Summary is the Spanish footer text, e.g. "Mostrando 1 a 10 de 47 elementos".
func (p Page) Summary() string {
	return fmt.Sprintf("Mostrando %d a %d de %d elementos", p.From(), p.To(), p.Total)
}

// Query returns q with pagina set to page and limite to p.Limit, for building
// page links that keep the current filters.
func (p Page) Query(q url.Values, page int) string {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	out.Set(PageParam, strconv.Itoa(page))
	out.Set(LimitParam, strconv.Itoa(p.Limit))
	return out.Encode()
}
