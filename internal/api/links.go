package api

import (
	"net/http"
	"net/url"
	"strconv"

	"tabular-gateway/internal/config"
)

// buildLinks computes the pagination link pair: next is emitted iff
// (page*page_size) < total, or when total is unknown and the page
// came back full; prev is emitted iff page > 1. Both are absolute
// URLs with every original query parameter preserved except page.
func buildLinks(r *http.Request, cfg config.HTTPConfig, page, pageSize int, total *int, rowsReturned int) (next, prev string) {
	base := cfg.Scheme + "://" + cfg.ServerName + r.URL.Path

	if page > 1 {
		prev = withPage(base, r.URL.Query(), page-1)
	}

	hasNext := false
	if total != nil {
		hasNext = page*pageSize < *total
	} else {
		hasNext = rowsReturned >= pageSize
	}
	if hasNext {
		next = withPage(base, r.URL.Query(), page+1)
	}

	return next, prev
}

func withPage(base string, values url.Values, page int) string {
	q := url.Values{}
	for k, v := range values {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(page))
	return base + "?" + q.Encode()
}
