// Package ozon is the marketplace adapter: product-URL handling plus the
// browsing session that implements the page-inspector contract. Everything
// site-specific (URL shapes, selectors, in-page scripts) lives here.
package ozon

import (
	"net/url"
	"strconv"
	"strings"
)

const baseURL = "https://www.ozon.ru"

// BuildSearchURL builds the paginated search-results URL for a query.
func BuildSearchURL(query string, page int) string {
	v := url.Values{}
	v.Set("text", query)
	v.Set("page", strconv.Itoa(page))
	return baseURL + "/search/?" + v.Encode()
}

// NormalizeProductURL reduces a discovered link to its canonical absolute form:
// relative paths resolved against the marketplace host, query string and
// trailing slashes stripped. Returns false for links that are not product
// detail pages. The normalized form is the deduplication key.
func NormalizeProductURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "/product/") {
		return "", false
	}
	if strings.HasPrefix(raw, "/") {
		raw = baseURL + raw
	}
	if !strings.Contains(raw, "ozon.ru") {
		return "", false
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(raw, "/"), true
}

// IsProductURL reports whether a caller-supplied URL points at a product
// detail page on the marketplace.
func IsProductURL(raw string) bool {
	return strings.Contains(raw, "ozon.ru/product/")
}
