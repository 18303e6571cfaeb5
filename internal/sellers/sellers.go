// Package sellers implements the seller alias table and seller-filter matching.
// Matching is always exact on normalized names after alias expansion; substring
// matching would conflate distinct sellers with overlapping names.
package sellers

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"

	"promowatch/internal/textnorm"
)

// Table maps a normalized seller name to the set of normalized names treated
// as equivalent to it. Loaded once at startup and shared read-only.
type Table map[string][]string

// Load reads an alias table from a JSON file mapping a seller name to either a
// single alias or a list of aliases. A missing file yields an empty table; a
// malformed file is an error.
func Load(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Table{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return Table{}, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	table := Table{}
	for key, val := range entries {
		keyNorm := textnorm.Normalize(key)
		if keyNorm == "" {
			continue
		}
		var list []string
		if err := json.Unmarshal(val, &list); err != nil {
			var single string
			if err := json.Unmarshal(val, &single); err != nil {
				continue
			}
			list = []string{single}
		}
		var vals []string
		seen := map[string]struct{}{}
		for _, v := range list {
			norm := textnorm.Normalize(v)
			if norm == "" {
				continue
			}
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			vals = append(vals, norm)
		}
		if len(vals) > 0 {
			table[keyNorm] = vals
		}
	}
	return table, nil
}

// Expand returns values unioned with every alias registered for each value.
// Input values must already be normalized.
func (t Table) Expand(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	add := func(v string) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range values {
		add(v)
	}
	for _, v := range values {
		for _, alias := range t[v] {
			add(alias)
		}
	}
	return out
}

var filterSep = regexp.MustCompile(`[,\n;]+`)

// SplitFilter splits a raw seller-filter string on commas, semicolons and
// newlines into normalized non-empty parts.
func SplitFilter(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range filterSep.Split(value, -1) {
		if norm := textnorm.Normalize(strings.TrimSpace(part)); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// Matches reports whether a page's seller passes the filter. An empty filter
// passes everything; an unknown seller passes nothing. Comparison is exact on
// normalized names after alias expansion.
func (t Table) Matches(filter, sellerName string) bool {
	values := t.Expand(SplitFilter(filter))
	if len(values) == 0 {
		return true
	}
	if sellerName == "" {
		return false
	}
	sellerNorm := textnorm.Normalize(sellerName)
	for _, v := range values {
		if sellerNorm == v {
			return true
		}
	}
	return false
}
