// Package paging parses optional newest-first list windows. Cursors are ULIDs,
// which sort by creation time. A zero Page selects the whole list.
package paging

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"kite/cmd/identity/ids"
)

// MaxLimit caps an explicit ?limit=.
const MaxLimit = 200

// ErrInvalid is returned for a malformed limit or cursor.
var ErrInvalid = errors.New("invalid paging parameters")

// Page selects items with id strictly below Before (when set), at most Limit
// of them when Limit > 0.
type Page struct {
	Limit  int
	Before string
}

// Normalize drops negative limits and clamps explicit ones to MaxLimit.
func (p Page) Normalize() Page {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Admits reports whether id falls inside the cursor window.
func (p Page) Admits(id string) bool {
	return p.Before == "" || id < p.Before
}

// SQLLimit is the LIMIT argument for p. NULL means no limit in Postgres.
func (p Page) SQLLimit() any {
	if p.Limit <= 0 {
		return nil
	}
	return p.Limit
}

// Cut trims items, already sorted newest first, to p's limit.
func Cut[T any](items []T, p Page) []T {
	if p.Limit > 0 && len(items) > p.Limit {
		return items[:p.Limit]
	}
	return items
}

// FromRequest reads ?limit= and ?before= from r. Both are optional.
func FromRequest(r *http.Request) (Page, error) {
	q := r.URL.Query()
	var p Page

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Page{}, ErrInvalid
		}
		p.Limit = n
	}
	if v := strings.TrimSpace(q.Get("before")); v != "" {
		if !ids.Valid(v) {
			return Page{}, ErrInvalid
		}
		p.Before = v
	}
	return p.Normalize(), nil
}
