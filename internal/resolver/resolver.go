// Package resolver locates logical rows in the id-less remote store. The
// store can reorder or insert rows between calls from other writers, so a
// resolved index is only good for the read-modify-write cycle that asked
// for it — never cache one across requests.
package resolver

import (
	"strings"
	"time"
)

// NotFound is returned when no row matches a selector.
const NotFound = -1

// FindComposite scans rows top to bottom, skipping the header row, for
// the first row whose two key cells equal the selector pair. The returned
// index is zero-based into rows; callers add one for the store's one-based
// row addressing.
func FindComposite(rows [][]string, colA int, valA string, colB int, valB string) int {
	for i := 1; i < len(rows); i++ {
		if cell(rows[i], colA) == valA && cell(rows[i], colB) == valB {
			return i
		}
	}
	return NotFound
}

// Matcher is one timestamp matching strategy. Tiers are pure so they can
// be unit-tested without the store.
type Matcher func(selector, stored string) bool

// timestampTiers is the ordered fallback chain. The first tier that
// produces any match wins for the whole range, even if a later tier
// would have matched a different row.
var timestampTiers = []Matcher{
	MatchExact,
	MatchInstant,
	MatchSubstring,
}

// FindTimestamp resolves a row by its stored timestamp cell using the
// tiered strategy. Returns NotFound when no tier matches any row.
func FindTimestamp(rows [][]string, col int, selector string) int {
	for _, match := range timestampTiers {
		for i := 1; i < len(rows); i++ {
			stored := cell(rows[i], col)
			if stored == "" {
				continue
			}
			if match(selector, stored) {
				return i
			}
		}
	}
	return NotFound
}

// MatchExact is tier one: byte-for-byte equality.
func MatchExact(selector, stored string) bool {
	return selector == stored
}

// MatchInstant is tier two: both values parse as a date/time and name the
// same instant. This absorbs the store's own normalization, e.g. a
// trailing ".000Z" dropped or a locale-formatted rewrite.
func MatchInstant(selector, stored string) bool {
	a, okA := parseLoose(selector)
	b, okB := parseLoose(stored)
	return okA && okB && a.Equal(b)
}

// MatchSubstring is tier three, the last resort for truncated or
// reformatted values: containment in either direction.
func MatchSubstring(selector, stored string) bool {
	return strings.Contains(selector, stored) || strings.Contains(stored, selector)
}

// looseLayouts covers the formats observed in store cells: RFC3339 with
// and without fractional seconds, and the store's own date-time rewrite.
var looseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

func parseLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
