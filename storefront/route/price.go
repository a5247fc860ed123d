package route

import (
	"math"
	"strconv"
	"strings"

	"github.com/tanpawarit/atelier-storefront/storefront/search"
)

const priceSeparator = ":"

// FormatPrice renders a range as "min:max"; either bound may be absent.
func FormatPrice(r *search.PriceRange) string {
	if r.IsEmpty() {
		return ""
	}
	var lo, hi string
	if r.Min != nil {
		lo = strconv.FormatFloat(*r.Min, 'f', -1, 64)
	}
	if r.Max != nil {
		hi = strconv.FormatFloat(*r.Max, 'f', -1, 64)
	}
	return lo + priceSeparator + hi
}

// ParsePrice reads a "min:max" token. It reports false for blank, malformed
// or inverted ranges.
func ParsePrice(token string) (*search.PriceRange, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}
	lo, hi, found := strings.Cut(token, priceSeparator)
	if !found || strings.Contains(hi, priceSeparator) {
		return nil, false
	}

	var out search.PriceRange
	var ok bool
	if out.Min, ok = parseBound(lo); !ok {
		return nil, false
	}
	if out.Max, ok = parseBound(hi); !ok {
		return nil, false
	}
	if out.IsEmpty() {
		return nil, false
	}
	if out.Min != nil && out.Max != nil && *out.Min > *out.Max {
		return nil, false
	}
	return &out, true
}

func parseBound(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}
