package route

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	keyQuery      = "q"
	keyPage       = "page"
	keyCategories = "categories"
	keyPrice      = "price"
)

// Values serialises r as URL query parameters with repeated keys for sequences.
func Values(r RouteState) url.Values {
	v := url.Values{}
	if r.Q != "" {
		v.Set(keyQuery, r.Q)
	}
	if r.Page > 0 {
		v.Set(keyPage, strconv.Itoa(r.Page))
	}
	for _, f := range refinementFields {
		for _, s := range *f.get(&r) {
			if strings.TrimSpace(s) != "" {
				v.Add(f.key, s)
			}
		}
	}
	for _, s := range r.Categories {
		v.Add(keyCategories, s)
	}
	if r.Price != "" {
		v.Set(keyPrice, r.Price)
	}
	return v
}

// FromValues reads a route from query parameters. Sequences accept both
// repeated keys (brand=a&brand=b) and indexed keys (brand[0]=a&brand[1]=b).
func FromValues(v url.Values) RouteState {
	var r RouteState
	r.Q = strings.TrimSpace(v.Get(keyQuery))
	if r.Q != "" {
		r.Q = v.Get(keyQuery)
	}
	if p, err := strconv.Atoi(strings.TrimSpace(v.Get(keyPage))); err == nil && p > 0 {
		r.Page = p
	}
	for _, f := range refinementFields {
		*f.get(&r) = collect(v, f.key)
	}
	r.Categories = collect(v, keyCategories)
	r.Price = strings.TrimSpace(v.Get(keyPrice))
	return r
}

// Parse reads a raw query string, with or without the leading '?'.
func Parse(rawQuery string) (RouteState, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return RouteState{}, err
	}
	return FromValues(v), nil
}

// String renders r as an encoded query string.
func (r RouteState) String() string {
	return Values(r).Encode()
}

type indexedValue struct {
	index int
	value string
}

func collect(v url.Values, key string) []string {
	var out []string
	for _, s := range v[key] {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	for _, s := range v[key+"[]"] {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}

	var indexed []indexedValue
	prefix := key + "["
	for k, values := range v {
		if !strings.HasPrefix(k, prefix) || !strings.HasSuffix(k, "]") {
			continue
		}
		idx, err := strconv.Atoi(k[len(prefix) : len(k)-1])
		if err != nil || idx < 0 {
			continue
		}
		for _, s := range values {
			if strings.TrimSpace(s) != "" {
				indexed = append(indexed, indexedValue{index: idx, value: s})
			}
		}
	}
	slices.SortStableFunc(indexed, func(a, b indexedValue) int { return a.index - b.index })
	for _, iv := range indexed {
		out = append(out, iv.value)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
