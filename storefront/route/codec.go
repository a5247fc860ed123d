// Package route maps search state to and from the flat, shareable URL form.
package route

import (
	"strings"

	"github.com/tanpawarit/atelier-storefront/storefront/search"
)

// RouteState is the URL projection of search.State. Empty fields are always
// omitted, never encoded as blank strings or empty sequences.
type RouteState struct {
	Q          string   `json:"q,omitempty"`
	Page       int      `json:"page,omitempty"`
	Brand      []string `json:"brand,omitempty"`
	Size       []string `json:"size,omitempty"`
	Color      []string `json:"color,omitempty"`
	Gender     []string `json:"gender,omitempty"`
	Rating     []string `json:"rating,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Price      string   `json:"price,omitempty"`
}

type refinementField struct {
	key  string
	attr string
	get  func(r *RouteState) *[]string
}

var refinementFields = []refinementField{
	{key: "brand", attr: search.AttrBrand, get: func(r *RouteState) *[]string { return &r.Brand }},
	{key: "size", attr: search.AttrSize, get: func(r *RouteState) *[]string { return &r.Size }},
	{key: "color", attr: search.AttrColor, get: func(r *RouteState) *[]string { return &r.Color }},
	{key: "gender", attr: search.AttrGender, get: func(r *RouteState) *[]string { return &r.Gender }},
	{key: "rating", attr: search.AttrRating, get: func(r *RouteState) *[]string { return &r.Rating }},
}

// Encode projects st onto its route form. The category hierarchy collapses to
// the deepest populated level.
func Encode(st search.State) RouteState {
	var r RouteState
	if strings.TrimSpace(st.Query) != "" {
		r.Q = st.Query
	}
	if st.Page > 0 && st.Page <= search.MaxPage {
		r.Page = st.Page + 1
	}
	for _, f := range refinementFields {
		*f.get(&r) = search.NormalizeValues(st.Refinements[f.attr])
	}
	if path, ok := search.NormalizeCategoryPath(st.CategoryPath()); ok && len(path) > 0 {
		r.Categories = path
	}
	r.Price = FormatPrice(st.Price)
	return r
}

// Decode rebuilds search state from r. Blank or invalid fields are dropped and
// never produce empty collections.
func Decode(r RouteState) search.State {
	var st search.State
	if strings.TrimSpace(r.Q) != "" {
		st.Query = r.Q
	}
	if r.Page > 1 && r.Page-1 <= search.MaxPage {
		st.Page = r.Page - 1
	}
	for _, f := range refinementFields {
		values := search.NormalizeValues(*f.get(&r))
		if len(values) == 0 {
			continue
		}
		if st.Refinements == nil {
			st.Refinements = make(map[string][]string, len(refinementFields))
		}
		st.Refinements[f.attr] = values
	}
	if path, ok := search.NormalizeCategoryPath(r.Categories); ok && len(path) > 0 {
		st.HierarchicalMenu = map[string][]string{search.CategoryLevels[0]: path}
	}
	if pr, ok := ParsePrice(r.Price); ok {
		st.Price = pr
	}
	return st
}

// IsZero reports whether r carries no field at all.
func (r RouteState) IsZero() bool {
	if r.Q != "" || r.Page != 0 || r.Price != "" || len(r.Categories) > 0 {
		return false
	}
	for _, f := range refinementFields {
		if len(*f.get(&r)) > 0 {
			return false
		}
	}
	return true
}
