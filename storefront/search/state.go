package search

import (
	"slices"
	"strings"
)

const (
	AttrBrand  = "brand"
	AttrSize   = "available_sizes"
	AttrColor  = "color.original_name"
	AttrGender = "gender"
	AttrRating = "rating"

	AttrPrice        = "price.value"
	AttrCategoryPage = "categoryPageId"

	CategorySeparator = " > "
	MaxCategoryDepth  = 3

	// MaxPage is the highest 0-based page the backend paginates to.
	MaxPage = 999
)

// CategoryLevels are the hierarchical facet attributes, shallowest first.
var CategoryLevels = [MaxCategoryDepth]string{
	"hierarchical_categories.lvl0",
	"hierarchical_categories.lvl1",
	"hierarchical_categories.lvl2",
}

// RefinableAttributes lists the refinement lists a shopper can toggle, in facet order.
var RefinableAttributes = []string{AttrBrand, AttrSize, AttrColor, AttrGender, AttrRating}

func IsRefinable(attr string) bool {
	return slices.Contains(RefinableAttributes, attr)
}

type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func (r *PriceRange) IsEmpty() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

func (r *PriceRange) clone() *PriceRange {
	if r.IsEmpty() {
		return nil
	}
	out := &PriceRange{}
	if r.Min != nil {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		out.Max = &v
	}
	return out
}

// State is the faceted search state of one storefront session.
//
// HierarchicalMenu is keyed by category level attribute. Only one level is
// ever populated by the store; CategoryPath reads the deepest one.
type State struct {
	Query            string              `json:"query,omitempty"`
	HierarchicalMenu map[string][]string `json:"hierarchicalMenu,omitempty"`
	Refinements      map[string][]string `json:"refinements,omitempty"`
	Price            *PriceRange         `json:"price,omitempty"`
	Page             int                 `json:"page,omitempty"`
}

// CategoryPath returns the selection of the deepest populated hierarchy level.
func (s State) CategoryPath() []string {
	for i := len(CategoryLevels) - 1; i >= 0; i-- {
		if path := s.HierarchicalMenu[CategoryLevels[i]]; len(path) > 0 {
			return slices.Clone(path)
		}
	}
	return nil
}

func (s State) Clone() State {
	out := State{
		Query: s.Query,
		Price: s.Price.clone(),
		Page:  s.Page,
	}
	if len(s.HierarchicalMenu) > 0 {
		out.HierarchicalMenu = make(map[string][]string, len(s.HierarchicalMenu))
		for k, v := range s.HierarchicalMenu {
			out.HierarchicalMenu[k] = slices.Clone(v)
		}
	}
	if len(s.Refinements) > 0 {
		out.Refinements = make(map[string][]string, len(s.Refinements))
		for k, v := range s.Refinements {
			out.Refinements[k] = slices.Clone(v)
		}
	}
	return out
}

// NormalizeValues trims, drops blanks, dedupes and sorts a refinement value set.
// It returns nil for an empty set.
func NormalizeValues(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// NormalizeCategoryPath trims every segment. It reports false when the path
// has a blank segment or is deeper than the hierarchy.
func NormalizeCategoryPath(path []string) ([]string, bool) {
	if len(path) == 0 {
		return nil, true
	}
	if len(path) > MaxCategoryDepth {
		return nil, false
	}
	out := make([]string, 0, len(path))
	for _, seg := range path {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, false
		}
		out = append(out, seg)
	}
	return out, true
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
