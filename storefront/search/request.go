package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

const DefaultHitsPerPage = 12

type RequestConfig struct {
	IndexName   string
	HitsPerPage int
}

// BuildRequest projects the state and category page scope onto a backend query.
// Values of one attribute are ORed; attributes are ANDed.
func BuildRequest(st State, scope string, cfg RequestConfig) contract.SearchQuery {
	hitsPerPage := cfg.HitsPerPage
	if hitsPerPage <= 0 {
		hitsPerPage = DefaultHitsPerPage
	}

	q := contract.SearchQuery{
		IndexName:   cfg.IndexName,
		Query:       st.Query,
		Filters:     CategoryPageFilter(scope),
		HitsPerPage: hitsPerPage,
		Page:        st.Page,
	}

	if path := st.CategoryPath(); len(path) > 0 {
		level := CategoryLevels[len(path)-1]
		q.FacetFilters = append(q.FacetFilters, []string{level + ":" + strings.Join(path, CategorySeparator)})
	}
	for _, attr := range RefinableAttributes {
		values := st.Refinements[attr]
		if len(values) == 0 {
			continue
		}
		group := make([]string, 0, len(values))
		for _, v := range values {
			group = append(group, attr+":"+v)
		}
		q.FacetFilters = append(q.FacetFilters, group)
	}

	if !st.Price.IsEmpty() {
		if st.Price.Min != nil {
			q.NumericFilters = append(q.NumericFilters, AttrPrice+">="+formatNumber(*st.Price.Min))
		}
		if st.Price.Max != nil {
			q.NumericFilters = append(q.NumericFilters, AttrPrice+"<="+formatNumber(*st.Price.Max))
		}
	}
	return q
}

// CategoryPageFilter builds the backend filter for a category page route
// parameter, e.g. `categoryPageId:"Women > Shoes"`.
func CategoryPageFilter(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return FilterEquals(AttrCategoryPage, decoded)
}

// FilterEquals quotes value for a backend equality filter.
func FilterEquals(attr, value string) string {
	return attr + `:"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
