package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

func TestCategoryPageFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Women > Shoes", want: `categoryPageId:"Women > Shoes"`},
		{raw: `Women > "Formal"`, want: `categoryPageId:"Women > \"Formal\""`},
		{raw: "Women%20%3E%20Bags", want: `categoryPageId:"Women > Bags"`},
		{raw: "  ", want: ""},
	}

	for _, tt := range tests {
		if got := CategoryPageFilter(tt.raw); got != tt.want {
			t.Fatalf("CategoryPageFilter(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	st := State{
		Query: "sneakers",
		Page:  1,
		HierarchicalMenu: map[string][]string{
			CategoryLevels[0]: {"Women", "Shoes"},
		},
		Refinements: map[string][]string{
			AttrColor: {"Black", "White"},
			AttrBrand: {"Acme"},
		},
		Price: &PriceRange{Min: fptr(20), Max: fptr(120.5)},
	}

	got := BuildRequest(st, "Women > Shoes", RequestConfig{IndexName: "products"})
	want := contract.SearchQuery{
		IndexName: "products",
		Query:     "sneakers",
		Filters:   `categoryPageId:"Women > Shoes"`,
		FacetFilters: [][]string{
			{"hierarchical_categories.lvl1:Women > Shoes"},
			{"brand:Acme"},
			{"color.original_name:Black", "color.original_name:White"},
		},
		NumericFilters: []string{"price.value>=20", "price.value<=120.5"},
		HitsPerPage:    DefaultHitsPerPage,
		Page:           1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}
}

func TestBuildRequestEmptyState(t *testing.T) {
	t.Parallel()

	got := BuildRequest(State{}, "", RequestConfig{IndexName: "products", HitsPerPage: 24})
	want := contract.SearchQuery{IndexName: "products", HitsPerPage: 24}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}
}
