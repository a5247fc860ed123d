package summary

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

type payload struct {
	Summary         string   `json:"summary"`
	KeyInsights     []string `json:"keyInsights"`
	RelatedSearches []string `json:"relatedSearches"`
}

// Parse reads a summary from agent content. Structured JSON is preferred;
// anything that is not JSON is used verbatim as a plain-text summary.
func Parse(content, query string) (contract.Summary, error) {
	text := stripFences(content)
	if text == "" {
		return contract.Summary{}, fmt.Errorf("%w: empty summary content", contract.ErrUpstream)
	}

	if !json.Valid([]byte(text)) {
		return contract.Summary{
			Query:           query,
			Summary:         text,
			KeyInsights:     []string{},
			RelatedSearches: []string{},
		}, nil
	}

	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return contract.Summary{}, fmt.Errorf("%w: unexpected summary format: %v", contract.ErrUpstream, err)
	}
	p.Summary = strings.TrimSpace(p.Summary)
	p.KeyInsights = compact(p.KeyInsights)
	p.RelatedSearches = compact(p.RelatedSearches)
	if p.Summary == "" && len(p.KeyInsights) == 0 && len(p.RelatedSearches) == 0 {
		return contract.Summary{}, fmt.Errorf("%w: summary has no known fields", contract.ErrUpstream)
	}

	return contract.Summary{
		Query:           query,
		Summary:         p.Summary,
		KeyInsights:     p.KeyInsights,
		RelatedSearches: p.RelatedSearches,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
