package summary

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

//go:embed template/summary.txt
var systemPromptRaw string

const DefaultTopHits = 5

// SystemPrompt is the instruction sent ahead of every LLM summary request.
func SystemPrompt() string {
	return strings.TrimSpace(systemPromptRaw)
}

// BuildPrompt renders the user turn for query and its top hits.
func BuildPrompt(query string, hits []contract.Hit, topHits int) string {
	if topHits <= 0 {
		topHits = DefaultTopHits
	}
	if len(hits) > topHits {
		hits = hits[:topHits]
	}
	raw, err := json.Marshal(hits)
	if err != nil {
		raw = []byte("[]")
	}
	return fmt.Sprintf("Generate a search summary for the query: %q. Here are the top results: %s", query, raw)
}
