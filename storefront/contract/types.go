package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ToolName string

const (
	ToolSearch    ToolName = "search"
	ToolViewCart  ToolName = "viewCart"
	ToolAddToCart ToolName = "addToCart"
)

// ToolRequest is one of SearchRequest, ViewCartRequest or AddToCartRequest.
type ToolRequest interface {
	Tool() ToolName
	isToolRequest()
}

type SearchRequest struct {
	Query string `json:"query"`
}

type ViewCartRequest struct{}

type AddToCartRequest struct {
	ProductID string       `json:"objectID"`
	Quantity  int          `json:"quantity,omitempty"`
	Item      *PreviewItem `json:"item,omitempty"`
}

// PreviewItem is the product card the agent attaches to an addToCart call.
type PreviewItem struct {
	ProductID string  `json:"objectID"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Brand     string  `json:"brand,omitempty"`
	Image     string  `json:"image,omitempty"`
}

func (SearchRequest) Tool() ToolName    { return ToolSearch }
func (ViewCartRequest) Tool() ToolName  { return ToolViewCart }
func (AddToCartRequest) Tool() ToolName { return ToolAddToCart }

func (SearchRequest) isToolRequest()    {}
func (ViewCartRequest) isToolRequest()  {}
func (AddToCartRequest) isToolRequest() {}

// DecodeToolRequest turns a raw tool input into its typed request.
func DecodeToolRequest(tool ToolName, input json.RawMessage) (ToolRequest, error) {
	raw := bytes.TrimSpace(input)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	switch tool {
	case ToolSearch:
		var req SearchRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("%w: invalid search input: %v", ErrValidation, err)
		}
		return req, nil
	case ToolViewCart:
		return ViewCartRequest{}, nil
	case ToolAddToCart:
		var req AddToCartRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("%w: invalid addToCart input: %v", ErrValidation, err)
		}
		return req, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
}

// ToolResult is the single answer the agent receives for a tool call.
type ToolResult struct {
	CallID string   `json:"toolCallId"`
	Tool   ToolName `json:"tool"`
	Result any      `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func (r ToolResult) OK() bool {
	return r.Error == ""
}

type SearchOutput struct {
	Query  string `json:"query"`
	NbHits int    `json:"nbHits"`
	Hits   []Hit  `json:"hits"`
}

type LineItem struct {
	ProductID string `json:"objectID"`
	Quantity  int    `json:"quantity"`
}

// AddToCartOutput is {status:"ok", lineItem} on success and
// {status:"error", message} on failure.
type AddToCartOutput struct {
	Status   string    `json:"status"`
	LineItem *LineItem `json:"lineItem,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// SearchQuery is the request issued to the search backend.
type SearchQuery struct {
	IndexName      string     `json:"indexName"`
	Query          string     `json:"query"`
	Filters        string     `json:"filters,omitempty"`
	FacetFilters   [][]string `json:"facetFilters,omitempty"`
	NumericFilters []string   `json:"numericFilters,omitempty"`
	HitsPerPage    int        `json:"hitsPerPage"`
	Page           int        `json:"page"`
}

type SearchResponse struct {
	Query   string `json:"query"`
	Hits    []Hit  `json:"hits"`
	NbHits  int    `json:"nbHits"`
	Page    int    `json:"page"`
	NbPages int    `json:"nbPages"`
}

type Price struct {
	Value float64 `json:"value"`
}

type Hit struct {
	ObjectID     string `json:"objectID"`
	Name         string `json:"name"`
	Brand        string `json:"brand,omitempty"`
	Price        Price  `json:"price"`
	PrimaryImage string `json:"primary_image,omitempty"`
}

type Summary struct {
	Query           string   `json:"query"`
	Summary         string   `json:"summary"`
	KeyInsights     []string `json:"keyInsights"`
	RelatedSearches []string `json:"relatedSearches"`
}
