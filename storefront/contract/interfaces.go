package contract

import "context"

// SearchBackend runs one query against the hosted search index.
type SearchBackend interface {
	Search(ctx context.Context, q SearchQuery) (SearchResponse, error)
}

// ProductCatalog resolves a single product by its identifier.
// Implementations return ErrNotFound when the id does not resolve.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (Hit, error)
}

// Summarizer produces a narrative overview of a settled result set.
type Summarizer interface {
	Summarize(ctx context.Context, query string, hits []Hit) (Summary, error)
}

// ResultSink receives settled tool results. Deliver must not block on the network.
type ResultSink interface {
	Deliver(ctx context.Context, result ToolResult) error
}
