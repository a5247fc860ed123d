package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/atelier-storefront/pkg/metrics"
	"github.com/tanpawarit/atelier-storefront/storefront/cart"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/search"
)

const (
	DefaultResultLimit   = 5
	DefaultSettleTimeout = 15 * time.Second
)

var errSearchTimeout = errors.New("search did not settle in time")

type BridgeConfig struct {
	// ResultLimit caps the hits returned to the agent for a search call.
	ResultLimit   int
	SettleTimeout time.Duration
}

// callEntry tracks a call until it settles. Settled calls keep only their
// terminal state in Bridge.settled.
type callEntry struct {
	tool   contract.ToolName
	state  CallState
	cancel func()
}

// Bridge fulfils agent tool calls. Each call id produces at most one result,
// delivered on the transition into Fulfilled or Failed.
type Bridge struct {
	search  *search.Store
	cart    *cart.Store
	catalog contract.ProductCatalog
	sink    contract.ResultSink
	cfg     BridgeConfig

	mu      sync.Mutex
	calls   map[string]*callEntry
	settled map[string]CallState
	closed  bool
}

func NewBridge(searchStore *search.Store, cartStore *cart.Store, catalog contract.ProductCatalog, sink contract.ResultSink, cfg BridgeConfig) *Bridge {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = DefaultResultLimit
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = DefaultSettleTimeout
	}
	return &Bridge{
		search:  searchStore,
		cart:    cartStore,
		catalog: catalog,
		sink:    sink,
		cfg:     cfg,
		calls:   make(map[string]*callEntry),
		settled: make(map[string]CallState),
	}
}

// Observe feeds one observation of a call into the bridge. Repeated
// observations are safe: only the first Available observation acts.
func (b *Bridge) Observe(ctx context.Context, call Call) error {
	callID := strings.TrimSpace(call.ID)
	if callID == "" {
		return fmt.Errorf("%w: toolCallId is required", contract.ErrValidation)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return contract.ErrClosed
	}
	if _, done := b.settled[callID]; done {
		b.mu.Unlock()
		return nil
	}
	entry, seen := b.calls[callID]
	if !seen {
		entry = &callEntry{tool: call.Tool, state: CallStreaming}
		b.calls[callID] = entry
	}
	if entry.state != CallStreaming {
		b.mu.Unlock()
		return nil
	}
	switch call.State {
	case CallStreaming:
		b.mu.Unlock()
		return nil
	case CallFulfilled, CallFailed:
		// Answered elsewhere; never answer again.
		delete(b.calls, callID)
		b.settled[callID] = call.State
		b.mu.Unlock()
		return nil
	case CallAvailable:
		entry.state = CallAvailable
		entry.tool = call.Tool
	default:
		b.mu.Unlock()
		return fmt.Errorf("%w: unknown tool call state", contract.ErrValidation)
	}
	b.mu.Unlock()

	log.Debug().Str("call_id", callID).Str("tool", string(call.Tool)).Msg("tool call available")

	req, err := contract.DecodeToolRequest(call.Tool, call.Input)
	if err != nil {
		b.fail(callID, err)
		return nil
	}
	b.dispatch(ctx, callID, req)
	return nil
}

// Status reports the last known state of a call.
func (b *Bridge) Status(callID string) (CallState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if entry, ok := b.calls[callID]; ok {
		return entry.state, true
	}
	state, ok := b.settled[callID]
	return state, ok
}

// Close cancels every pending call. Nothing is delivered after Close returns.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var cancels []func()
	for _, entry := range b.calls {
		if entry.cancel != nil {
			cancels = append(cancels, entry.cancel)
			entry.cancel = nil
		}
	}
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (b *Bridge) dispatch(ctx context.Context, callID string, req contract.ToolRequest) {
	switch r := req.(type) {
	case contract.SearchRequest:
		b.runSearch(callID, r)
	case contract.ViewCartRequest:
		b.fulfill(callID, b.cart.Snapshot())
	case contract.AddToCartRequest:
		out, err := b.addToCart(ctx, r)
		if err != nil {
			b.fail(callID, err)
			return
		}
		b.fulfill(callID, out)
	default:
		b.fail(callID, fmt.Errorf("%w: %s", contract.ErrUnknownTool, req.Tool()))
	}
}

func (b *Bridge) runSearch(callID string, req contract.SearchRequest) {
	query := strings.TrimSpace(req.Query)
	gen, err := b.search.SetQuery(query)
	if err != nil {
		b.fail(callID, err)
		return
	}

	unsubscribe := b.search.Subscribe(func(ev search.Event) {
		switch {
		case ev.Generation > gen:
			b.fail(callID, fmt.Errorf("search %w", contract.ErrSuperseded))
		case ev.Kind == search.EventResultsSettled && ev.Generation == gen:
			b.settleSearch(callID, query, ev.Results)
		}
	})
	timer := time.AfterFunc(b.cfg.SettleTimeout, func() {
		b.fail(callID, errSearchTimeout)
	})
	cancel := func() {
		unsubscribe()
		timer.Stop()
	}
	if !b.attachCancel(callID, cancel) {
		cancel()
		return
	}

	// Results may have settled, or a newer query landed, before Subscribe.
	res := b.search.Results()
	switch current := b.search.Generation(); {
	case current > gen:
		b.fail(callID, fmt.Errorf("search %w", contract.ErrSuperseded))
	case res.Generation == gen && res.Status != search.StatusLoading:
		b.settleSearch(callID, query, res)
	}
}

func (b *Bridge) settleSearch(callID, query string, res search.Results) {
	if res.Query != query {
		return
	}
	if res.Status == search.StatusError {
		b.fail(callID, fmt.Errorf("%w: search backend failed", contract.ErrUpstream))
		return
	}
	hits := res.Hits
	if len(hits) > b.cfg.ResultLimit {
		hits = hits[:b.cfg.ResultLimit]
	}
	out := contract.SearchOutput{
		Query:  query,
		NbHits: res.NbHits,
		Hits:   append([]contract.Hit{}, hits...),
	}
	b.fulfill(callID, out)
}

func (b *Bridge) addToCart(ctx context.Context, req contract.AddToCartRequest) (contract.AddToCartOutput, error) {
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return contract.AddToCartOutput{}, fmt.Errorf("%w: objectID is required", contract.ErrValidation)
	}
	if req.Quantity < 0 {
		return contract.AddToCartOutput{}, fmt.Errorf("%w: quantity must be >= 1", contract.ErrValidation)
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	var item cart.Item
	previewID := ""
	if req.Item != nil {
		previewID = strings.TrimSpace(req.Item.ProductID)
		if previewID != "" && previewID != productID {
			return contract.AddToCartOutput{}, fmt.Errorf("%w: item %q does not match objectID %q", contract.ErrValidation, previewID, productID)
		}
	}
	// A preview card is trusted only when it names the product being added.
	if previewID == productID {
		item = cart.ItemFromPreview(*req.Item)
	} else {
		if b.catalog == nil {
			return contract.AddToCartOutput{}, fmt.Errorf("%w: product %s", contract.ErrNotFound, productID)
		}
		hit, err := b.catalog.GetProduct(ctx, productID)
		if err != nil {
			return contract.AddToCartOutput{}, err
		}
		item = cart.ItemFromHit(hit)
	}
	item.ProductID = productID

	if err := b.cart.AddItem(item, quantity); err != nil {
		return contract.AddToCartOutput{}, err
	}
	return contract.AddToCartOutput{
		Status:   "ok",
		LineItem: &contract.LineItem{ProductID: productID, Quantity: quantity},
	}, nil
}

// attachCancel stores cancel on a pending call. It reports false when the
// call already settled or the bridge is closed.
func (b *Bridge) attachCancel(callID string, cancel func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.calls[callID]
	if b.closed || !ok || entry.state.Terminal() {
		return false
	}
	entry.cancel = cancel
	return true
}

func (b *Bridge) fulfill(callID string, result any) {
	b.settle(callID, CallFulfilled, result, nil)
}

func (b *Bridge) fail(callID string, err error) {
	b.settle(callID, CallFailed, nil, err)
}

// settle is the single check-and-set into a terminal state.
func (b *Bridge) settle(callID string, state CallState, result any, err error) bool {
	b.mu.Lock()
	entry, ok := b.calls[callID]
	if b.closed || !ok || entry.state != CallAvailable {
		b.mu.Unlock()
		return false
	}
	cancel := entry.cancel
	delete(b.calls, callID)
	b.settled[callID] = state

	out := contract.ToolResult{CallID: callID, Tool: entry.tool, Result: result}
	if err != nil {
		out.Error = err.Error()
		if entry.tool == contract.ToolAddToCart {
			out.Result = contract.AddToCartOutput{Status: "error", Message: out.Error}
		}
	}
	deliverErr := b.sink.Deliver(context.Background(), out)
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	status := "ok"
	if err != nil {
		status = "error"
		log.Warn().Err(err).Str("call_id", callID).Str("tool", string(out.Tool)).Msg("tool call failed")
	}
	metrics.ToolResults.WithLabelValues(string(out.Tool), status).Inc()
	if deliverErr != nil {
		log.Error().Err(deliverErr).Str("call_id", callID).Msg("deliver tool result")
	}
	return true
}
