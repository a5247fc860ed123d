package tool

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

const defaultForwardTimeout = 10 * time.Second

// Forwarder pushes a settled result to the agent transport.
type Forwarder interface {
	Forward(ctx context.Context, result contract.ToolResult) error
}

type OutboxOption func(*Outbox)

func WithForwarder(f Forwarder) OutboxOption {
	return func(o *Outbox) {
		o.forwarder = f
	}
}

func WithForwardTimeout(d time.Duration) OutboxOption {
	return func(o *Outbox) {
		if d > 0 {
			o.forwardTimeout = d
		}
	}
}

// Outbox buffers settled tool results until the agent drains them, and
// optionally forwards each one in the background.
type Outbox struct {
	forwarder      Forwarder
	forwardTimeout time.Duration

	mu      sync.Mutex
	pending []contract.ToolResult
	closed  bool
	wg      sync.WaitGroup
}

func NewOutbox(opts ...OutboxOption) *Outbox {
	o := &Outbox{forwardTimeout: defaultForwardTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Deliver never blocks on the forwarder.
func (o *Outbox) Deliver(_ context.Context, result contract.ToolResult) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return contract.ErrClosed
	}
	o.pending = append(o.pending, result)

	if o.forwarder != nil {
		o.wg.Add(1)
		go o.forward(result)
	}
	return nil
}

// Drain returns and clears every buffered result in delivery order.
func (o *Outbox) Drain() []contract.ToolResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := slices.Clone(o.pending)
	o.pending = nil
	if out == nil {
		out = []contract.ToolResult{}
	}
	return out
}

func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Close rejects further results and waits for in-flight forwards.
func (o *Outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Outbox) forward(result contract.ToolResult) {
	defer o.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), o.forwardTimeout)
	defer cancel()
	if err := o.forwarder.Forward(ctx, result); err != nil {
		log.Error().Err(err).Str("call_id", result.CallID).Msg("forward tool result")
	}
}
