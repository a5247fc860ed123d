package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/atelier-storefront/pkg/metrics"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

const defaultRunnerTimeout = 10 * time.Second

// Runner issues a backend query for every state change and settles the
// response into the store. A newer state cancels the in-flight query.
type Runner struct {
	store   *Store
	backend contract.SearchBackend
	cfg     RequestConfig
	timeout time.Duration

	mu          sync.Mutex
	cancel      context.CancelFunc
	unsubscribe func()
	closed      bool
	wg          sync.WaitGroup
}

func NewRunner(store *Store, backend contract.SearchBackend, cfg RequestConfig, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultRunnerTimeout
	}
	return &Runner{
		store:   store,
		backend: backend,
		cfg:     cfg,
		timeout: timeout,
	}
}

// Start subscribes to the store and queries the current state.
func (r *Runner) Start() {
	r.mu.Lock()
	if r.closed || r.unsubscribe != nil {
		r.mu.Unlock()
		return
	}
	r.unsubscribe = r.store.Subscribe(r.onEvent)
	r.mu.Unlock()

	// A mutation between Subscribe and here already launched a newer query;
	// Settle rejects this one in that case.
	r.launch(r.store.Generation(), r.store.State(), r.store.Scope())
}

func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	unsubscribe := r.unsubscribe
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.wg.Wait()
}

func (r *Runner) onEvent(ev Event) {
	if ev.Kind != EventStateChanged {
		return
	}
	r.launch(ev.Generation, ev.State, ev.Scope)
}

func (r *Runner) launch(gen uint64, st State, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	r.cancel = cancel

	req := BuildRequest(st, scope, r.cfg)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, gen, req)
	}()
}

func (r *Runner) run(ctx context.Context, gen uint64, req contract.SearchQuery) {
	started := time.Now()
	resp, err := r.backend.Search(ctx, req)
	metrics.SearchDuration.Observe(time.Since(started).Seconds())

	if errors.Is(ctx.Err(), context.Canceled) {
		metrics.SearchSettles.WithLabelValues("stale").Inc()
		return
	}

	res := Results{Status: StatusIdle}
	if err != nil {
		log.Warn().Err(err).Uint64("generation", gen).Str("query", req.Query).Msg("search backend failed")
		res.Status = StatusError
	} else {
		res.Hits = resp.Hits
		res.NbHits = resp.NbHits
		res.NbPages = resp.NbPages
	}

	switch {
	case !r.store.Settle(gen, res):
		metrics.SearchSettles.WithLabelValues("stale").Inc()
		log.Debug().Uint64("generation", gen).Msg("discarded stale search response")
	case err != nil:
		metrics.SearchSettles.WithLabelValues("error").Inc()
	default:
		metrics.SearchSettles.WithLabelValues("fresh").Inc()
	}
}
