// Package summary produces the narrative overview shown above search results.
package summary

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tanpawarit/atelier-storefront/pkg/metrics"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/search"
)

type Config struct {
	Debounce          time.Duration
	Timeout           time.Duration
	RequestsPerMinute int
	TopHits           int
}

func (c Config) withDefaults() Config {
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 30
	}
	if c.TopHits <= 0 {
		c.TopHits = DefaultTopHits
	}
	return c
}

// Fetcher requests one summary per distinct settled query. It never mutates
// search state and a failed request just leaves no summary.
type Fetcher struct {
	store      *search.Store
	summarizer contract.Summarizer
	cfg        Config
	limiter    *rate.Limiter

	mu          sync.Mutex
	lastQuery   string
	current     *contract.Summary
	timer       *time.Timer
	cancel      context.CancelFunc
	unsubscribe func()
	closed      bool
	wg          sync.WaitGroup
}

func NewFetcher(store *search.Store, summarizer contract.Summarizer, cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	return &Fetcher{
		store:      store,
		summarizer: summarizer,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), cfg.RequestsPerMinute),
	}
}

func (f *Fetcher) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.unsubscribe != nil {
		return
	}
	f.unsubscribe = f.store.Subscribe(f.onEvent)
}

// Current returns the summary for the store's current query, if any.
func (f *Fetcher) Current() (contract.Summary, bool) {
	query := f.store.State().Query

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil || f.current.Query != query {
		return contract.Summary{}, false
	}
	out := *f.current
	out.KeyInsights = slices.Clone(out.KeyInsights)
	out.RelatedSearches = slices.Clone(out.RelatedSearches)
	return out, true
}

func (f *Fetcher) Close() {
	f.mu.Lock()
	f.closed = true
	f.stopPendingLocked()
	unsubscribe := f.unsubscribe
	f.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	f.wg.Wait()
}

func (f *Fetcher) onEvent(ev search.Event) {
	if ev.Kind != search.EventResultsSettled {
		return
	}
	query := ev.Results.Query
	if strings.TrimSpace(query) == "" || ev.Results.Status != search.StatusIdle || len(ev.Results.Hits) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || query == f.lastQuery {
		return
	}
	f.lastQuery = query
	f.current = nil
	f.stopPendingLocked()

	hits := slices.Clone(ev.Results.Hits)
	if len(hits) > f.cfg.TopHits {
		hits = hits[:f.cfg.TopHits]
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.Debounce+f.cfg.Timeout)
	f.cancel = cancel
	f.wg.Add(1)
	f.timer = time.AfterFunc(f.cfg.Debounce, func() {
		defer f.wg.Done()
		defer cancel()
		f.fetch(ctx, query, hits)
	})
}

// stopPendingLocked must be called with mu held.
func (f *Fetcher) stopPendingLocked() {
	if f.timer != nil && f.timer.Stop() {
		f.wg.Done()
	}
	f.timer = nil
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, query string, hits []contract.Hit) {
	if err := f.limiter.Wait(ctx); err != nil {
		metrics.SummaryRequests.WithLabelValues("discarded").Inc()
		return
	}

	out, err := f.summarizer.Summarize(ctx, query, hits)
	if err != nil {
		if ctx.Err() != nil {
			metrics.SummaryRequests.WithLabelValues("discarded").Inc()
			return
		}
		metrics.SummaryRequests.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("query", query).Msg("summary request failed")
		return
	}
	out.Query = query

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.lastQuery != query {
		metrics.SummaryRequests.WithLabelValues("discarded").Inc()
		return
	}
	f.current = &out
	metrics.SummaryRequests.WithLabelValues("ok").Inc()
}
