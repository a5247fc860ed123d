package search

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Results is the settled (or pending) result set of one generation.
type Results struct {
	Generation uint64         `json:"generation"`
	Query      string         `json:"query"`
	Status     Status         `json:"status"`
	Hits       []contract.Hit `json:"hits"`
	NbHits     int            `json:"nbHits"`
	NbPages    int            `json:"nbPages"`
}

type EventKind int

const (
	EventStateChanged EventKind = iota + 1
	EventResultsSettled
)

type Event struct {
	Kind       EventKind
	Generation uint64
	State      State
	Scope      string
	Results    Results
}

// Observer is called synchronously after every mutation and settlement.
// It must not mutate or close the store from inside the callback.
type Observer func(Event)

// Store owns the live search state. Every mutation bumps the generation;
// Settle only accepts results for the current generation.
type Store struct {
	opMu sync.Mutex // serialises mutation + notification
	mu   sync.RWMutex

	state      State
	scope      string
	generation uint64
	results    Results

	observers    map[uint64]Observer
	nextObserver uint64
	closed       bool
}

func NewStore(initial State) *Store {
	st := initial.Clone()
	return &Store{
		state:     st,
		results:   Results{Query: st.Query, Status: StatusLoading},
		observers: make(map[uint64]Observer),
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Scope() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) Results() Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneResults(s.results)
}

// Subscribe registers fn and returns an idempotent unsubscribe func.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) SetQuery(query string) (uint64, error) {
	return s.apply(func(st *State) error {
		if isBlank(query) {
			query = ""
		}
		st.Query = query
		st.Page = 0
		return nil
	})
}

func (s *Store) ToggleRefinement(attr, value string) (uint64, error) {
	return s.apply(func(st *State) error {
		if !IsRefinable(attr) {
			return fmt.Errorf("%w: %q is not a refinement attribute", contract.ErrValidation, attr)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return fmt.Errorf("%w: refinement value is empty", contract.ErrValidation)
		}

		current := st.Refinements[attr]
		if i := slices.Index(current, value); i >= 0 {
			current = slices.Delete(slices.Clone(current), i, i+1)
		} else {
			current = append(slices.Clone(current), value)
		}

		current = NormalizeValues(current)
		if current == nil {
			delete(st.Refinements, attr)
			if len(st.Refinements) == 0 {
				st.Refinements = nil
			}
		} else {
			if st.Refinements == nil {
				st.Refinements = make(map[string][]string, 1)
			}
			st.Refinements[attr] = current
		}
		st.Page = 0
		return nil
	})
}

// SelectCategory replaces the category selection. An empty path clears it.
func (s *Store) SelectCategory(path []string) (uint64, error) {
	return s.apply(func(st *State) error {
		norm, ok := NormalizeCategoryPath(path)
		if !ok {
			return fmt.Errorf("%w: category path must have 1..%d non-blank segments", contract.ErrValidation, MaxCategoryDepth)
		}
		if len(norm) == 0 {
			st.HierarchicalMenu = nil
		} else {
			st.HierarchicalMenu = map[string][]string{CategoryLevels[0]: norm}
		}
		st.Page = 0
		return nil
	})
}

// SetPriceRange replaces the price range. A nil or empty range clears it.
func (s *Store) SetPriceRange(r *PriceRange) (uint64, error) {
	return s.apply(func(st *State) error {
		if !r.IsEmpty() && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("%w: price min %v exceeds max %v", contract.ErrValidation, *r.Min, *r.Max)
		}
		st.Price = r.clone()
		st.Page = 0
		return nil
	})
}

func (s *Store) SetPage(page int) (uint64, error) {
	return s.apply(func(st *State) error {
		if page < 0 || page > MaxPage {
			return fmt.Errorf("%w: page must be between 0 and %d", contract.ErrValidation, MaxPage)
		}
		st.Page = page
		return nil
	})
}

func (s *Store) Reset() (uint64, error) {
	return s.apply(func(st *State) error {
		*st = State{}
		return nil
	})
}

// SetScope narrows every backend query to one category page.
func (s *Store) SetScope(categoryPageID string) (uint64, error) {
	return s.applyScoped(func(st *State, scope *string) error {
		*scope = strings.TrimSpace(categoryPageID)
		st.Page = 0
		return nil
	})
}

// Restore replaces the whole state, e.g. after decoding a URL.
func (s *Store) Restore(next State) (uint64, error) {
	return s.apply(func(st *State) error {
		if next.Page < 0 || next.Page > MaxPage {
			return fmt.Errorf("%w: page must be between 0 and %d", contract.ErrValidation, MaxPage)
		}
		*st = next.Clone()
		return nil
	})
}

// Settle records backend results for gen. It reports false when gen is no
// longer current or the store is closed.
func (s *Store) Settle(gen uint64, res Results) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return false
	}
	res = cloneResults(res)
	res.Generation = gen
	res.Query = s.state.Query
	if res.Status == "" || res.Status == StatusLoading {
		res.Status = StatusIdle
	}
	s.results = res
	ev := Event{
		Kind:       EventResultsSettled,
		Generation: gen,
		State:      s.state.Clone(),
		Scope:      s.scope,
		Results:    cloneResults(res),
	}
	observers := s.observerList()
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
	return true
}

// WaitSettled blocks until gen settles, is superseded or ctx ends.
func (s *Store) WaitSettled(ctx context.Context, gen uint64) (Results, error) {
	done := make(chan Results, 1)
	superseded := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func(ev Event) {
		switch {
		case ev.Generation > gen:
			select {
			case superseded <- struct{}{}:
			default:
			}
		case ev.Kind == EventResultsSettled && ev.Generation == gen:
			select {
			case done <- ev.Results:
			default:
			}
		}
	})
	defer unsubscribe()

	s.mu.RLock()
	res, current, closed := cloneResults(s.results), s.generation, s.closed
	s.mu.RUnlock()
	switch {
	case closed:
		return Results{}, contract.ErrClosed
	case current > gen:
		return Results{}, contract.ErrSuperseded
	case res.Generation == gen && res.Status != StatusLoading:
		return res, nil
	}

	select {
	case res := <-done:
		return res, nil
	case <-superseded:
		return Results{}, contract.ErrSuperseded
	case <-ctx.Done():
		return Results{}, ctx.Err()
	}
}

// Close drops every observer. No callback fires after Close returns.
func (s *Store) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.observers)
}

func (s *Store) apply(mutate func(st *State) error) (uint64, error) {
	return s.applyScoped(func(st *State, _ *string) error {
		return mutate(st)
	})
}

func (s *Store) applyScoped(mutate func(st *State, scope *string) error) (uint64, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, contract.ErrClosed
	}
	next := s.state.Clone()
	scope := s.scope
	if err := mutate(&next, &scope); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.state = next
	s.scope = scope
	s.generation++
	gen := s.generation
	s.results = Results{Generation: gen, Query: next.Query, Status: StatusLoading}
	ev := Event{
		Kind:       EventStateChanged,
		Generation: gen,
		State:      next.Clone(),
		Scope:      scope,
	}
	observers := s.observerList()
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
	return gen, nil
}

// observerList must be called with mu held. Observers run in registration order.
func (s *Store) observerList() []Observer {
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.observers[id])
	}
	return out
}

func cloneResults(r Results) Results {
	r.Hits = slices.Clone(r.Hits)
	return r
}
