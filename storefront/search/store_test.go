package search

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

func fptr(v float64) *float64 { return &v }

func TestFilterMutationsResetPage(t *testing.T) {
	t.Parallel()

	mutations := map[string]func(s *Store) error{
		"query": func(s *Store) error { _, err := s.SetQuery("boots"); return err },
		"refinement": func(s *Store) error {
			_, err := s.ToggleRefinement(AttrBrand, "Acme")
			return err
		},
		"category": func(s *Store) error {
			_, err := s.SelectCategory([]string{"Women"})
			return err
		},
		"price": func(s *Store) error {
			_, err := s.SetPriceRange(&PriceRange{Min: fptr(1)})
			return err
		},
		"scope": func(s *Store) error { _, err := s.SetScope("Women > Shoes"); return err },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := NewStore(State{Page: 4})
			if err := mutate(s); err != nil {
				t.Fatalf("mutation error = %v", err)
			}
			if got := s.State().Page; got != 0 {
				t.Fatalf("page = %d, want 0", got)
			}
		})
	}
}

func TestSetPageKeepsFilters(t *testing.T) {
	t.Parallel()

	s := NewStore(State{Query: "hat"})
	if _, err := s.SetPage(2); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	st := s.State()
	if st.Page != 2 || st.Query != "hat" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if _, err := s.SetPage(-1); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.SetPage(math.MaxInt); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected validation error for page past MaxPage, got %v", err)
	}
	if _, err := s.Restore(State{Page: MaxPage + 1}); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected Restore to reject page past MaxPage, got %v", err)
	}
	if _, err := s.SetPage(MaxPage); err != nil {
		t.Fatalf("SetPage(MaxPage) error = %v", err)
	}
}

func TestToggleRefinement(t *testing.T) {
	t.Parallel()

	s := NewStore(State{})
	if _, err := s.ToggleRefinement(AttrSize, "M"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if _, err := s.ToggleRefinement(AttrSize, "L"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if diff := cmp.Diff(map[string][]string{AttrSize: {"L", "M"}}, s.State().Refinements); diff != "" {
		t.Fatalf("unexpected refinements (-want +got):\n%s", diff)
	}

	_, _ = s.ToggleRefinement(AttrSize, "L")
	_, _ = s.ToggleRefinement(AttrSize, "M")
	if got := s.State().Refinements; got != nil {
		t.Fatalf("empty refinement set must drop the key, got %v", got)
	}

	if _, err := s.ToggleRefinement("price", "1"); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.ToggleRefinement(AttrBrand, " "); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRejectedMutationLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	s := NewStore(State{Query: "q", Page: 2})
	gen := s.Generation()
	if _, err := s.SetPriceRange(&PriceRange{Min: fptr(10), Max: fptr(5)}); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.SelectCategory([]string{"a", "b", "c", "d"}); !errors.Is(err, contract.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if s.Generation() != gen {
		t.Fatalf("generation moved on rejected mutation")
	}
	if st := s.State(); st.Page != 2 || st.Price != nil || st.HierarchicalMenu != nil {
		t.Fatalf("state changed on rejected mutation: %+v", st)
	}
}

func TestObserversNotifiedSynchronouslyInOrder(t *testing.T) {
	t.Parallel()

	s := NewStore(State{})
	var calls []string
	s.Subscribe(func(ev Event) { calls = append(calls, "a:"+ev.State.Query) })
	unsubscribe := s.Subscribe(func(ev Event) { calls = append(calls, "b:"+ev.State.Query) })

	_, _ = s.SetQuery("one")
	unsubscribe()
	_, _ = s.SetQuery("two")

	want := []string{"a:one", "b:one", "a:two"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("unexpected notifications (-want +got):\n%s", diff)
	}
}

func TestSettleRejectsStaleGeneration(t *testing.T) {
	t.Parallel()

	s := NewStore(State{})
	genA, _ := s.SetQuery("a")
	genB, _ := s.SetQuery("b")

	if s.Settle(genA, Results{Hits: []contract.Hit{{ObjectID: "stale"}}}) {
		t.Fatal("stale generation must be rejected")
	}
	if got := s.Results(); got.Status != StatusLoading || len(got.Hits) != 0 {
		t.Fatalf("stale results leaked: %+v", got)
	}

	if !s.Settle(genB, Results{Hits: []contract.Hit{{ObjectID: "fresh"}}, NbHits: 1}) {
		t.Fatal("current generation must be accepted")
	}
	got := s.Results()
	if got.Status != StatusIdle || got.Query != "b" || got.Generation != genB || got.Hits[0].ObjectID != "fresh" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestWaitSettled(t *testing.T) {
	t.Parallel()

	s := NewStore(State{})
	gen, _ := s.SetQuery("coat")

	go s.Settle(gen, Results{NbHits: 3})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := s.WaitSettled(ctx, gen)
	if err != nil {
		t.Fatalf("WaitSettled() error = %v", err)
	}
	if res.NbHits != 3 {
		t.Fatalf("unexpected results: %+v", res)
	}

	old := gen
	if _, err := s.SetQuery("jacket"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WaitSettled(ctx, old); !errors.Is(err, contract.ErrSuperseded) {
		t.Fatalf("expected superseded, got %v", err)
	}
}

func TestCloseStopsCallbacks(t *testing.T) {
	t.Parallel()

	s := NewStore(State{})
	fired := 0
	s.Subscribe(func(Event) { fired++ })
	gen, _ := s.SetQuery("x")
	s.Close()

	if _, err := s.SetQuery("y"); !errors.Is(err, contract.ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if s.Settle(gen, Results{}) {
		t.Fatal("settle after close must be rejected")
	}
	if fired != 1 {
		t.Fatalf("observer fired %d times, want 1", fired)
	}
	if _, err := s.WaitSettled(context.Background(), gen); !errors.Is(err, contract.ErrClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestRestoreReplacesState(t *testing.T) {
	t.Parallel()

	s := NewStore(State{Query: "old"})
	next := State{Query: "new", Page: 1, Refinements: map[string][]string{AttrBrand: {"Acme"}}}
	if _, err := s.Restore(next); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if diff := cmp.Diff(next, s.State()); diff != "" {
		t.Fatalf("unexpected state (-want +got):\n%s", diff)
	}

	next.Refinements[AttrBrand][0] = "mutated"
	if s.State().Refinements[AttrBrand][0] != "Acme" {
		t.Fatal("store must not alias caller maps")
	}
}
