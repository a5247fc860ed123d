// Package cart holds the per-session shopping cart.
package cart

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

type Item struct {
	ProductID string  `json:"objectID"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Brand     string  `json:"brand,omitempty"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Snapshot is a read-only copy of the cart with its derived totals.
type Snapshot struct {
	Items      []Item  `json:"items"`
	TotalItems int     `json:"totalItems"`
	TotalPrice float64 `json:"totalPrice"`
}

type Observer func(Snapshot)

// Store keeps line items unique by product id in insertion order.
// Totals are always derived from the items, never stored.
type Store struct {
	opMu sync.Mutex
	mu   sync.RWMutex

	items        []Item
	observers    map[uint64]Observer
	nextObserver uint64
}

func NewStore() *Store {
	return &Store{observers: make(map[uint64]Observer)}
}

// ItemFromHit builds a cart line from a catalog hit.
func ItemFromHit(h contract.Hit) Item {
	return Item{
		ProductID: h.ObjectID,
		Name:      h.Name,
		UnitPrice: h.Price.Value,
		Brand:     h.Brand,
		Image:     h.PrimaryImage,
	}
}

// ItemFromPreview builds a cart line from an agent product card.
func ItemFromPreview(p contract.PreviewItem) Item {
	return Item{
		ProductID: p.ProductID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Brand:     p.Brand,
		Image:     p.Image,
	}
}

// AddItem merges quantity into an existing line or appends a new one.
// A non-positive quantity is a no-op.
func (s *Store) AddItem(item Item, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	item.ProductID = strings.TrimSpace(item.ProductID)
	if err := validate(item); err != nil {
		return err
	}

	s.mutate(func(items []Item) []Item {
		if i := indexOf(items, item.ProductID); i >= 0 {
			items[i].Quantity += quantity
			return items
		}
		item.Quantity = quantity
		return append(items, item)
	})
	return nil
}

func (s *Store) RemoveItem(productID string) {
	productID = strings.TrimSpace(productID)
	s.mutate(func(items []Item) []Item {
		if i := indexOf(items, productID); i >= 0 {
			return slices.Delete(items, i, i+1)
		}
		return items
	})
}

// UpdateQuantity sets the line quantity. Zero or less removes the line and an
// unknown id is a no-op.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	productID = strings.TrimSpace(productID)
	s.mutate(func(items []Item) []Item {
		i := indexOf(items, productID)
		if i < 0 {
			return items
		}
		if quantity <= 0 {
			return slices.Delete(items, i, i+1)
		}
		items[i].Quantity = quantity
		return items
	})
}

func (s *Store) Clear() {
	s.mutate(func([]Item) []Item { return nil })
}

// Restore replaces the cart content, e.g. from a persisted session.
// Invalid lines are skipped and duplicates are merged.
func (s *Store) Restore(items []Item) {
	s.mutate(func([]Item) []Item {
		var out []Item
		for _, it := range items {
			it.ProductID = strings.TrimSpace(it.ProductID)
			if it.Quantity <= 0 || validate(it) != nil {
				continue
			}
			if i := indexOf(out, it.ProductID); i >= 0 {
				out[i].Quantity += it.Quantity
				continue
			}
			out = append(out, it)
		}
		return out
	})
}

func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalItems(s.items)
}

// TotalPrice is rounded to cents.
func (s *Store) TotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPrice(s.items)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.items)
}

// Subscribe registers fn for every mutation and returns an idempotent
// unsubscribe func.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
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

func (s *Store) mutate(fn func(items []Item) []Item) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.items = fn(slices.Clone(s.items))
	if len(s.items) == 0 {
		s.items = nil
	}
	snap := snapshotOf(s.items)
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func validate(item Item) error {
	if item.ProductID == "" {
		return fmt.Errorf("%w: cart item has no product id", contract.ErrValidation)
	}
	if item.UnitPrice < 0 || math.IsNaN(item.UnitPrice) || math.IsInf(item.UnitPrice, 0) {
		return fmt.Errorf("%w: invalid unit price %v for %s", contract.ErrValidation, item.UnitPrice, item.ProductID)
	}
	return nil
}

func indexOf(items []Item, productID string) int {
	return slices.IndexFunc(items, func(it Item) bool { return it.ProductID == productID })
}

func snapshotOf(items []Item) Snapshot {
	out := slices.Clone(items)
	if out == nil {
		out = []Item{}
	}
	return Snapshot{
		Items:      out,
		TotalItems: totalItems(items),
		TotalPrice: totalPrice(items),
	}
}

func totalItems(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func totalPrice(items []Item) float64 {
	sum := 0.0
	for _, it := range items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return math.Round(sum*100) / 100
}
