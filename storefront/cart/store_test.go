package cart

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

func TestAddItemMergesByID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	x := Item{ProductID: "x", Name: "Tee", UnitPrice: 12}
	require.NoError(t, s.AddItem(x, 2))
	require.NoError(t, s.AddItem(x, 3))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestAddItemNonPositiveQuantityIsNoop(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddItem(Item{ProductID: "x", UnitPrice: 1}, 0))
	require.NoError(t, s.AddItem(Item{ProductID: "x", UnitPrice: 1}, -2))
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.TotalItems())
}

func TestAddItemValidation(t *testing.T) {
	t.Parallel()

	s := NewStore()
	err := s.AddItem(Item{ProductID: "  "}, 1)
	assert.True(t, errors.Is(err, contract.ErrValidation), "got %v", err)

	err = s.AddItem(Item{ProductID: "p", UnitPrice: -1}, 1)
	assert.True(t, errors.Is(err, contract.ErrValidation), "got %v", err)
	assert.Empty(t, s.Items())
}

func TestInsertionOrderPreserved(t *testing.T) {
	t.Parallel()

	s := NewStore()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.AddItem(Item{ProductID: id, UnitPrice: 1}, 1))
	}
	require.NoError(t, s.AddItem(Item{ProductID: "a", UnitPrice: 1}, 1))

	var ids []string
	for _, it := range s.Items() {
		ids = append(ids, it.ProductID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestUpdateQuantity(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddItem(Item{ProductID: "p1", UnitPrice: 4}, 3))
	require.NoError(t, s.AddItem(Item{ProductID: "p2", UnitPrice: 1}, 1))

	s.UpdateQuantity("p1", 7)
	assert.Equal(t, 7, s.Items()[0].Quantity, "update is not additive")

	s.UpdateQuantity("p1", 0)
	require.Len(t, s.Items(), 1)
	assert.Equal(t, "p2", s.Items()[0].ProductID)

	before := s.Snapshot()
	s.UpdateQuantity("missing", 5)
	assert.Equal(t, before, s.Snapshot())
}

func TestRemoveAndClear(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddItem(Item{ProductID: "p1", UnitPrice: 4}, 1))
	require.NoError(t, s.AddItem(Item{ProductID: "p2", UnitPrice: 4}, 1))

	s.RemoveItem("missing")
	assert.Len(t, s.Items(), 2)

	s.RemoveItem("p1")
	assert.Len(t, s.Items(), 1)

	s.Clear()
	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.NotNil(t, snap.Items)
	assert.Equal(t, 0, snap.TotalItems)
	assert.Equal(t, 0.0, snap.TotalPrice)
}

func TestTotals(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddItem(Item{ProductID: "p1", UnitPrice: 10}, 2))
	require.NoError(t, s.AddItem(Item{ProductID: "p2", UnitPrice: 5}, 1))

	assert.Equal(t, 3, s.TotalItems())
	assert.Equal(t, 25.00, s.TotalPrice())
}

func TestTotalPriceRoundsToCents(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddItem(Item{ProductID: "p1", UnitPrice: 0.1}, 3))
	assert.Equal(t, 0.3, s.TotalPrice())
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var got []int
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap.TotalItems)
	})

	require.NoError(t, s.AddItem(Item{ProductID: "p1", UnitPrice: 1}, 2))
	s.UpdateQuantity("p1", 5)
	unsubscribe()
	unsubscribe()
	s.Clear()

	assert.Equal(t, []int{2, 5}, got)
}

func TestRestoreSkipsInvalidAndMerges(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Restore([]Item{
		{ProductID: "a", UnitPrice: 2, Quantity: 1},
		{ProductID: "", UnitPrice: 2, Quantity: 1},
		{ProductID: "b", UnitPrice: 2, Quantity: 0},
		{ProductID: "a", UnitPrice: 2, Quantity: 2},
	})

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestRestoreRejectsNonFinitePrices(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Restore([]Item{
		{ProductID: "nan", UnitPrice: math.NaN(), Quantity: 1},
		{ProductID: "inf", UnitPrice: math.Inf(1), Quantity: 1},
		{ProductID: " ok ", UnitPrice: 3, Quantity: 2},
	})

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].ProductID)
	assert.Equal(t, 6.0, s.TotalPrice())
}

func TestIDsAreTrimmedEverywhere(t *testing.T) {
	t.Parallel()

	s := NewStore()
	require.NoError(t, s.AddItem(Item{ProductID: " p1 ", UnitPrice: 4}, 1))
	require.NoError(t, s.AddItem(Item{ProductID: "p2", UnitPrice: 4}, 1))

	s.UpdateQuantity(" p1", 5)
	assert.Equal(t, 5, s.Items()[0].Quantity)

	s.RemoveItem("p2 ")
	require.Len(t, s.Items(), 1)
	assert.Equal(t, "p1", s.Items()[0].ProductID)
}

func TestItemFromHit(t *testing.T) {
	t.Parallel()

	it := ItemFromHit(contract.Hit{ObjectID: "h1", Name: "Boot", Brand: "Acme", Price: contract.Price{Value: 89}, PrimaryImage: "img.jpg"})
	assert.Equal(t, Item{ProductID: "h1", Name: "Boot", Brand: "Acme", UnitPrice: 89, Image: "img.jpg"}, it)
}
