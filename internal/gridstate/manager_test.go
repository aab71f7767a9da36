package gridstate

import (
	"testing"
	"time"

	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func virtualSlot(id string, t gridcore.SlotType, price decimal.Decimal) *gridcore.Slot {
	return &gridcore.Slot{
		ID:        id,
		Type:      t,
		State:     gridcore.Virtual,
		Price:     price,
		Size:      decimal.Zero,
		IdealSize: decimal.NewFromInt(10),
	}
}

func newTestManager() *Manager {
	recalcs := 0
	m := New(10*time.Second, func() { recalcs++ }, nil)
	m.LoadSlots([]*gridcore.Slot{
		virtualSlot("s1", gridcore.Buy, decimal.NewFromInt(99)),
		virtualSlot("s2", gridcore.Sell, decimal.NewFromInt(101)),
		virtualSlot("s3", gridcore.Spread, decimal.NewFromInt(100)),
	})
	return m
}

// the sequence of recorded transitions is a valid walk through the
// transition graph.
func TestUpsertOrder_LegalTransitionSequence(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Active, Type: gridcore.Buy,
		Size: decimal.NewFromInt(10), OrderID: "oid-1",
	}))
	s, _ := m.GetSlot("s1")
	assert.Equal(t, gridcore.Active, s.State)

	require.NoError(t, m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Partial, Type: gridcore.Buy,
		Size: decimal.NewFromInt(4), OrderID: "oid-1",
	}))
	s, _ = m.GetSlot("s1")
	assert.Equal(t, gridcore.Partial, s.State)

	// full fill: Partial -> Virtual, type switches to Spread.
	require.NoError(t, m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Virtual, Type: gridcore.Spread,
		Size: decimal.Zero, OrderID: "",
	}))
	s, _ = m.GetSlot("s1")
	assert.Equal(t, gridcore.Virtual, s.State)
	assert.Equal(t, gridcore.Spread, s.Type)
}

func TestUpsertOrder_RejectsIllegalTransition(t *testing.T) {
	m := newTestManager()
	// Virtual -> Virtual is not a listed edge.
	err := m.UpsertOrder(Update{ID: "s1", State: gridcore.Virtual, Type: gridcore.Buy, Size: decimal.Zero})
	assert.Error(t, err)
}

func TestUpsertOrder_RejectsOrphanTypeChange(t *testing.T) {
	m := newTestManager()
	// Buy -> Sell isn't one of the two legal type-change corollaries.
	err := m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Active, Type: gridcore.Sell,
		Size: decimal.NewFromInt(10), OrderID: "oid-1",
	})
	assert.Error(t, err)
}

// Active/Partial require an order id; Virtual must not carry one.
func TestUpsertOrder_RequiresOrderIDForActiveAndPartial(t *testing.T) {
	m := newTestManager()
	err := m.UpsertOrder(Update{ID: "s1", State: gridcore.Active, Type: gridcore.Buy, Size: decimal.NewFromInt(10)})
	assert.Error(t, err)
	err = m.UpsertOrder(Update{ID: "s1", State: gridcore.Partial, Type: gridcore.Buy, Size: decimal.NewFromInt(5)})
	assert.Error(t, err)
	err = m.UpsertOrder(Update{ID: "s1", State: gridcore.Virtual, Type: gridcore.Buy, Size: decimal.Zero, OrderID: "oid-x"})
	assert.Error(t, err)
}

// an order id can be claimed by at most one slot.
func TestUpsertOrder_RejectsDuplicateOrderIDClaim(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Active, Type: gridcore.Buy,
		Size: decimal.NewFromInt(10), OrderID: "dup",
	}))
	err := m.UpsertOrder(Update{
		ID: "s3", State: gridcore.Active, Type: gridcore.Buy,
		Size: decimal.NewFromInt(10), OrderID: "dup",
	})
	assert.Error(t, err)
}

// Active requires size >= ideal.
func TestUpsertOrder_RejectsActiveBelowIdealSize(t *testing.T) {
	m := newTestManager()
	err := m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Active, Type: gridcore.Buy,
		Size: decimal.NewFromInt(1), OrderID: "oid-1",
	})
	assert.Error(t, err)
}

// after any cycle, invariants hold (verified via AssertIndexConsistency).
func TestAssertIndexConsistency_HoldsAfterAnyCycle(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Active, Type: gridcore.Buy,
		Size: decimal.NewFromInt(10), OrderID: "oid-1",
	}))
	assert.NoError(t, m.AssertIndexConsistency())
}

func TestAssertIndexConsistency_RepairsCorruptedIndex(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Active, Type: gridcore.Buy,
		Size: decimal.NewFromInt(10), OrderID: "oid-1",
	}))
	// Directly corrupt an index to simulate drift.
	m.mu.Lock()
	delete(m.indexByState[gridcore.Active], "s1")
	m.mu.Unlock()

	err := m.AssertIndexConsistency()
	assert.NoError(t, err) // repaired
	s, _ := m.GetSlot("s1")
	m.mu.RLock()
	_, present := m.indexByState[s.State]["s1"]
	m.mu.RUnlock()
	assert.True(t, present)
}

func TestPauseResumeFundRecalc_RunsOnceAtDepthZero(t *testing.T) {
	calls := 0
	m := New(time.Second, func() { calls++ }, nil)
	m.LoadSlots([]*gridcore.Slot{virtualSlot("s1", gridcore.Buy, decimal.NewFromInt(99))})

	m.PauseFundRecalc()
	m.PauseFundRecalc()
	_ = m.UpsertOrder(Update{
		ID: "s1", State: gridcore.Active, Type: gridcore.Buy,
		Size: decimal.NewFromInt(10), OrderID: "oid-1",
	})
	assert.Equal(t, 0, calls, "paused upsert should not trigger recalc")
	m.ResumeFundRecalc()
	assert.Equal(t, 0, calls, "still nested, should not trigger yet")
	m.ResumeFundRecalc()
	assert.Equal(t, 1, calls, "depth zero should trigger exactly once")
}

func TestLocks_ExpireAfterTimeout(t *testing.T) {
	m := New(50*time.Millisecond, nil, nil)
	m.LoadSlots([]*gridcore.Slot{virtualSlot("s1", gridcore.Buy, decimal.NewFromInt(99))})
	now := time.Now()
	m.LockOrders([]string{"s1"}, now)
	assert.True(t, m.IsLocked("s1", now.Add(10*time.Millisecond)))
	assert.False(t, m.IsLocked("s1", now.Add(100*time.Millisecond)))
}

// two concurrent operations that lock disjoint slot sets produce the
// same final state as running them sequentially.
func TestConcurrentDisjointUpdates(t *testing.T) {
	m := New(time.Second, nil, nil)
	m.LoadSlots([]*gridcore.Slot{
		virtualSlot("a", gridcore.Buy, decimal.NewFromInt(90)),
		virtualSlot("b", gridcore.Sell, decimal.NewFromInt(110)),
	})

	var g errgroup.Group
	g.Go(func() error {
		return m.UpsertOrder(Update{
			ID: "a", State: gridcore.Active, Type: gridcore.Buy,
			Size: decimal.NewFromInt(10), OrderID: "oid-a",
		})
	})
	g.Go(func() error {
		return m.UpsertOrder(Update{
			ID: "b", State: gridcore.Active, Type: gridcore.Sell,
			Size: decimal.NewFromInt(10), OrderID: "oid-b",
		})
	})
	require.NoError(t, g.Wait())

	a, _ := m.GetSlot("a")
	b, _ := m.GetSlot("b")
	assert.Equal(t, gridcore.Active, a.State)
	assert.Equal(t, gridcore.Active, b.State)
	assert.NoError(t, m.AssertIndexConsistency())
}
