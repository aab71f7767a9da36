// Package gridstate implements the State Machine (Order Manager): the
// authoritative slot map, its state/type indices, shadow locking, nested
// fund-recalculation pausing, and index-consistency repair. mu guards the
// map and indices; individual slots are plain values under that single
// lock, never independently locked.
package gridstate

import (
	"sync"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
)

// Update describes a requested mutation of one slot, passed to UpsertOrder.
// Pointer fields are optional; nil means "leave unchanged" except where
// noted.
type Update struct {
	ID      string
	State   gridcore.SlotState
	Type    gridcore.SlotType // required; Update never changes Price/Index
	Size    decimal.Decimal
	OrderID string // empty clears the order id
	Flags   gridcore.Flags
}

// Manager is the central state machine owning every grid slot and its
// state-transition indices.
type Manager struct {
	mu sync.RWMutex

	slots        map[string]*gridcore.Slot
	indexByState map[gridcore.SlotState]map[string]struct{}
	indexByType  map[gridcore.SlotType]map[string]struct{}
	orderIndex   map[string]string // orderID -> slotID, enforces the one-claim-per-order rule

	locks       map[string]time.Time
	lockTimeout time.Duration

	pauseDepth int

	needingPriceCorrection map[string]struct{}
	pendingCancellation    map[string]struct{}
	recentlyRotated        map[string]time.Time

	onFundsChanged func()
	logger         core.ILogger

	metrics Counters
}

// Counters tracks invariantViolations, fundRecalcCount,
// lockContentionSkips, and stateTransitions for observability.
type Counters struct {
	InvariantViolations int64
	FundRecalcCount     int64
	LockContentionSkips int64
	StateTransitions    map[string]int64 // "FROM->TO" -> count
}

// New builds an empty Manager. onFundsChanged is invoked synchronously by
// UpsertOrder whenever pauseDepth is zero, so the accountant's fund cells
// stay current with every slot mutation.
func New(lockTimeout time.Duration, onFundsChanged func(), logger core.ILogger) *Manager {
	return &Manager{
		slots: map[string]*gridcore.Slot{},
		indexByState: map[gridcore.SlotState]map[string]struct{}{
			gridcore.Virtual: {}, gridcore.Active: {}, gridcore.Partial: {},
		},
		indexByType: map[gridcore.SlotType]map[string]struct{}{
			gridcore.Buy: {}, gridcore.Sell: {}, gridcore.Spread: {},
		},
		orderIndex:             map[string]string{},
		locks:                  map[string]time.Time{},
		lockTimeout:            lockTimeout,
		needingPriceCorrection: map[string]struct{}{},
		pendingCancellation:    map[string]struct{}{},
		recentlyRotated:        map[string]time.Time{},
		onFundsChanged:         onFundsChanged,
		logger:                 logger,
		metrics:                Counters{StateTransitions: map[string]int64{}},
	}
}

// LoadSlots installs a freshly generated or reloaded grid, replacing any
// existing slots. Used at initialization and after a full regeneration.
func (m *Manager) LoadSlots(slots []*gridcore.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots = make(map[string]*gridcore.Slot, len(slots))
	for st := range m.indexByState {
		m.indexByState[st] = map[string]struct{}{}
	}
	for t := range m.indexByType {
		m.indexByType[t] = map[string]struct{}{}
	}
	m.orderIndex = map[string]string{}

	for _, s := range slots {
		clone := s.Clone()
		m.slots[clone.ID] = clone
		m.indexByState[clone.State][clone.ID] = struct{}{}
		m.indexByType[clone.Type][clone.ID] = struct{}{}
		if clone.HasOrderID() {
			m.orderIndex[clone.OrderID] = clone.ID
		}
	}
}

// GetSlot returns a clone of the current slot, so callers can't mutate
// manager state without going through UpsertOrder.
func (m *Manager) GetSlot(id string) (*gridcore.Slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// SlotsByState returns clones of every slot currently in the given state.
func (m *Manager) SlotsByState(state gridcore.SlotState) []*gridcore.Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*gridcore.Slot, 0, len(m.indexByState[state]))
	for id := range m.indexByState[state] {
		out = append(out, m.slots[id].Clone())
	}
	return out
}

// SlotsByType returns clones of every slot currently of the given type.
func (m *Manager) SlotsByType(t gridcore.SlotType) []*gridcore.Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*gridcore.Slot, 0, len(m.indexByType[t]))
	for id := range m.indexByType[t] {
		out = append(out, m.slots[id].Clone())
	}
	return out
}

// AllSlots returns clones of every slot, ordered by Index, for snapshotting.
func (m *Manager) AllSlots() []*gridcore.Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*gridcore.Slot, len(m.slots))
	for _, s := range m.slots {
		out[s.Index] = s.Clone()
	}
	return out
}

// isTypeChangeLegal allows only the two corollaries of a full fill
// (BUY/SELL -> SPREAD, paired with state -> Virtual) and a rotation/
// placement claiming a spread slot (SPREAD -> BUY/SELL, paired with state
// leaving Virtual).
func isTypeChangeLegal(oldType, newType gridcore.SlotType, newState gridcore.SlotState) bool {
	if oldType == newType {
		return true
	}
	if newType == gridcore.Spread {
		return newState == gridcore.Virtual
	}
	if oldType == gridcore.Spread {
		return newState != gridcore.Virtual
	}
	return false
}

// UpsertOrder is the single mutator for every slot change. It validates id
// presence and state, validates the transition, updates both indices
// (remove-from-old then add-to-new), stores the slot, and — unless fund
// recalc is paused — triggers onFundsChanged. Nothing is partially applied
// on rejection.
func (m *Manager) UpsertOrder(u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID == "" {
		return engerrors.New(engerrors.BadInput, "slot id is required")
	}
	old, ok := m.slots[u.ID]
	if !ok {
		return engerrors.New(engerrors.BadInput, "unknown slot id", u.ID)
	}
	if u.Size.IsNegative() {
		return engerrors.New(engerrors.BadInput, "negative size", u.ID)
	}
	if u.State != old.State && !gridcore.IsLegalTransition(old.State, u.State) {
		m.metrics.InvariantViolations++
		return engerrors.New(engerrors.InvalidTransition,
			"illegal transition "+string(old.State)+"->"+string(u.State), u.ID)
	}
	if !isTypeChangeLegal(old.Type, u.Type, u.State) {
		m.metrics.InvariantViolations++
		return engerrors.New(engerrors.InvalidTransition,
			"illegal type change "+string(old.Type)+"->"+string(u.Type), u.ID)
	}
	// state in {Active, Partial} iff orderId set.
	requiresOrderID := u.State == gridcore.Active || u.State == gridcore.Partial
	if requiresOrderID && u.OrderID == "" {
		return engerrors.New(engerrors.BadInput, "active/partial slot requires an order id", u.ID)
	}
	if !requiresOrderID && u.OrderID != "" {
		return engerrors.New(engerrors.BadInput, "virtual slot must not carry an order id", u.ID)
	}
	// Active requires size >= ideal; undersized must be Partial.
	if u.State == gridcore.Active && u.Size.LessThan(old.IdealSize) {
		return engerrors.New(engerrors.BadInput, "active slot below ideal size, use Partial", u.ID)
	}
	// an order id may be claimed by at most one slot.
	if u.OrderID != "" {
		if owner, claimed := m.orderIndex[u.OrderID]; claimed && owner != u.ID {
			return engerrors.New(engerrors.IndexCorruption, "order id already claimed by another slot", u.ID, owner)
		}
	}

	// All validated — apply.
	if old.HasOrderID() && old.OrderID != u.OrderID {
		delete(m.orderIndex, old.OrderID)
	}
	if u.OrderID != "" {
		m.orderIndex[u.OrderID] = u.ID
	}

	delete(m.indexByState[old.State], u.ID)
	delete(m.indexByType[old.Type], u.ID)

	fromState := old.State
	old.State = u.State
	old.Type = u.Type
	old.Size = u.Size
	old.OrderID = u.OrderID
	old.Flags = u.Flags

	m.indexByState[old.State][u.ID] = struct{}{}
	m.indexByType[old.Type][u.ID] = struct{}{}

	m.metrics.StateTransitions[string(fromState)+"->"+string(u.State)]++

	if m.pauseDepth == 0 && m.onFundsChanged != nil {
		m.metrics.FundRecalcCount++
		m.onFundsChanged()
	}
	return nil
}

// PauseFundRecalc and ResumeFundRecalc implement a nested-pause counter so
// batched mutations trigger exactly one recalculation.
func (m *Manager) PauseFundRecalc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseDepth++
}

func (m *Manager) ResumeFundRecalc() {
	m.mu.Lock()
	depth := 0
	var cb func()
	if m.pauseDepth > 0 {
		m.pauseDepth--
	}
	depth = m.pauseDepth
	cb = m.onFundsChanged
	m.mu.Unlock()
	if depth == 0 && cb != nil {
		m.mu.Lock()
		m.metrics.FundRecalcCount++
		m.mu.Unlock()
		cb()
	}
}

// LockOrders stamps each id with the current time (shadow lock).
func (m *Manager) LockOrders(ids []string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.locks[id] = now
	}
}

// IsLocked reports whether id was locked within LOCK_TIMEOUT_MS of now.
func (m *Manager) IsLocked(id string, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stamp, ok := m.locks[id]
	if !ok {
		return false
	}
	locked := now.Sub(stamp) < m.lockTimeout
	return locked
}

// NoteLockContentionSkip increments the lockContentionSkips metric when a
// caller backs off because a slot it wanted is locked.
func (m *Manager) NoteLockContentionSkip() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.LockContentionSkips++
}

// NeedsPriceCorrection and PendingCancellation expose the two correction
// lists the Sync Engine populates.
func (m *Manager) MarkNeedsPriceCorrection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.needingPriceCorrection[id] = struct{}{}
}

func (m *Manager) ClearNeedsPriceCorrection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.needingPriceCorrection, id)
}

func (m *Manager) OrdersNeedingPriceCorrection() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.needingPriceCorrection))
	for id := range m.needingPriceCorrection {
		out = append(out, id)
	}
	return out
}

func (m *Manager) MarkPendingCancellation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingCancellation[id] = struct{}{}
}

func (m *Manager) OrdersPendingCancellation() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.pendingCancellation))
	for id := range m.pendingCancellation {
		out = append(out, id)
	}
	return out
}

// MarkRecentlyRotated records an on-chain id as rotated within the current
// fill burst, preventing double rotation.
func (m *Manager) MarkRecentlyRotated(orderID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentlyRotated[orderID] = now
}

// WasRecentlyRotated reports whether orderID was rotated within window.
func (m *Manager) WasRecentlyRotated(orderID string, now time.Time, window time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stamp, ok := m.recentlyRotated[orderID]
	if !ok {
		return false
	}
	return now.Sub(stamp) < window
}

// Metrics returns a snapshot of the counters for telemetry export.
func (m *Manager) Metrics() Counters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := Counters{
		InvariantViolations: m.metrics.InvariantViolations,
		FundRecalcCount:     m.metrics.FundRecalcCount,
		LockContentionSkips: m.metrics.LockContentionSkips,
		StateTransitions:    make(map[string]int64, len(m.metrics.StateTransitions)),
	}
	for k, v := range m.metrics.StateTransitions {
		cp.StateTransitions[k] = v
	}
	return cp
}
