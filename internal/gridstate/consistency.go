package gridstate

import (
	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"
)

// AssertIndexConsistency verifies the index-consistency invariants and rebuilds the
// indices from the slot map if corruption is detected. Corruption is always
// logged; if the rebuilt indices still fail verification the slot map
// itself is inconsistent and IndexCorruption is returned so the caller can
// treat it as fatal for the bot instance.
func (m *Manager) AssertIndexConsistency() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	problems := m.checkLocked()
	if len(problems) == 0 {
		return nil
	}

	if m.logger != nil {
		m.logger.Error("grid index corruption detected, rebuilding", "problems", problems)
	}
	m.metrics.InvariantViolations += int64(len(problems))
	m.rebuildLocked()

	problems = m.checkLocked()
	if len(problems) > 0 {
		return engerrors.New(engerrors.IndexCorruption, "index corruption persists after rebuild")
	}
	return nil
}

// checkLocked returns a human-readable list of invariant violations found
// by scanning the slot map against the indices. Caller must hold m.mu.
func (m *Manager) checkLocked() []string {
	var problems []string

	seenOrderIDs := map[string]string{}
	spreadCount := 0

	for id, s := range m.slots {
		// state/type indices contain id and are subsets of slots' keys.
		if _, ok := m.indexByState[s.State][id]; !ok {
			problems = append(problems, "slot "+id+" missing from state index "+string(s.State))
		}
		if _, ok := m.indexByType[s.Type][id]; !ok {
			problems = append(problems, "slot "+id+" missing from type index "+string(s.Type))
		}
		// state in {Active, Partial} iff orderId set.
		wantsOrderID := s.State == gridcore.Active || s.State == gridcore.Partial
		if wantsOrderID != s.HasOrderID() {
			problems = append(problems, "slot "+id+" state/orderId mismatch")
		}
		// each order id claimed by at most one slot.
		if s.HasOrderID() {
			if owner, dup := seenOrderIDs[s.OrderID]; dup {
				problems = append(problems, "order id "+s.OrderID+" claimed by both "+owner+" and "+id)
			}
			seenOrderIDs[s.OrderID] = id
		}
		if s.Type == gridcore.Spread {
			spreadCount++
			if s.State != gridcore.Virtual {
				problems = append(problems, "spread slot "+id+" is not VIRTUAL")
			}
		}
	}

	for state, ids := range m.indexByState {
		for id := range ids {
			s, ok := m.slots[id]
			if !ok {
				problems = append(problems, "state index "+string(state)+" references unknown slot "+id)
				continue
			}
			if s.State != state {
				problems = append(problems, "state index "+string(state)+" stale entry "+id)
			}
		}
	}
	for typ, ids := range m.indexByType {
		for id := range ids {
			s, ok := m.slots[id]
			if !ok {
				problems = append(problems, "type index "+string(typ)+" references unknown slot "+id)
				continue
			}
			if s.Type != typ {
				problems = append(problems, "type index "+string(typ)+" stale entry "+id)
			}
		}
	}
	// SPREAD count equals the number of SPREAD-typed slots (tautological
	// by construction above, kept as an explicit recount for defense).
	if spreadCount != len(m.indexByType[gridcore.Spread]) {
		problems = append(problems, "spread count mismatch")
	}

	return problems
}

// rebuildLocked reconstructs indices from the slot map, the source of
// truth. Caller must hold m.mu.
func (m *Manager) rebuildLocked() {
	for st := range m.indexByState {
		m.indexByState[st] = map[string]struct{}{}
	}
	for t := range m.indexByType {
		m.indexByType[t] = map[string]struct{}{}
	}
	m.orderIndex = map[string]string{}

	for id, s := range m.slots {
		m.indexByState[s.State][id] = struct{}{}
		m.indexByType[s.Type][id] = struct{}{}
		if s.HasOrderID() {
			// Last writer wins if two slots claimed the same id; the
			// surviving duplicate-claim violation (if any) is caught by the next check.
			m.orderIndex[s.OrderID] = id
		}
	}
}
