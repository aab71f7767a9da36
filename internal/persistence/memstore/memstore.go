// Package memstore is an in-process persistence.Store, used by dry-run bots
// and tests. It reloads its map entry before every write so concurrent
// callers on the same botKey (there should be exactly one writer per bot,
// but the contract is shared across the package) never lose an update.
package memstore

import (
	"context"
	"sync"

	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"
	"gridbot/internal/persistence"

	"github.com/shopspring/decimal"
)

type botRecord struct {
	snapshot  *persistence.Snapshot
	funds     persistence.CacheFunds
	feesOwed  map[gridcore.Side]decimal.Decimal
	triggered bool
}

// Store is the in-memory persistence.Store implementation.
type Store struct {
	mu   sync.Mutex
	bots map[string]*botRecord
}

// New builds an empty Store.
func New() *Store {
	return &Store{bots: map[string]*botRecord{}}
}

func (s *Store) record(botKey string) *botRecord {
	r, ok := s.bots[botKey]
	if !ok {
		r = &botRecord{feesOwed: map[gridcore.Side]decimal.Decimal{}}
		s.bots[botKey] = r
	}
	return r
}

func (s *Store) LoadGridSnapshot(ctx context.Context, botKey string) (*persistence.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(botKey)
	if r.snapshot == nil {
		return nil, engerrors.New(engerrors.PersistenceTransient, "memstore: no snapshot for "+botKey)
	}
	cp := *r.snapshot
	cp.Slots = append([]persistence.SlotRecord(nil), r.snapshot.Slots...)
	return &cp, nil
}

func (s *Store) SaveGridSnapshot(ctx context.Context, botKey string, snap *persistence.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(botKey)
	cp := *snap
	cp.Slots = append([]persistence.SlotRecord(nil), snap.Slots...)
	r.snapshot = &cp
	return nil
}

func (s *Store) LoadCacheFunds(ctx context.Context, botKey string) (persistence.CacheFunds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(botKey).funds, nil
}

func (s *Store) UpdateCacheFunds(ctx context.Context, botKey string, funds persistence.CacheFunds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(botKey).funds = funds
	return nil
}

func (s *Store) LoadFeesOwed(ctx context.Context, botKey string) (map[gridcore.Side]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(botKey)
	out := make(map[gridcore.Side]decimal.Decimal, len(r.feesOwed))
	for k, v := range r.feesOwed {
		out[k] = v
	}
	return out, nil
}

func (s *Store) UpdateFeesOwed(ctx context.Context, botKey string, fees map[gridcore.Side]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.record(botKey)
	r.feesOwed = make(map[gridcore.Side]decimal.Decimal, len(fees))
	for k, v := range fees {
		r.feesOwed[k] = v
	}
	return nil
}

func (s *Store) HasRegenerationTrigger(ctx context.Context, botKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(botKey).triggered, nil
}

func (s *Store) ClearRegenerationTrigger(ctx context.Context, botKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(botKey).triggered = false
	return nil
}

// SetRegenerationTrigger is test/ops-only: memstore has no filesystem, so
// there is no recalculate.<botKey>.trigger file to drop; callers that need
// to simulate the trigger call this directly.
func (s *Store) SetRegenerationTrigger(botKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(botKey).triggered = true
}
