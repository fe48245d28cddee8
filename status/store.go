// Package status keeps the latest run state in memory and serves it over HTTP.
package status

import (
	"context"
	"strings"
	"sync"

	"github.com/ClipFinance/stargate-bridger/common/types"
)

// DefaultMaxLegs bounds how many leg records the store keeps.
const DefaultMaxLegs = 10_000

// Store holds finished legs and the latest balance report.
// It implements the scheduler recorder and the balance report sink.
type Store struct {
	mu       sync.RWMutex
	maxLegs  int
	legs     []types.LegRecord
	balances []types.BalanceEntry
}

// NewStore creates a store keeping at most maxLegs records, dropping the oldest first.
func NewStore(maxLegs int) *Store {
	if maxLegs <= 0 {
		maxLegs = DefaultMaxLegs
	}
	return &Store{maxLegs: maxLegs}
}

// RecordLeg stores a copy of the record.
func (s *Store) RecordLeg(_ context.Context, rec *types.LegRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.legs = append(s.legs, *rec)
	if over := len(s.legs) - s.maxLegs; over > 0 {
		s.legs = append(s.legs[:0:0], s.legs[over:]...)
	}
	return nil
}

// SetBalances replaces the balance report.
func (s *Store) SetBalances(entries []types.BalanceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append([]types.BalanceEntry(nil), entries...)
}

// Legs returns the stored legs in recording order.
func (s *Store) Legs() []types.LegRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.LegRecord{}, s.legs...)
}

// WalletLegs returns the legs of one wallet. Addresses compare case-insensitively.
func (s *Store) WalletLegs(address string) []types.LegRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	legs := []types.LegRecord{}
	for _, leg := range s.legs {
		if strings.EqualFold(leg.Wallet, address) {
			legs = append(legs, leg)
		}
	}
	return legs
}

// Balances returns the latest balance report.
func (s *Store) Balances() []types.BalanceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.BalanceEntry{}, s.balances...)
}
