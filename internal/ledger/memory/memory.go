// Package memory implements an in-process ledger store. It backs tests and
// the DATA_BACKEND=memory mode, where nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"caseledger/internal/core"
)

type Store struct {
	mu     sync.RWMutex
	nextID int64
	txs    []core.Transaction
	sums   map[int64]core.Summary
}

func New() *Store {
	return &Store{sums: make(map[int64]core.Summary)}
}

func (s *Store) Append(_ context.Context, userID int64, kind core.TxKind, amount core.Money) (core.Transaction, error) {
	tx := core.Transaction{
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	tx.ID = s.nextID
	s.txs = append(s.txs, tx)
	s.sums[userID] = core.ComputeSummary(userID, s.userTxsLocked(userID))
	return tx, nil
}

func (s *Store) Summary(_ context.Context, userID int64) (core.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sum, ok := s.sums[userID]; ok {
		return sum, nil
	}
	return core.ZeroSummary(userID), nil
}

func (s *Store) History(_ context.Context, userID int64) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userTxsLocked(userID), nil
}

func (s *Store) Reset(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.txs[:0]
	for _, t := range s.txs {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	s.txs = kept
	delete(s.sums, userID)
	return nil
}

func (s *Store) Snapshot(_ context.Context) (core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := core.Snapshot{
		Transactions: append([]core.Transaction(nil), s.txs...),
	}
	for _, t := range s.txs {
		if _, seen := findSummary(snap.Summaries, t.UserID); !seen {
			snap.Summaries = append(snap.Summaries, s.sums[t.UserID])
		}
	}
	return snap, nil
}

// userTxsLocked copies the user's rows so callers never share the backing
// slice with the store.
func (s *Store) userTxsLocked(userID int64) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func findSummary(sums []core.Summary, userID int64) (core.Summary, bool) {
	for _, s := range sums {
		if s.UserID == userID {
			return s, true
		}
	}
	return core.Summary{}, false
}
