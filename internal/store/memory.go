package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cryptfolio/pnl-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	txs      []model.Transaction
	txKeys   map[string]bool // owner|hash|source
	holdings map[string]model.Holding
	realized []model.RealizedPnL
	realKeys map[string]bool // owner|transactionID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txKeys:   make(map[string]bool),
		holdings: make(map[string]model.Holding),
		realKeys: make(map[string]bool),
	}
}

func txKey(owner, hash, source string) string { return owner + "|" + hash + "|" + source }

func holdingKey(h *model.Holding) string { return h.Owner + "|" + h.Asset + "|" + string(h.Method) }

func realizedKey(owner, txID string) string { return owner + "|" + txID }

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *model.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := txKey(tx.Owner, tx.Hash, tx.Source)
	if s.txKeys[key] {
		return false, nil
	}
	s.txKeys[key] = true
	s.txs = append(s.txs, *tx)
	return true, nil
}

func (s *MemoryStore) GetTransactions(_ context.Context, owner, asset string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for _, tx := range s.txs {
		if tx.Owner == owner && tx.Asset == asset {
			result = append(result, tx)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *MemoryStore) GetAssets(_ context.Context, owner string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var assets []string
	for _, tx := range s.txs {
		if tx.Owner == owner && !seen[tx.Asset] {
			seen[tx.Asset] = true
			assets = append(assets, tx.Asset)
		}
	}
	sort.Strings(assets)
	return assets, nil
}

func (s *MemoryStore) UpsertHolding(_ context.Context, h *model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings[holdingKey(h)] = *h
	return nil
}

func (s *MemoryStore) GetHoldings(_ context.Context, owner string, method model.Method) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Holding
	for _, h := range s.holdings {
		if h.Owner == owner && h.Method == method {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Asset < result[j].Asset })
	return result, nil
}

func (s *MemoryStore) InsertRealizedPnL(_ context.Context, rec *model.RealizedPnL) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := realizedKey(rec.Owner, rec.TransactionID)
	if s.realKeys[key] {
		return false, nil
	}
	s.realKeys[key] = true
	s.realized = append(s.realized, *rec)
	return true, nil
}

func (s *MemoryStore) GetRealizedPnL(_ context.Context, owner string) ([]model.RealizedPnL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.RealizedPnL
	for _, r := range s.realized {
		if r.Owner == owner {
			result = append(result, r)
		}
	}
	return result, nil
}
