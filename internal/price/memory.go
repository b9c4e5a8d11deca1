package price

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// StaticQuotes implements Quotes with in-memory maps. Used for testing
// and development; historical quotes are keyed by exact timestamp.
type StaticQuotes struct {
	mu      sync.RWMutex
	current map[string]decimal.Decimal
	history map[string]map[int64]decimal.Decimal // asset → unix seconds → price
}

// NewStaticQuotes creates an empty in-memory quote provider.
func NewStaticQuotes() *StaticQuotes {
	return &StaticQuotes{
		current: make(map[string]decimal.Decimal),
		history: make(map[string]map[int64]decimal.Decimal),
	}
}

// SetCurrent sets the current price for an asset.
func (q *StaticQuotes) SetCurrent(asset string, p decimal.Decimal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current[asset] = p
}

// SetAt records a historical price at an exact timestamp.
func (q *StaticQuotes) SetAt(asset string, ts time.Time, p decimal.Decimal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.history[asset] == nil {
		q.history[asset] = make(map[int64]decimal.Decimal)
	}
	q.history[asset][ts.Unix()] = p
}

func (q *StaticQuotes) CurrentQuote(_ context.Context, asset string) (decimal.Decimal, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	p, ok := q.current[asset]
	if !ok {
		return decimal.Zero, ErrUnavailable
	}
	return p, nil
}

func (q *StaticQuotes) QuoteAt(_ context.Context, asset string, ts time.Time) (decimal.Decimal, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	p, ok := q.history[asset][ts.Unix()]
	if !ok {
		return decimal.Zero, ErrUnavailable
	}
	return p, nil
}
