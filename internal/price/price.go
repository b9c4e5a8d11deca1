// Package price defines the market-price contract the P&L engine
// consumes. The engine never fetches prices itself; it queries a Source
// and treats a miss as a documented, recoverable condition.
//
// The historical contract: try the exact timestamp first, then search an
// expanding ring of offsets (±1h, ±2h, ±4h, ±8h, ±12h, ±24h) and return
// the first hit. Beyond the 24-hour window the price is unavailable.
// Historical results are immutable once resolved and may be cached
// indefinitely; current prices change continuously and may only be
// cached briefly (see CachedSource).
package price

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when no price can be resolved for an asset.
var ErrUnavailable = errors.New("price: unavailable")

// Source resolves current and historical USD prices for an asset.
type Source interface {
	// Current returns the latest USD price, or ErrUnavailable.
	Current(ctx context.Context, asset string) (decimal.Decimal, error)

	// At returns the USD price closest to ts within the 24-hour search
	// window, or ErrUnavailable.
	At(ctx context.Context, asset string, ts time.Time) (decimal.Decimal, error)
}

// Quotes is the low-level provider contract: exact-timestamp lookups
// only. HistorySource layers the expanding-window search on top.
type Quotes interface {
	CurrentQuote(ctx context.Context, asset string) (decimal.Decimal, error)
	QuoteAt(ctx context.Context, asset string, ts time.Time) (decimal.Decimal, error)
}

// offsets tried after the exact timestamp, each applied as -offset then
// +offset. The earlier side is preferred at each ring so a resolved
// price never forward-looks further than it has to.
var offsets = []time.Duration{
	time.Hour,
	2 * time.Hour,
	4 * time.Hour,
	8 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
}

// HistorySource implements Source over an exact-timestamp Quotes
// provider using the expanding-window search.
type HistorySource struct {
	quotes Quotes
}

// NewHistorySource wraps a Quotes provider.
func NewHistorySource(q Quotes) *HistorySource {
	return &HistorySource{quotes: q}
}

func (s *HistorySource) Current(ctx context.Context, asset string) (decimal.Decimal, error) {
	return s.quotes.CurrentQuote(ctx, asset)
}

func (s *HistorySource) At(ctx context.Context, asset string, ts time.Time) (decimal.Decimal, error) {
	if p, err := s.quotes.QuoteAt(ctx, asset, ts); err == nil {
		return p, nil
	}
	for _, off := range offsets {
		if p, err := s.quotes.QuoteAt(ctx, asset, ts.Add(-off)); err == nil {
			return p, nil
		}
		if p, err := s.quotes.QuoteAt(ctx, asset, ts.Add(off)); err == nil {
			return p, nil
		}
	}
	return decimal.Zero, ErrUnavailable
}
