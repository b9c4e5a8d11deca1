package price

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CachedSource wraps a Source with a Redis cache. Historical prices are
// immutable once resolved and are cached without expiry; current prices
// change continuously and are cached with a short TTL. Misses are never
// cached.
type CachedSource struct {
	inner      Source
	rdb        *redis.Client
	currentTTL time.Duration
}

// NewCachedSource creates a cached wrapper around a price source.
func NewCachedSource(inner Source, rdb *redis.Client, currentTTL time.Duration) *CachedSource {
	return &CachedSource{
		inner:      inner,
		rdb:        rdb,
		currentTTL: currentTTL,
	}
}

func (s *CachedSource) Current(ctx context.Context, asset string) (decimal.Decimal, error) {
	if v, err := s.rdb.Get(ctx, currentKey(asset)).Result(); err == nil {
		if p, perr := decimal.NewFromString(v); perr == nil {
			return p, nil
		}
	}

	p, err := s.inner.Current(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}

	s.rdb.Set(ctx, currentKey(asset), p.String(), s.currentTTL)
	return p, nil
}

func (s *CachedSource) At(ctx context.Context, asset string, ts time.Time) (decimal.Decimal, error) {
	if v, err := s.rdb.Get(ctx, historyKey(asset, ts)).Result(); err == nil {
		if p, perr := decimal.NewFromString(v); perr == nil {
			return p, nil
		}
	}

	p, err := s.inner.At(ctx, asset, ts)
	if err != nil {
		return decimal.Zero, err
	}

	// No expiry: a resolved historical price never changes.
	s.rdb.Set(ctx, historyKey(asset, ts), p.String(), 0)
	return p, nil
}

func currentKey(asset string) string { return fmt.Sprintf("price:current:%s", asset) }

func historyKey(asset string, ts time.Time) string {
	return fmt.Sprintf("price:hist:%s:%d", asset, ts.Unix())
}
