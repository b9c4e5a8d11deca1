// Package pnl orchestrates the ledger replay, cost-basis strategies, and
// price source into realized and unrealized profit/loss figures.
//
// Realized P&L is recognized per disposal at the moment of disposal:
// proceeds minus matched acquisition cost minus fees. Unrealized P&L
// marks the remaining holdings against a current price; a holding whose
// price is unavailable is skipped with a warning, never zeroed and never
// an error, so one missing price cannot corrupt the whole summary.
package pnl

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cryptfolio/pnl-engine/internal/costbasis"
	"github.com/cryptfolio/pnl-engine/internal/ledger"
	"github.com/cryptfolio/pnl-engine/internal/metrics"
	"github.com/cryptfolio/pnl-engine/internal/model"
	"github.com/cryptfolio/pnl-engine/internal/money"
	"github.com/cryptfolio/pnl-engine/internal/price"
	"github.com/cryptfolio/pnl-engine/internal/store"
)

// Engine computes P&L over a store and a price source. Both are injected
// at construction; the engine holds no other state and is safe for
// concurrent use.
type Engine struct {
	store  store.Store
	prices price.Source
	now    func() time.Time
}

// NewEngine creates an engine over the given store and price source.
func NewEngine(st store.Store, prices price.Source) *Engine {
	return &Engine{store: st, prices: prices, now: func() time.Time { return time.Now().UTC() }}
}

// RecomputeHoldings replays the full transaction history for one
// (owner, asset) pair under the given method and upserts the resulting
// holding. Always a full replay, never an incremental patch.
func (e *Engine) RecomputeHoldings(ctx context.Context, owner, asset string, method model.Method) (*model.Holding, error) {
	start := time.Now()
	defer func() {
		metrics.RecomputeDuration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	}()

	txs, err := e.store.GetTransactions(ctx, owner, asset)
	if err != nil {
		return nil, err
	}

	proj := ledger.Replay(owner, asset, method, txs, e.now())
	if err := e.store.UpsertHolding(ctx, &proj.Holding); err != nil {
		return nil, err
	}
	return &proj.Holding, nil
}

// RealizedEntry is the realized P&L of one disposal transaction.
type RealizedEntry struct {
	Asset         string          `json:"asset"`
	TransactionID string          `json:"transaction_id"`
	Hash          string          `json:"hash"`
	Proceeds      decimal.Decimal `json:"proceeds"`
	Cost          decimal.Decimal `json:"cost"`
	FeeUSD        decimal.Decimal `json:"fee_usd"`
	PnL           decimal.Decimal `json:"pnl"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Realized replays (owner, asset) under the given method and computes
// realized P&L per disposal in timestamp order. One audit record is
// appended per disposal; the append is idempotent on the transaction
// reference, so recomputation never duplicates the trail.
func (e *Engine) Realized(ctx context.Context, owner, asset string, method model.Method) ([]RealizedEntry, error) {
	txs, err := e.store.GetTransactions(ctx, owner, asset)
	if err != nil {
		return nil, err
	}

	var entries []RealizedEntry
	var lots []model.Lot

	for _, tx := range txs {
		switch tx.Kind {
		case model.KindAcquisition:
			if tx.Quantity.IsPositive() {
				lots = append(lots, model.Lot{
					Quantity:  tx.Quantity,
					UnitPrice: tx.UnitPrice,
					Timestamp: tx.Timestamp,
				})
			}
			continue
		case model.KindDisposal, model.KindSwap:
			// handled below
		default:
			continue
		}

		res := costbasis.Match(method, lots, tx.Quantity)
		lots = res.Remaining
		if res.Consumed.IsZero() && tx.Quantity.IsPositive() {
			slog.Warn("disposal with no purchase history, cost basis zero",
				"owner", owner, "asset", asset, "hash", tx.Hash)
		}

		proceeds := tx.Quantity.Mul(tx.UnitPrice)
		cost := tx.Quantity.Mul(res.CostPerUnit)
		feeUSD := e.feeUSD(ctx, tx)
		pnl := money.USD(proceeds.Sub(cost).Sub(feeUSD))

		entry := RealizedEntry{
			Asset:         asset,
			TransactionID: tx.ID,
			Hash:          tx.Hash,
			Proceeds:      money.USD(proceeds),
			Cost:          money.USD(cost),
			FeeUSD:        money.USD(feeUSD),
			PnL:           pnl,
			Timestamp:     tx.Timestamp,
		}
		entries = append(entries, entry)

		rec := &model.RealizedPnL{
			ID:            uuid.New().String(),
			Owner:         owner,
			Asset:         asset,
			AmountUSD:     pnl,
			TransactionID: tx.ID,
			CalculatedAt:  e.now(),
		}
		if _, err := e.store.InsertRealizedPnL(ctx, rec); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// feeUSD values a transaction's fee in USD. A fee denominated in the
// traded asset prices at the disposal's own unit price; a foreign fee
// asset is valued through the historical price source. An unavailable
// fee price resolves to zero with a warning rather than failing the
// disposal.
func (e *Engine) feeUSD(ctx context.Context, tx model.Transaction) decimal.Decimal {
	if !tx.FeeQty.IsPositive() {
		return decimal.Zero
	}
	if tx.FeeAsset == "" || tx.FeeAsset == tx.Asset {
		return tx.FeeQty.Mul(tx.UnitPrice)
	}
	p, err := e.prices.At(ctx, tx.FeeAsset, tx.Timestamp)
	if err != nil {
		slog.Warn("fee asset price unavailable, fee valued at zero",
			"owner", tx.Owner, "asset", tx.Asset, "fee_asset", tx.FeeAsset, "hash", tx.Hash)
		return decimal.Zero
	}
	return tx.FeeQty.Mul(p)
}

// UnrealizedEntry is the mark-to-market P&L of one current holding.
type UnrealizedEntry struct {
	Asset          string          `json:"asset"`
	Quantity       decimal.Decimal `json:"quantity"`
	CostBasis      decimal.Decimal `json:"cost_basis"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	PnL            decimal.Decimal `json:"pnl"`
	PercentageGain decimal.Decimal `json:"percentage_gain"`
}

// Unrealized marks each of the owner's holdings under the given method
// against the current price. Holdings without an available price are
// skipped and excluded from the aggregate.
func (e *Engine) Unrealized(ctx context.Context, owner string, method model.Method) ([]UnrealizedEntry, error) {
	holdings, err := e.store.GetHoldings(ctx, owner, method)
	if err != nil {
		return nil, err
	}

	var entries []UnrealizedEntry
	for _, h := range holdings {
		if !h.Quantity.IsPositive() {
			continue
		}
		p, err := e.prices.Current(ctx, h.Asset)
		if err != nil {
			metrics.HoldingsSkippedNoPrice.Inc()
			slog.Warn("current price unavailable, holding skipped",
				"owner", owner, "asset", h.Asset, "method", method)
			continue
		}

		currentValue := h.Quantity.Mul(p)
		pnl := currentValue.Sub(h.CostBasis)

		pct := decimal.Zero
		if !h.CostBasis.IsZero() {
			pct = pnl.Div(h.CostBasis).Mul(decimal.NewFromInt(100))
		}

		entries = append(entries, UnrealizedEntry{
			Asset:          h.Asset,
			Quantity:       h.Quantity,
			CostBasis:      money.USD(h.CostBasis),
			CurrentPrice:   p,
			CurrentValue:   money.USD(currentValue),
			PnL:            money.USD(pnl),
			PercentageGain: money.RoundBank(pct, 2),
		})
	}
	return entries, nil
}

// AssetSummary merges realized and unrealized P&L for one asset. An
// asset that was fully disposed shows zero holdings with nonzero
// realized P&L; an asset never disposed shows the reverse.
type AssetSummary struct {
	Asset         string          `json:"asset"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Quantity      decimal.Decimal `json:"quantity"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	CurrentValue  decimal.Decimal `json:"current_value"`
}

// Summary is the combined P&L picture for one owner under one method.
type Summary struct {
	Owner           string          `json:"owner"`
	Method          model.Method    `json:"method"`
	Assets          []AssetSummary  `json:"assets"`
	TotalRealized   decimal.Decimal `json:"total_realized"`
	TotalUnrealized decimal.Decimal `json:"total_unrealized"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

// ComputeSummary recomputes holdings for every asset the owner has
// touched, then merges realized and unrealized P&L per asset.
func (e *Engine) ComputeSummary(ctx context.Context, owner string, method model.Method) (*Summary, error) {
	assets, err := e.store.GetAssets(ctx, owner)
	if err != nil {
		return nil, err
	}

	byAsset := make(map[string]*AssetSummary)
	get := func(asset string) *AssetSummary {
		if s, ok := byAsset[asset]; ok {
			return s
		}
		s := &AssetSummary{Asset: asset}
		byAsset[asset] = s
		return s
	}

	for _, asset := range assets {
		if _, err := e.RecomputeHoldings(ctx, owner, asset, method); err != nil {
			return nil, err
		}
		entries, err := e.Realized(ctx, owner, asset, method)
		if err != nil {
			return nil, err
		}
		s := get(asset)
		for _, en := range entries {
			s.RealizedPnL = s.RealizedPnL.Add(en.PnL)
		}
	}

	unrealized, err := e.Unrealized(ctx, owner, method)
	if err != nil {
		return nil, err
	}
	for _, en := range unrealized {
		s := get(en.Asset)
		s.UnrealizedPnL = en.PnL
		s.Quantity = en.Quantity
		s.CostBasis = en.CostBasis
		s.CurrentValue = en.CurrentValue
	}

	out := &Summary{Owner: owner, Method: method, GeneratedAt: e.now()}
	for _, asset := range assets {
		s := byAsset[asset]
		out.Assets = append(out.Assets, *s)
		out.TotalRealized = out.TotalRealized.Add(s.RealizedPnL)
		out.TotalUnrealized = out.TotalUnrealized.Add(s.UnrealizedPnL)
	}
	out.TotalPnL = out.TotalRealized.Add(out.TotalUnrealized)
	return out, nil
}
