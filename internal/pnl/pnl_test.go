package pnl

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptfolio/pnl-engine/internal/model"
	"github.com/cryptfolio/pnl-engine/internal/price"
	"github.com/cryptfolio/pnl-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

const owner = "0xowner"

type env struct {
	store  *store.MemoryStore
	quotes *price.StaticQuotes
	engine *Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	q := price.NewStaticQuotes()
	return &env{
		store:  st,
		quotes: q,
		engine: NewEngine(st, price.NewHistorySource(q)),
	}
}

func (e *env) seed(t *testing.T, asset, hash string, kind model.TxKind, qty, priceUSD float64, offsetHours int) model.Transaction {
	t.Helper()
	tx := model.Transaction{
		ID:        "id-" + hash,
		Owner:     owner,
		Source:    "0xsrc",
		Asset:     asset,
		Hash:      hash,
		Kind:      kind,
		Quantity:  d(qty),
		UnitPrice: d(priceUSD),
		Timestamp: base.Add(time.Duration(offsetHours) * time.Hour),
	}
	inserted, err := e.store.InsertTransaction(context.Background(), &tx)
	if err != nil || !inserted {
		t.Fatalf("seed insert failed: inserted=%v err=%v", inserted, err)
	}
	return tx
}

// Buy 1.5 @ $2000 (cost $3000), sell 1.5 @ $2500 with no fee → $750 exactly.
func TestRealized_SimpleGain(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "buy", model.KindAcquisition, 1.5, 2000, 0)
	e.seed(t, "ETH", "sell", model.KindDisposal, 1.5, 2500, 1)

	entries, err := e.engine.Realized(context.Background(), owner, "ETH", model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 realized entry, got %d", len(entries))
	}
	if !entries[0].PnL.Equal(d(750)) {
		t.Errorf("realized pnl = %s, want 750", entries[0].PnL)
	}
	if !entries[0].Proceeds.Equal(d(3750)) || !entries[0].Cost.Equal(d(3000)) {
		t.Errorf("proceeds/cost = %s/%s, want 3750/3000", entries[0].Proceeds, entries[0].Cost)
	}
}

// A fee denominated in the traded asset: 0.004 units at $2500 = $10 on a
// 1-unit sale → pnl reduced by exactly $10.
func TestRealized_FeeInTradedAsset(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "buy", model.KindAcquisition, 1, 2000, 0)
	sell := model.Transaction{
		ID: "id-sell", Owner: owner, Source: "0xsrc", Asset: "ETH", Hash: "sell",
		Kind: model.KindDisposal, Quantity: d(1), UnitPrice: d(2500),
		FeeQty: d(0.004), FeeAsset: "ETH",
		Timestamp: base.Add(time.Hour),
	}
	if _, err := e.store.InsertTransaction(context.Background(), &sell); err != nil {
		t.Fatal(err)
	}

	entries, err := e.engine.Realized(context.Background(), owner, "ETH", model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entries[0].FeeUSD.Equal(d(10)) {
		t.Errorf("fee = %s, want 10", entries[0].FeeUSD)
	}
	// 2500 − 2000 − 10
	if !entries[0].PnL.Equal(d(490)) {
		t.Errorf("pnl = %s, want 490", entries[0].PnL)
	}
}

func TestRealized_FeeInForeignAsset(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "TOKEN", "buy", model.KindAcquisition, 100, 5, 0)
	sell := model.Transaction{
		ID: "id-sell", Owner: owner, Source: "0xsrc", Asset: "TOKEN", Hash: "sell",
		Kind: model.KindDisposal, Quantity: d(100), UnitPrice: d(8),
		FeeQty: d(0.01), FeeAsset: "ETH",
		Timestamp: base.Add(time.Hour),
	}
	if _, err := e.store.InsertTransaction(context.Background(), &sell); err != nil {
		t.Fatal(err)
	}
	// Fee asset priced one hour before the sale, inside the 24h window.
	e.quotes.SetAt("ETH", base, d(3000))

	entries, err := e.engine.Realized(context.Background(), owner, "TOKEN", model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.01 ETH × $3000 = $30; pnl = 800 − 500 − 30.
	if !entries[0].FeeUSD.Equal(d(30)) {
		t.Errorf("fee = %s, want 30", entries[0].FeeUSD)
	}
	if !entries[0].PnL.Equal(d(270)) {
		t.Errorf("pnl = %s, want 270", entries[0].PnL)
	}
}

// An unavailable fee-asset price resolves the fee to zero rather than
// failing the disposal.
func TestRealized_ForeignFeePriceUnavailable(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "TOKEN", "buy", model.KindAcquisition, 100, 5, 0)
	sell := model.Transaction{
		ID: "id-sell", Owner: owner, Source: "0xsrc", Asset: "TOKEN", Hash: "sell",
		Kind: model.KindDisposal, Quantity: d(100), UnitPrice: d(8),
		FeeQty: d(0.01), FeeAsset: "ETH",
		Timestamp: base.Add(time.Hour),
	}
	if _, err := e.store.InsertTransaction(context.Background(), &sell); err != nil {
		t.Fatal(err)
	}

	entries, err := e.engine.Realized(context.Background(), owner, "TOKEN", model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entries[0].FeeUSD.IsZero() {
		t.Errorf("fee = %s, want 0", entries[0].FeeUSD)
	}
	if !entries[0].PnL.Equal(d(300)) {
		t.Errorf("pnl = %s, want 300", entries[0].PnL)
	}
}

func TestRealized_NoPurchaseHistoryZeroCost(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "sell", model.KindDisposal, 2, 2500, 0)

	entries, err := e.engine.Realized(context.Background(), owner, "ETH", model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entries[0].Cost.IsZero() {
		t.Errorf("cost = %s, want 0", entries[0].Cost)
	}
	if !entries[0].PnL.Equal(d(5000)) {
		t.Errorf("pnl = %s, want 5000", entries[0].PnL)
	}
}

// Recomputing realized P&L never duplicates the audit trail.
func TestRealized_AuditTrailIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "buy", model.KindAcquisition, 1.5, 2000, 0)
	e.seed(t, "ETH", "sell", model.KindDisposal, 1.5, 2500, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.engine.Realized(ctx, owner, "ETH", model.FIFO); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	recs, err := e.store.GetRealizedPnL(ctx, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 audit record after 3 runs, got %d", len(recs))
	}
	if !recs[0].AmountUSD.Equal(d(750)) {
		t.Errorf("recorded amount = %s, want 750", recs[0].AmountUSD)
	}
}

func TestRecomputeHoldings_UpsertsProjection(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "b1", model.KindAcquisition, 10, 1000, 0)
	e.seed(t, "ETH", "b2", model.KindAcquisition, 10, 1500, 1)
	e.seed(t, "ETH", "s1", model.KindDisposal, 15, 2000, 2)
	ctx := context.Background()

	h, err := e.engine.RecomputeHoldings(ctx, owner, "ETH", model.LIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Quantity.Equal(d(5)) {
		t.Errorf("quantity = %s, want 5", h.Quantity)
	}
	if !h.CostBasis.Equal(d(5000)) {
		t.Errorf("cost basis = %s, want 5000", h.CostBasis)
	}

	stored, _ := e.store.GetHoldings(ctx, owner, model.LIFO)
	if len(stored) != 1 || !stored[0].Quantity.Equal(d(5)) {
		t.Errorf("stored holding = %+v", stored)
	}
}

func TestUnrealized_MarkToMarket(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "buy", model.KindAcquisition, 2, 2000, 0)
	ctx := context.Background()
	if _, err := e.engine.RecomputeHoldings(ctx, owner, "ETH", model.FIFO); err != nil {
		t.Fatal(err)
	}
	e.quotes.SetCurrent("ETH", d(3000))

	entries, err := e.engine.Unrealized(ctx, owner, model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !entries[0].PnL.Equal(d(2000)) {
		t.Errorf("pnl = %s, want 2000", entries[0].PnL)
	}
	if !entries[0].PercentageGain.Equal(d(50)) {
		t.Errorf("percentage gain = %s, want 50", entries[0].PercentageGain)
	}
}

// A holding without a current price is skipped, not zeroed and not an error.
func TestUnrealized_MissingPriceSkipsHolding(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "b1", model.KindAcquisition, 2, 2000, 0)
	e.seed(t, "BTC", "b2", model.KindAcquisition, 1, 40000, 0)
	ctx := context.Background()
	for _, asset := range []string{"ETH", "BTC"} {
		if _, err := e.engine.RecomputeHoldings(ctx, owner, asset, model.FIFO); err != nil {
			t.Fatal(err)
		}
	}
	e.quotes.SetCurrent("ETH", d(2500))

	entries, err := e.engine.Unrealized(ctx, owner, model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Asset != "ETH" {
		t.Errorf("expected only the priced ETH holding, got %+v", entries)
	}
}

// Zero cost basis reports 0% gain, not a division error.
func TestUnrealized_ZeroCostBasis(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "AIR", "drop", model.KindAcquisition, 100, 0, 0)
	ctx := context.Background()
	if _, err := e.engine.RecomputeHoldings(ctx, owner, "AIR", model.FIFO); err != nil {
		t.Fatal(err)
	}
	e.quotes.SetCurrent("AIR", d(2))

	entries, err := e.engine.Unrealized(ctx, owner, model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entries[0].PercentageGain.IsZero() {
		t.Errorf("percentage gain = %s, want 0", entries[0].PercentageGain)
	}
	if !entries[0].PnL.Equal(d(200)) {
		t.Errorf("pnl = %s, want 200", entries[0].PnL)
	}
}

func TestComputeSummary_MergesRealizedAndUnrealized(t *testing.T) {
	e := newEnv(t)
	// ETH: fully disposed, realized only.
	e.seed(t, "ETH", "e-buy", model.KindAcquisition, 1, 2000, 0)
	e.seed(t, "ETH", "e-sell", model.KindDisposal, 1, 2500, 1)
	// BTC: never disposed, unrealized only.
	e.seed(t, "BTC", "b-buy", model.KindAcquisition, 1, 40000, 0)
	e.quotes.SetCurrent("BTC", d(50000))

	sum, err := e.engine.ComputeSummary(context.Background(), owner, model.FIFO)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byAsset := make(map[string]AssetSummary)
	for _, a := range sum.Assets {
		byAsset[a.Asset] = a
	}

	eth := byAsset["ETH"]
	if !eth.RealizedPnL.Equal(d(500)) {
		t.Errorf("ETH realized = %s, want 500", eth.RealizedPnL)
	}
	if !eth.UnrealizedPnL.IsZero() || !eth.Quantity.IsZero() {
		t.Errorf("fully disposed ETH should carry no holdings: %+v", eth)
	}

	btc := byAsset["BTC"]
	if !btc.RealizedPnL.IsZero() {
		t.Errorf("BTC realized = %s, want 0", btc.RealizedPnL)
	}
	if !btc.UnrealizedPnL.Equal(d(10000)) {
		t.Errorf("BTC unrealized = %s, want 10000", btc.UnrealizedPnL)
	}

	if !sum.TotalRealized.Equal(d(500)) || !sum.TotalUnrealized.Equal(d(10000)) {
		t.Errorf("totals = %s/%s, want 500/10000", sum.TotalRealized, sum.TotalUnrealized)
	}
	if !sum.TotalPnL.Equal(d(10500)) {
		t.Errorf("total pnl = %s, want 10500", sum.TotalPnL)
	}
}

// All three methods agree when every acquisition carries the same price.
func TestRealized_MethodsAgreeOnUniformPrices(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "ETH", "b1", model.KindAcquisition, 5, 1000, 0)
	e.seed(t, "ETH", "b2", model.KindAcquisition, 5, 1000, 1)
	e.seed(t, "ETH", "s1", model.KindDisposal, 7, 1200, 2)

	var pnls []decimal.Decimal
	for _, m := range model.Methods() {
		entries, err := e.engine.Realized(context.Background(), owner, "ETH", m)
		if err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		pnls = append(pnls, entries[0].PnL)
	}
	for i := 1; i < len(pnls); i++ {
		if !pnls[i].Equal(pnls[0]) {
			t.Errorf("methods disagree on uniform prices: %v", pnls)
		}
	}
}
