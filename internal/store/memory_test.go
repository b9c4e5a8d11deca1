package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptfolio/pnl-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testTx(hash, source string, offsetHours int) *model.Transaction {
	return &model.Transaction{
		ID:        "id-" + hash + "-" + source,
		Owner:     "alice",
		Source:    source,
		Asset:     "ETH",
		Hash:      hash,
		Kind:      model.KindAcquisition,
		Quantity:  d(1),
		UnitPrice: d(2000),
		Timestamp: base.Add(time.Duration(offsetHours) * time.Hour),
	}
}

func TestInsertTransaction_DuplicateKeyIsNoOp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, err := s.InsertTransaction(ctx, testTx("h1", "src", 0))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = s.InsertTransaction(ctx, testTx("h1", "src", 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted {
		t.Error("duplicate (owner, hash, source) should not insert")
	}

	// Same hash from a different source is a distinct record.
	inserted, _ = s.InsertTransaction(ctx, testTx("h1", "other-src", 1))
	if !inserted {
		t.Error("same hash from a different source should insert")
	}
}

func TestGetTransactions_OrderedByTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.InsertTransaction(ctx, testTx("h2", "src", 2))
	s.InsertTransaction(ctx, testTx("h0", "src", 0))
	s.InsertTransaction(ctx, testTx("h1", "src", 1))

	txs, err := s.GetTransactions(ctx, "alice", "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Timestamp.Before(txs[i-1].Timestamp) {
			t.Errorf("transactions out of order at %d", i)
		}
	}
}

func TestGetAssets_Distinct(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	eth := testTx("h1", "src", 0)
	s.InsertTransaction(ctx, eth)
	btc := testTx("h2", "src", 1)
	btc.Asset = "BTC"
	s.InsertTransaction(ctx, btc)
	eth2 := testTx("h3", "src", 2)
	s.InsertTransaction(ctx, eth2)

	assets, err := s.GetAssets(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assets) != 2 || assets[0] != "BTC" || assets[1] != "ETH" {
		t.Errorf("assets = %v, want [BTC ETH]", assets)
	}
}

func TestUpsertHolding_ReplacesRow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	h := &model.Holding{Owner: "alice", Asset: "ETH", Method: model.FIFO, Quantity: d(10), CostBasis: d(10000)}
	s.UpsertHolding(ctx, h)
	h2 := &model.Holding{Owner: "alice", Asset: "ETH", Method: model.FIFO, Quantity: d(5), CostBasis: d(7500)}
	s.UpsertHolding(ctx, h2)

	holdings, _ := s.GetHoldings(ctx, "alice", model.FIFO)
	if len(holdings) != 1 {
		t.Fatalf("expected 1 holding, got %d", len(holdings))
	}
	if !holdings[0].Quantity.Equal(d(5)) {
		t.Errorf("quantity = %s, want 5 (upsert should replace)", holdings[0].Quantity)
	}

	// Methods are independent rows.
	lifo := &model.Holding{Owner: "alice", Asset: "ETH", Method: model.LIFO, Quantity: d(10), CostBasis: d(10000)}
	s.UpsertHolding(ctx, lifo)
	holdings, _ = s.GetHoldings(ctx, "alice", model.FIFO)
	if len(holdings) != 1 {
		t.Errorf("LIFO upsert must not affect FIFO holdings")
	}
}

func TestInsertRealizedPnL_IdempotentOnTransaction(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := &model.RealizedPnL{
		ID: "r1", Owner: "alice", Asset: "ETH",
		AmountUSD: d(750), TransactionID: "tx1", CalculatedAt: base,
	}
	inserted, err := s.InsertRealizedPnL(ctx, rec)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	dup := *rec
	dup.ID = "r2" // new record ID, same transaction reference
	inserted, err = s.InsertRealizedPnL(ctx, &dup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted {
		t.Error("second record for the same transaction should not insert")
	}

	recs, _ := s.GetRealizedPnL(ctx, "alice")
	if len(recs) != 1 {
		t.Errorf("expected 1 record, got %d", len(recs))
	}
}
