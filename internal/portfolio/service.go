// Package portfolio provides the HTTP handlers wiring ingestion, holdings
// recomputation, and P&L summaries to the outside world.
//
// All quantities and USD values use shopspring/decimal, never float64.
package portfolio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cryptfolio/pnl-engine/internal/ingest"
	"github.com/cryptfolio/pnl-engine/internal/model"
	"github.com/cryptfolio/pnl-engine/internal/pnl"
	"github.com/cryptfolio/pnl-engine/internal/store"
)

// Service handles portfolio operations. The ingestion guard inside the
// Ingester serializes syncs per (owner, source); everything else is
// stateless and safe to call concurrently.
type Service struct {
	store    store.Store
	ingester *ingest.Ingester
	engine   *pnl.Engine
	hub      *Hub // optional WebSocket hub for holding-update broadcasts
}

// NewService creates a new portfolio service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, in *ingest.Ingester, engine *pnl.Engine, hub *Hub) *Service {
	return &Service{
		store:    st,
		ingester: in,
		engine:   engine,
		hub:      hub,
	}
}

// --- Request/Response types ---

// SyncRequest is the JSON body for POST /sync.
type SyncRequest struct {
	Owner     string              `json:"owner"`
	Source    string              `json:"source"`
	Transfers []model.RawTransfer `json:"transfers"`
}

// SyncResponse reports the batch outcome plus the holdings recomputed
// from the new transactions.
type SyncResponse struct {
	Result   *ingest.Result  `json:"result"`
	Holdings []model.Holding `json:"holdings"`
}

// RecomputeRequest is the JSON body for POST /holdings/recompute.
type RecomputeRequest struct {
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Method string `json:"method"` // empty → all methods
}

// --- HTTP Handlers ---

// Sync handles POST /api/v1/sync. Ingests a transfer batch, recomputes
// holdings for every touched asset under every method, and broadcasts
// the updates. A sync already in flight for the same (owner, source)
// yields 409 with a distinct error body.
func (s *Service) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" || req.Source == "" {
		writeError(w, "owner and source are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	res, err := s.ingester.Sync(ctx, req.Owner, req.Source, req.Transfers)
	if err != nil {
		if errors.Is(err, ingest.ErrSyncInProgress) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var holdings []model.Holding
	for _, asset := range res.Assets {
		for _, method := range model.Methods() {
			h, err := s.engine.RecomputeHoldings(ctx, req.Owner, asset, method)
			if err != nil {
				writeError(w, "failed to recompute holdings", http.StatusInternalServerError)
				return
			}
			holdings = append(holdings, *h)
			s.broadcastHolding(h)
		}
	}

	slog.Info("sync handled",
		"owner", req.Owner,
		"source", req.Source,
		"ingested", res.Ingested,
		"skipped", res.Skipped,
		"record_errors", len(res.Errors),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SyncResponse{Result: res, Holdings: holdings})
}

// Recompute handles POST /api/v1/holdings/recompute. Replays the full
// history for (owner, asset) under one method, or all three when the
// method is omitted.
func (s *Service) Recompute(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" || req.Asset == "" {
		writeError(w, "owner and asset are required", http.StatusBadRequest)
		return
	}

	methods := model.Methods()
	if req.Method != "" {
		m, err := model.ParseMethod(req.Method)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		methods = []model.Method{m}
	}

	ctx := r.Context()
	var holdings []model.Holding
	for _, method := range methods {
		h, err := s.engine.RecomputeHoldings(ctx, req.Owner, req.Asset, method)
		if err != nil {
			writeError(w, "failed to recompute holdings", http.StatusInternalServerError)
			return
		}
		holdings = append(holdings, *h)
		s.broadcastHolding(h)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

// GetHoldings handles GET /api/v1/holdings/{owner}?method=fifo
func (s *Service) GetHoldings(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	method, err := methodParam(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	holdings, err := s.store.GetHoldings(r.Context(), owner, method)
	if err != nil {
		writeError(w, "failed to load holdings", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

// GetSummary handles GET /api/v1/pnl/{owner}?method=fifo
// Returns the merged realized + unrealized P&L summary.
func (s *Service) GetSummary(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	method, err := methodParam(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := s.engine.ComputeSummary(r.Context(), owner, method)
	if err != nil {
		writeError(w, "failed to compute summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// methodParam reads the optional ?method= query parameter, defaulting
// to FIFO.
func methodParam(r *http.Request) (model.Method, error) {
	raw := r.URL.Query().Get("method")
	if raw == "" {
		return model.FIFO, nil
	}
	return model.ParseMethod(raw)
}

func (s *Service) broadcastHolding(h *model.Holding) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(WSMessage{
		Type:      "holding_updated",
		Owner:     h.Owner,
		Asset:     h.Asset,
		Method:    string(h.Method),
		Quantity:  h.Quantity.String(),
		CostBasis: h.CostBasis.String(),
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
