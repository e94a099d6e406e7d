package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// SettlementService defines the read side the settlement handler requires.
type SettlementService interface {
	Settlement(ctx context.Context, listing solana.PublicKey) (domain.Settlement, error)
	ListSettlements(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error)
	Events(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error)
}

// SettlementHandler serves receipts and the event replay.
type SettlementHandler struct {
	settlements SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlements SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlements: settlements,
		logger:      logHandler(logger, "settlement"),
	}
}

type settlementView struct {
	domain.Settlement
	PriceSOL          string `json:"price_sol"`
	MarketplaceFeeSOL string `json:"marketplace_fee_sol"`
	RoyaltyPoolSOL    string `json:"royalty_pool_sol"`
	SellerProceedsSOL string `json:"seller_proceeds_sol"`
}

func newSettlementView(st domain.Settlement) settlementView {
	return settlementView{
		Settlement:        st,
		PriceSOL:          domain.FormatLamports(st.Price),
		MarketplaceFeeSOL: domain.FormatLamports(st.MarketplaceFee),
		RoyaltyPoolSOL:    domain.FormatLamports(st.RoyaltyPool),
		SellerProceedsSOL: domain.FormatLamports(st.SellerProceeds),
	}
}

type listSettlementsResponse struct {
	Settlements []settlementView `json:"settlements"`
}

// ListSettlements returns receipts newest first.
// GET /api/settlements?since=...&until=...&limit=50
func (h *SettlementHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	list, err := h.settlements.ListSettlements(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list settlements", err)
		return
	}
	out := make([]settlementView, 0, len(list))
	for _, st := range list {
		out = append(out, newSettlementView(st))
	}
	writeJSON(w, http.StatusOK, listSettlementsResponse{Settlements: out})
}

// GetSettlement returns the receipt of a settled listing.
// GET /api/listings/{address}/settlement
func (h *SettlementHandler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathKey(w, r, "address")
	if !ok {
		return
	}
	st, err := h.settlements.Settlement(r.Context(), addr)
	if err != nil {
		writeServiceError(w, r, h.logger, "get settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementView(st))
}

type eventsResponse struct {
	Events []eventEnvelope `json:"events"`
	LastID string          `json:"last_id"`
}

type eventEnvelope struct {
	ID    string  `json:"id"`
	Event rawJSON `json:"event"`
}

// rawJSON embeds an already encoded payload.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }

// ListEvents replays stored listing events after a stream id.
// GET /api/events?after=0&count=100
func (h *SettlementHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := 100
	if v, err := strconv.Atoi(q.Get("count")); err == nil && v > 0 && v <= 1000 {
		count = v
	}
	msgs, err := h.settlements.Events(r.Context(), q.Get("after"), count)
	if err != nil {
		writeServiceError(w, r, h.logger, "list events", err)
		return
	}
	resp := eventsResponse{Events: make([]eventEnvelope, 0, len(msgs)), LastID: q.Get("after")}
	for _, m := range msgs {
		resp.Events = append(resp.Events, eventEnvelope{ID: m.ID, Event: rawJSON(m.Payload)})
		resp.LastID = m.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
