package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// Clock reads the auction clock.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// StatusHandler serves the instance's identity and clock.
type StatusHandler struct {
	mode      string
	house     domain.AuctionHouse
	authority solana.PublicKey
	clock     Clock
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, house domain.AuctionHouse, authority solana.PublicKey, clock Clock, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, house: house, authority: authority, clock: clock, startedAt: startedAt}
}

// GetStatus responds with the served auction house and the current clock.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":                    h.mode,
		"auction_house":           h.house.Address,
		"treasury_mint":           h.house.TreasuryMint,
		"seller_fee_basis_points": h.house.SellerFeeBasisPoints,
		"auctioneer_authority":    h.authority,
		"uptime_seconds":          int64(time.Since(h.startedAt).Seconds()),
	}
	if now, err := h.clock.Now(r.Context()); err == nil {
		resp["clock"] = now
	} else {
		resp["clock_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
