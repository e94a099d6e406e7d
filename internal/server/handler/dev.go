package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// DevLedger is the seeding and escrow surface of the in-process custodian.
type DevLedger interface {
	Airdrop(wallet solana.PublicKey, amount uint64) uint64
	MintAsset(owner solana.PublicKey, md domain.AssetMetadata, amount uint64) (solana.PublicKey, error)
	SetTime(unix int64)
	Advance(seconds int64) int64
	Withdraw(ctx context.Context, house, wallet solana.PublicKey, amount uint64) error
	CloseOrphanedRecord(wallet, ref solana.PublicKey) error
	TradeRecord(ctx context.Context, ref solana.PublicKey) (domain.TradeRecord, error)
	Balance(wallet solana.PublicKey) uint64
	Escrow(house, wallet solana.PublicKey) uint64
}

// OpenListings lists the house's open listings.
type OpenListings interface {
	ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.ListingConfig, error)
}

// DevHandler exposes ledger seeding for local environments. It must not be
// mounted in production.
type DevHandler struct {
	ledger   DevLedger
	listings OpenListings
	house    solana.PublicKey
	logger   *slog.Logger
}

// NewDevHandler creates a DevHandler for the given auction house.
func NewDevHandler(ledger DevLedger, listings OpenListings, house solana.PublicKey, logger *slog.Logger) *DevHandler {
	return &DevHandler{ledger: ledger, listings: listings, house: house, logger: logHandler(logger, "dev")}
}

type airdropRequest struct {
	Wallet solana.PublicKey `json:"wallet"`
	Amount Amount           `json:"amount"`
}

// Airdrop credits lamports.
// POST /api/dev/airdrop
func (h *DevHandler) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Wallet.IsZero() || req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "wallet and amount are required")
		return
	}
	balance := h.ledger.Airdrop(req.Wallet, uint64(req.Amount))
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":      req.Wallet,
		"balance":     balance,
		"balance_sol": domain.FormatLamports(balance),
	})
}

type mintRequest struct {
	Owner                solana.PublicKey  `json:"owner"`
	Mint                 solana.PublicKey  `json:"mint"`
	Amount               uint64            `json:"amount"`
	SellerFeeBasisPoints uint16            `json:"seller_fee_basis_points"`
	Creators             []domain.Creator  `json:"creators"`
	Programmable         bool              `json:"programmable"`
	RuleSet              *solana.PublicKey `json:"rule_set"`
}

// Mint registers an asset and credits it to the owner.
// POST /api/dev/mint
func (h *DevHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Owner.IsZero() {
		writeError(w, http.StatusBadRequest, "bad_request", "owner is required")
		return
	}
	if req.Mint.IsZero() {
		req.Mint = solana.NewWallet().PublicKey()
	}
	if req.Amount == 0 {
		req.Amount = 1
	}
	md := domain.AssetMetadata{
		Mint:                 req.Mint,
		SellerFeeBasisPoints: req.SellerFeeBasisPoints,
		Creators:             req.Creators,
		RuleSet:              req.RuleSet,
	}
	if req.Programmable {
		md.TokenStandard = domain.TokenStandardProgrammableNonFungible
	}
	ata, err := h.ledger.MintAsset(req.Owner, md, req.Amount)
	if err != nil {
		if _, code := classify(err); code == "internal" {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		writeServiceError(w, r, h.logger, "mint", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"mint":          req.Mint,
		"token_account": ata,
		"amount":        req.Amount,
	})
}

type clockRequest struct {
	Set     *int64 `json:"set"`
	Advance int64  `json:"advance"`
}

// Clock sets or advances the custodian clock.
// POST /api/dev/clock
func (h *DevHandler) Clock(w http.ResponseWriter, r *http.Request) {
	var req clockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Set != nil {
		h.ledger.SetTime(*req.Set)
	}
	now := h.ledger.Advance(req.Advance)
	h.logger.InfoContext(r.Context(), "handler: clock changed", slog.Int64("now", now))
	writeJSON(w, http.StatusOK, map[string]int64{"now": now})
}

// Wallet reports a wallet's balance and escrow at the house.
// GET /api/dev/wallets/{wallet}
func (h *DevHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	wallet, ok := pathKey(w, r, "wallet")
	if !ok {
		return
	}
	balance, escrow := h.ledger.Balance(wallet), h.ledger.Escrow(h.house, wallet)
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":      wallet,
		"balance":     balance,
		"balance_sol": domain.FormatLamports(balance),
		"escrow":      escrow,
		"escrow_sol":  domain.FormatLamports(escrow),
	})
}

type withdrawRequest struct {
	Wallet solana.PublicKey `json:"wallet"`
	Amount Amount           `json:"amount"`
}

// Withdraw moves free escrow back to the wallet.
// POST /api/dev/withdraw
func (h *DevHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireCaller(w, r, req.Wallet) {
		return
	}
	if err := h.ledger.Withdraw(r.Context(), h.house, req.Wallet, uint64(req.Amount)); err != nil {
		writeServiceError(w, r, h.logger, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":  req.Wallet,
		"balance": h.ledger.Balance(req.Wallet),
		"escrow":  h.ledger.Escrow(h.house, req.Wallet),
	})
}

type reclaimRequest struct {
	Wallet      solana.PublicKey `json:"wallet"`
	TradeRecord solana.PublicKey `json:"trade_record"`
}

// Reclaim closes a bid whose asset is no longer listed and frees its escrow.
// POST /api/dev/reclaim
func (h *DevHandler) Reclaim(w http.ResponseWriter, r *http.Request) {
	var req reclaimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireCaller(w, r, req.Wallet) {
		return
	}
	tr, err := h.ledger.TradeRecord(r.Context(), req.TradeRecord)
	if err != nil {
		writeServiceError(w, r, h.logger, "reclaim", err)
		return
	}
	if !tr.AuctionHouse.Equals(h.house) || tr.IsSellerClaim() {
		writeError(w, http.StatusUnprocessableEntity, "trade_record_mismatch", "not a bid at this auction house")
		return
	}
	open, err := h.listings.ListOpen(r.Context(), domain.ListOpts{})
	if err != nil {
		writeServiceError(w, r, h.logger, "reclaim", err)
		return
	}
	for _, l := range open {
		if l.Asset == tr.Asset {
			writeError(w, http.StatusConflict, "listing_open", "listing "+l.Address.String()+" is still open; use cancel")
			return
		}
	}
	if err := h.ledger.CloseOrphanedRecord(req.Wallet, req.TradeRecord); err != nil {
		writeServiceError(w, r, h.logger, "reclaim", err)
		return
	}
	if err := h.ledger.Withdraw(r.Context(), h.house, req.Wallet, tr.Price); err != nil {
		writeServiceError(w, r, h.logger, "reclaim", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":   req.Wallet,
		"released": tr.Price,
		"balance":  h.ledger.Balance(req.Wallet),
	})
}
