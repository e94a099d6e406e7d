package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/server/middleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error","code":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// errorMapping pairs a sentinel error with its HTTP status and stable code.
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrLockHeld, http.StatusConflict, "listing_busy"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},

	{domain.ErrInvalidWindow, http.StatusUnprocessableEntity, "invalid_window"},
	{domain.ErrInvalidExtension, http.StatusUnprocessableEntity, "invalid_extension"},
	{domain.ErrInvalidTokenSize, http.StatusUnprocessableEntity, "invalid_token_size"},
	{domain.ErrInvalidPrice, http.StatusUnprocessableEntity, "invalid_price"},

	{domain.ErrAuctionNotStarted, http.StatusUnprocessableEntity, "auction_not_started"},
	{domain.ErrAuctionEnded, http.StatusUnprocessableEntity, "auction_ended"},
	{domain.ErrAuctionActive, http.StatusUnprocessableEntity, "auction_active"},

	{domain.ErrNotHighBidder, http.StatusUnprocessableEntity, "not_high_bidder"},
	{domain.ErrCannotCancelHighestBid, http.StatusUnprocessableEntity, "cannot_cancel_highest_bid"},
	{domain.ErrTradeRecordMismatch, http.StatusUnprocessableEntity, "trade_record_mismatch"},
	{domain.ErrInvalidAuthority, http.StatusInternalServerError, "invalid_authority"},

	{domain.ErrBidTooLow, http.StatusUnprocessableEntity, "bid_too_low"},
	{domain.ErrBelowReservePrice, http.StatusUnprocessableEntity, "below_reserve_price"},
	{domain.ErrInvalidCreatorShares, http.StatusUnprocessableEntity, "invalid_creator_shares"},
	{domain.ErrInvalidBasisPoints, http.StatusUnprocessableEntity, "invalid_basis_points"},

	{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{domain.ErrTransferRejected, http.StatusUnprocessableEntity, "transfer_rejected"},
	{domain.ErrAssetMismatch, http.StatusUnprocessableEntity, "asset_mismatch"},
}

// classify returns the HTTP status and code for err.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeServiceError maps a service error to a response. Server-side failures
// are logged and their detail withheld from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, status, code, op+" failed")
		return
	}
	writeError(w, status, code, err.Error())
}

// decodeBody decodes a bounded JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathKey parses a base58 public key path parameter.
func pathKey(w http.ResponseWriter, r *http.Request, name string) (solana.PublicKey, bool) {
	raw := chi.URLParam(r, name)
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid %s %q", name, raw))
		return solana.PublicKey{}, false
	}
	return key, true
}

// requireCaller rejects a request whose signing wallet differs from the
// party it acts for. Unsigned requests pass when signatures are not enforced.
func requireCaller(w http.ResponseWriter, r *http.Request, party solana.PublicKey) bool {
	wallet, ok := middleware.WalletFrom(r.Context())
	if !ok || wallet.Equals(party) {
		return true
	}
	writeError(w, http.StatusForbidden, "unauthorized", "request signed by "+wallet.String()+", not "+party.String())
	return false
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0. since/until accept RFC 3339.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
	if t, err := time.Parse(time.RFC3339, q.Get("since")); err == nil {
		opts.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, q.Get("until")); err == nil {
		opts.Until = &t
	}
	return opts
}

// Amount is a lamport amount accepted either as an integer or as a SOL
// decimal string ("1.5").
type Amount uint64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		sol, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("amount %q: %w", s, err)
		}
		if sol.Sign() <= 0 {
			return fmt.Errorf("amount %q must be positive", s)
		}
		*a = Amount(domain.SOLToLamports(sol))
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n)
	return nil
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
