package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/crypto"
)

// Wallet signature headers.
const (
	HeaderWallet          = "X-Wallet"
	HeaderWalletTimestamp = "X-Wallet-Timestamp"
	HeaderWalletSignature = "X-Wallet-Signature"
)

type walletKey struct{}

// WalletFrom returns the wallet that signed the request, if any.
func WalletFrom(ctx context.Context) (solana.PublicKey, bool) {
	w, ok := ctx.Value(walletKey{}).(solana.PublicKey)
	return w, ok
}

// WalletSignature verifies the X-Wallet* headers on mutating requests and
// stores the signer in the request context. When required is false, requests
// without headers pass unsigned; present headers are still verified.
func WalletSignature(required bool, maxSkew time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			rawWallet := r.Header.Get(HeaderWallet)
			if rawWallet == "" {
				if required {
					writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "missing wallet signature")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			wallet, err := solana.PublicKeyFromBase58(rawWallet)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "invalid wallet")
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "bad_request", "unreadable body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			err = crypto.VerifyRequest(wallet,
				r.Header.Get(HeaderWalletTimestamp),
				r.Header.Get(HeaderWalletSignature),
				r.Method, r.URL.Path, body, now(), maxSkew)
			if err != nil {
				msg := "invalid wallet signature"
				if !errors.Is(err, crypto.ErrBadSignature) {
					msg = "wallet signature check failed"
				}
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), walletKey{}, wallet)))
		})
	}
}
