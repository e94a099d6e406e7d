package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ErrBadSignature is returned for any signature that does not verify.
var ErrBadSignature = errors.New("crypto: signature verification failed")

// ReceiptSigner signs settlement receipts with the operator key.
type ReceiptSigner struct {
	key solana.PrivateKey
}

// NewReceiptSigner creates a signer for key.
func NewReceiptSigner(key solana.PrivateKey) *ReceiptSigner {
	return &ReceiptSigner{key: key}
}

// PublicKey returns the key receipts verify against.
func (s *ReceiptSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Sign returns a copy of st carrying a base58 signature over its canonical
// form.
func (s *ReceiptSigner) Sign(st domain.Settlement) (domain.Settlement, error) {
	msg, err := receiptMessage(st)
	if err != nil {
		return st, err
	}
	sig, err := s.key.Sign(msg)
	if err != nil {
		return st, fmt.Errorf("crypto: sign receipt %s: %w", st.Listing, err)
	}
	st.Signature = sig.String()
	return st, nil
}

// VerifyReceipt checks st.Signature against signer.
func VerifyReceipt(signer solana.PublicKey, st domain.Settlement) error {
	if st.Signature == "" {
		return fmt.Errorf("%w: receipt is unsigned", ErrBadSignature)
	}
	sig, err := solana.SignatureFromBase58(st.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	msg, err := receiptMessage(st)
	if err != nil {
		return err
	}
	if !sig.Verify(signer, msg) {
		return ErrBadSignature
	}
	return nil
}

// receiptMessage is the JSON encoding of the receipt without its signature.
// Field order follows the struct, so the encoding is stable.
func receiptMessage(st domain.Settlement) ([]byte, error) {
	st.Signature = ""
	st.SettledAt = st.SettledAt.UTC()
	msg, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("crypto: encode receipt: %w", err)
	}
	return msg, nil
}

// RequestMessage is what a wallet signs to authenticate an API call.
func RequestMessage(timestamp, method, path string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(method)+len(path)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, method...)
	msg = append(msg, path...)
	return append(msg, body...)
}

// SignRequest produces the X-Wallet-Timestamp and X-Wallet-Signature values
// for a request. Clients and tests use it.
func SignRequest(key solana.PrivateKey, now time.Time, method, path string, body []byte) (timestamp, signature string, err error) {
	timestamp = strconv.FormatInt(now.Unix(), 10)
	sig, err := key.Sign(RequestMessage(timestamp, method, path, body))
	if err != nil {
		return "", "", fmt.Errorf("crypto: sign request: %w", err)
	}
	return timestamp, sig.String(), nil
}

// VerifyRequest checks a wallet's request signature and that the timestamp
// is within maxSkew of now.
func VerifyRequest(wallet solana.PublicKey, timestamp, signature, method, path string, body []byte, now time.Time, maxSkew time.Duration) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrBadSignature, timestamp)
	}
	if skew := now.Sub(time.Unix(ts, 0)); skew > maxSkew || skew < -maxSkew {
		return fmt.Errorf("%w: timestamp outside allowed skew", ErrBadSignature)
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !sig.Verify(wallet, RequestMessage(timestamp, method, path, body)) {
		return ErrBadSignature
	}
	return nil
}
