package domain

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ListingConfigSpace is the fixed on-store size of an encoded ListingConfig:
//
//	discriminator 8 | bump 1 | seller, house, token account, treasury mint,
//	token mint 5*32 | token size 8 | start 8 | end 8 | reserve 1+8 |
//	increment 1+8 | ext period 1+4 | ext delta 1+4 | allow cancel 1 |
//	highest bid 1+32+8
const ListingConfigSpace = 8 + 1 + 5*32 + 8 + 8 + 8 + 9 + 9 + 5 + 5 + 1 + 41

// ListingConfigDiscriminator prefixes every encoded record.
var ListingConfigDiscriminator = accountDiscriminator("ListingConfig")

// ErrInvalidRecord is returned when a stored record cannot be decoded.
var ErrInvalidRecord = errors.New("invalid listing record")

func accountDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// listingRecord is the Borsh layout of a ListingConfig. Field order is part of
// the format.
type listingRecord struct {
	Bump               uint8
	Seller             solana.PublicKey
	AuctionHouse       solana.PublicKey
	TokenAccount       solana.PublicKey
	TreasuryMint       solana.PublicKey
	TokenMint          solana.PublicKey
	TokenSize          uint64
	StartTime          int64
	EndTime            int64
	ReservePrice       *uint64 `bin:"optional"`
	MinBidIncrement    *uint64 `bin:"optional"`
	TimeExtPeriod      *uint32 `bin:"optional"`
	TimeExtDelta       *uint32 `bin:"optional"`
	AllowHighBidCancel bool
	HighestBid         *HighestBid `bin:"optional"`
}

// EncodeListingConfig serializes l into its fixed-size record form.
func EncodeListingConfig(l ListingConfig) ([]byte, error) {
	rec := listingRecord{
		Bump:               l.Bump,
		Seller:             l.Seller,
		AuctionHouse:       l.AuctionHouse,
		TokenAccount:       l.Asset.TokenAccount,
		TreasuryMint:       l.Asset.TreasuryMint,
		TokenMint:          l.Asset.TokenMint,
		TokenSize:          l.Asset.TokenSize,
		StartTime:          l.StartTime,
		EndTime:            l.EndTime,
		ReservePrice:       l.ReservePrice,
		MinBidIncrement:    l.MinBidIncrement,
		TimeExtPeriod:      l.TimeExtPeriod,
		TimeExtDelta:       l.TimeExtDelta,
		AllowHighBidCancel: l.AllowHighBidCancel,
		HighestBid:         l.HighestBid,
	}

	var buf bytes.Buffer
	buf.Grow(ListingConfigSpace)
	buf.Write(ListingConfigDiscriminator[:])
	if err := bin.NewBorshEncoder(&buf).Encode(&rec); err != nil {
		return nil, fmt.Errorf("domain: encode listing %s: %w", l.Address, err)
	}
	if buf.Len() > ListingConfigSpace {
		return nil, fmt.Errorf("domain: encode listing %s: %d bytes exceeds %d", l.Address, buf.Len(), ListingConfigSpace)
	}

	out := make([]byte, ListingConfigSpace)
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeListingConfig parses a record produced by EncodeListingConfig. The
// address is not part of the record and must be supplied by the caller.
func DecodeListingConfig(address solana.PublicKey, data []byte) (ListingConfig, error) {
	if len(data) < ListingConfigSpace {
		return ListingConfig{}, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidRecord, len(data), ListingConfigSpace)
	}
	if !bytes.Equal(data[:8], ListingConfigDiscriminator[:]) {
		return ListingConfig{}, fmt.Errorf("%w: discriminator mismatch", ErrInvalidRecord)
	}

	var rec listingRecord
	if err := bin.NewBorshDecoder(data[8:]).Decode(&rec); err != nil {
		return ListingConfig{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	return ListingConfig{
		Address:      address,
		Bump:         rec.Bump,
		Seller:       rec.Seller,
		AuctionHouse: rec.AuctionHouse,
		Asset: AssetRef{
			TokenMint:    rec.TokenMint,
			TokenAccount: rec.TokenAccount,
			TreasuryMint: rec.TreasuryMint,
			TokenSize:    rec.TokenSize,
		},
		StartTime:          rec.StartTime,
		EndTime:            rec.EndTime,
		ReservePrice:       rec.ReservePrice,
		MinBidIncrement:    rec.MinBidIncrement,
		TimeExtPeriod:      rec.TimeExtPeriod,
		TimeExtDelta:       rec.TimeExtDelta,
		AllowHighBidCancel: rec.AllowHighBidCancel,
		HighestBid:         rec.HighestBid,
	}, nil
}
