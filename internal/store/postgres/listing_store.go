package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL. The record
// itself is stored in its fixed-size encoded form; the other columns exist
// for indexing only.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Create inserts a listing. A taken address yields domain.ErrAlreadyExists.
func (s *ListingStore) Create(ctx context.Context, l domain.ListingConfig) error {
	data, err := domain.EncodeListingConfig(l)
	if err != nil {
		return fmt.Errorf("postgres: create listing: %w", err)
	}

	const query = `
		INSERT INTO listings (address, auction_house, seller, token_mint, start_time, end_time, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query,
		l.Address.String(), l.AuctionHouse.String(), l.Seller.String(),
		l.Asset.TokenMint.String(), l.StartTime, l.EndTime, data,
	)
	if err != nil {
		return fmt.Errorf("postgres: create listing %s: %w", l.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create listing %s: %w", l.Address, domain.ErrAlreadyExists)
	}
	return nil
}

// Update overwrites the record of an open listing.
func (s *ListingStore) Update(ctx context.Context, l domain.ListingConfig) error {
	data, err := domain.EncodeListingConfig(l)
	if err != nil {
		return fmt.Errorf("postgres: update listing: %w", err)
	}

	const query = `UPDATE listings SET end_time = $2, data = $3, updated_at = NOW() WHERE address = $1`
	tag, err := s.pool.Exec(ctx, query, l.Address.String(), l.EndTime, data)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.Address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update listing %s: %w", l.Address, domain.ErrNotFound)
	}
	return nil
}

// Get loads the listing at address.
func (s *ListingStore) Get(ctx context.Context, address solana.PublicKey) (domain.ListingConfig, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM listings WHERE address = $1`, address.String()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ListingConfig{}, fmt.Errorf("postgres: get listing %s: %w", address, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("postgres: get listing %s: %w", address, err)
	}
	l, err := domain.DecodeListingConfig(address, data)
	if err != nil {
		return domain.ListingConfig{}, fmt.Errorf("postgres: get listing %s: %w", address, err)
	}
	return l, nil
}

// Delete destroys the listing at address.
func (s *ListingStore) Delete(ctx context.Context, address solana.PublicKey) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE address = $1`, address.String())
	if err != nil {
		return fmt.Errorf("postgres: delete listing %s: %w", address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete listing %s: %w", address, domain.ErrNotFound)
	}
	return nil
}

// ListOpen returns the open listings of house ordered by end time. A zero
// house lists every house.
func (s *ListingStore) ListOpen(ctx context.Context, house solana.PublicKey, opts domain.ListOpts) ([]domain.ListingConfig, error) {
	query := `SELECT address, data FROM listings WHERE 1=1`
	args := []any{}
	argIdx := 1

	if !house.IsZero() {
		query += fmt.Sprintf(" AND auction_house = $%d", argIdx)
		args = append(args, house.String())
		argIdx++
	}
	query += " ORDER BY end_time ASC, address ASC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings: %w", err)
	}
	defer rows.Close()

	listings := []domain.ListingConfig{}
	for rows.Next() {
		var (
			addr string
			data []byte
		)
		if err := rows.Scan(&addr, &data); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		key, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("postgres: listing address %q: %w", addr, err)
		}
		l, err := domain.DecodeListingConfig(key, data)
		if err != nil {
			return nil, fmt.Errorf("postgres: listing %s: %w", addr, err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list listings rows: %w", err)
	}
	return listings, nil
}
