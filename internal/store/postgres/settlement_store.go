package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL. The full
// receipt is kept as JSONB.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given connection pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Insert stores a receipt. A listing settles at most once.
func (s *SettlementStore) Insert(ctx context.Context, st domain.Settlement) error {
	receipt, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("postgres: marshal settlement: %w", err)
	}

	const query = `
		INSERT INTO settlements (id, listing, auction_house, seller, buyer, price, receipt, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`
	_, err = s.pool.Exec(ctx, query,
		st.ID, st.Listing.String(), st.AuctionHouse.String(), st.Seller.String(),
		st.Buyer.String(), strconv.FormatUint(st.Price, 10), receipt, st.SettledAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("postgres: insert settlement %s: %w", st.Listing, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("postgres: insert settlement %s: %w", st.Listing, err)
	}
	return nil
}

// GetByListing returns the receipt of a settled listing.
func (s *SettlementStore) GetByListing(ctx context.Context, listing solana.PublicKey) (domain.Settlement, error) {
	var receipt []byte
	err := s.pool.QueryRow(ctx, `SELECT receipt FROM settlements WHERE listing = $1`, listing.String()).Scan(&receipt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Settlement{}, fmt.Errorf("postgres: settlement %s: %w", listing, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("postgres: settlement %s: %w", listing, err)
	}
	var st domain.Settlement
	if err := json.Unmarshal(receipt, &st); err != nil {
		return domain.Settlement{}, fmt.Errorf("postgres: unmarshal settlement %s: %w", listing, err)
	}
	return st, nil
}

// ListRecent returns receipts newest first.
func (s *SettlementStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	query := `SELECT receipt FROM settlements WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND settled_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND settled_at < $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY settled_at DESC"
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
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	return scanReceipts(rows)
}

// ListBefore returns receipts settled strictly before the cutoff, oldest first.
func (s *SettlementStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Settlement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT receipt FROM settlements WHERE settled_at < $1 ORDER BY settled_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements before %s: %w", before.Format(time.RFC3339), err)
	}
	return scanReceipts(rows)
}

func scanReceipts(rows pgx.Rows) ([]domain.Settlement, error) {
	defer rows.Close()
	out := []domain.Settlement{}
	for rows.Next() {
		var receipt []byte
		if err := rows.Scan(&receipt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		var st domain.Settlement
		if err := json.Unmarshal(receipt, &st); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal settlement: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: settlements rows: %w", err)
	}
	return out, nil
}
