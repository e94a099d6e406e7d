package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/alanyoungcy/auctioneer/internal/auctioneer"
	"github.com/alanyoungcy/auctioneer/internal/domain"
)

// ReceiptSigner signs settlement receipts.
type ReceiptSigner interface {
	Sign(s domain.Settlement) (domain.Settlement, error)
}

// EventNotifier forwards listing events to operators.
type EventNotifier interface {
	Notify(ctx context.Context, ev domain.ListingEvent) error
}

// ReceiptLookup finds receipts outside the settlement store.
type ReceiptLookup interface {
	FindReceipt(ctx context.Context, listing solana.PublicKey) (domain.Settlement, error)
}

// Limits bounds per-caller activity.
type Limits struct {
	// BidsPerWindow is the number of bids one wallet may place per
	// BidWindow. Zero disables the limit.
	BidsPerWindow int
	BidWindow     time.Duration
	// LockTTL bounds how long one operation may hold a listing.
	LockTTL time.Duration
}

// ListingService runs engine operations one at a time per listing and fans
// the results out to the cache, event bus, audit log, notifiers and receipt
// archive.
type ListingService struct {
	engine      *auctioneer.Engine
	listings    domain.ListingStore
	settlements domain.SettlementStore
	locks       domain.LockManager
	limiter     domain.RateLimiter
	bus         domain.SignalBus
	audit       domain.AuditStore
	limits      Limits
	logger      *slog.Logger

	cache    domain.ListingCache
	archiver domain.Archiver
	signer   ReceiptSigner
	notifier EventNotifier
	receipts ReceiptLookup
}

// NewListingService creates a ListingService with all required dependencies.
func NewListingService(
	engine *auctioneer.Engine,
	listings domain.ListingStore,
	settlements domain.SettlementStore,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	limits Limits,
	logger *slog.Logger,
) *ListingService {
	if limits.LockTTL <= 0 {
		limits.LockTTL = 10 * time.Second
	}
	return &ListingService{
		engine:      engine,
		listings:    listings,
		settlements: settlements,
		locks:       locks,
		limiter:     limiter,
		bus:         bus,
		audit:       audit,
		limits:      limits,
		logger:      logger.With(slog.String("component", "listing_service")),
	}
}

// WithCache serves Get from c and keeps it current after every write.
func (s *ListingService) WithCache(c domain.ListingCache) *ListingService {
	s.cache = c
	return s
}

// WithArchiver uploads every settlement receipt through a.
func (s *ListingService) WithArchiver(a domain.Archiver) *ListingService {
	s.archiver = a
	return s
}

// WithSigner signs receipts before they are stored.
func (s *ListingService) WithSigner(signer ReceiptSigner) *ListingService {
	s.signer = signer
	return s
}

// WithNotifier forwards events to n.
func (s *ListingService) WithNotifier(n EventNotifier) *ListingService {
	s.notifier = n
	return s
}

// WithReceiptLookup answers Settlement from r when the store has no row.
func (s *ListingService) WithReceiptLookup(r ReceiptLookup) *ListingService {
	s.receipts = r
	return s
}

// House returns the auction house served.
func (s *ListingService) House() domain.AuctionHouse { return s.engine.House() }

// Now returns the custodian clock in unix seconds.
func (s *ListingService) Now(ctx context.Context) (int64, error) { return s.engine.Now(ctx) }

// Sell opens a listing.
func (s *ListingService) Sell(ctx context.Context, req auctioneer.SellRequest) (auctioneer.SellResult, error) {
	addr, err := s.engine.ListingAddress(req.Seller, req.Asset)
	if err != nil {
		return auctioneer.SellResult{}, fmt.Errorf("listing_service: sell: %w", err)
	}
	unlock, err := s.lock(ctx, addr)
	if err != nil {
		return auctioneer.SellResult{}, err
	}
	defer unlock()

	res, err := s.engine.Sell(ctx, req)
	if err != nil {
		return auctioneer.SellResult{}, err
	}

	s.cacheSet(ctx, res.Listing)
	s.emit(ctx, domain.ListingEvent{
		Type:         domain.EventListingCreated,
		Listing:      res.Listing.Address,
		AuctionHouse: res.Listing.AuctionHouse,
		Wallet:       res.Listing.Seller,
		TradeRecord:  res.TradeRecord.Address,
		EndTime:      res.Listing.EndTime,
	}, map[string]any{
		"mint":       res.Listing.Asset.TokenMint.String(),
		"token_size": res.Listing.Asset.TokenSize,
		"start_time": res.Listing.StartTime,
	})
	return res, nil
}

// Bid places a bid subject to the per-wallet rate limit.
func (s *ListingService) Bid(ctx context.Context, req auctioneer.BidRequest) (auctioneer.BidResult, error) {
	if s.limits.BidsPerWindow > 0 {
		allowed, err := s.limiter.Allow(ctx, "bids:"+req.Buyer.String(), s.limits.BidsPerWindow, s.limits.BidWindow)
		if err != nil {
			return auctioneer.BidResult{}, fmt.Errorf("listing_service: rate limiter: %w", err)
		}
		if !allowed {
			return auctioneer.BidResult{}, fmt.Errorf("listing_service: bid by %s: %w", req.Buyer, domain.ErrRateLimited)
		}
	}

	unlock, err := s.lock(ctx, req.Listing)
	if err != nil {
		return auctioneer.BidResult{}, err
	}
	defer unlock()

	res, err := s.engine.Bid(ctx, req)
	if err != nil {
		return auctioneer.BidResult{}, err
	}

	s.cacheSet(ctx, res.Listing)
	s.emit(ctx, domain.ListingEvent{
		Type:         domain.EventBidPlaced,
		Listing:      res.Listing.Address,
		AuctionHouse: res.Listing.AuctionHouse,
		Wallet:       req.Buyer,
		TradeRecord:  res.TradeRecord.Address,
		Price:        req.Price,
		EndTime:      res.Listing.EndTime,
		Extended:     res.Extended,
	}, map[string]any{"previous_end_time": res.PreviousEndTime})
	return res, nil
}

// Cancel withdraws a bid or, for the seller sentinel, the listing.
func (s *ListingService) Cancel(ctx context.Context, req auctioneer.CancelRequest) (auctioneer.CancelResult, error) {
	unlock, err := s.lock(ctx, req.Listing)
	if err != nil {
		return auctioneer.CancelResult{}, err
	}
	defer unlock()

	res, err := s.engine.Cancel(ctx, req)
	if err != nil {
		return auctioneer.CancelResult{}, err
	}

	ev := domain.ListingEvent{
		Type:         domain.EventBidCancelled,
		Listing:      req.Listing,
		AuctionHouse: res.Listing.AuctionHouse,
		Wallet:       req.Wallet,
		TradeRecord:  res.TradeRecord.Address,
		Price:        res.TradeRecord.Price,
	}
	if res.Closed {
		ev.Type = domain.EventListingCancelled
		ev.Price = 0
		s.cacheInvalidate(ctx, req.Listing)
	}
	s.emit(ctx, ev, nil)
	return res, nil
}

// ExecuteSale settles a concluded auction. Once the engine has moved funds
// the sale stands; receipt storage and upload failures are logged, not
// returned.
func (s *ListingService) ExecuteSale(ctx context.Context, req auctioneer.ExecuteSaleRequest) (domain.Settlement, error) {
	unlock, err := s.lock(ctx, req.Listing)
	if err != nil {
		return domain.Settlement{}, err
	}
	defer unlock()

	st, err := s.engine.ExecuteSale(ctx, req)
	if err != nil {
		return domain.Settlement{}, err
	}
	s.cacheInvalidate(ctx, req.Listing)

	if s.signer != nil {
		signed, err := s.signer.Sign(st)
		if err != nil {
			s.logger.ErrorContext(ctx, "receipt signing failed",
				slog.String("listing", st.Listing.String()),
				slog.String("error", err.Error()),
			)
		} else {
			st = signed
		}
	}
	if err := s.settlements.Insert(ctx, st); err != nil {
		s.logger.ErrorContext(ctx, "receipt not stored",
			slog.String("listing", st.Listing.String()),
			slog.String("settlement", st.ID),
			slog.String("error", err.Error()),
		)
	}
	detail := map[string]any{
		"settlement":      st.ID,
		"seller":          st.Seller.String(),
		"marketplace_fee": st.MarketplaceFee,
		"royalty_pool":    st.RoyaltyPool,
		"seller_proceeds": st.SellerProceeds,
	}
	if s.archiver != nil {
		path, err := s.archiver.ArchiveReceipt(ctx, st)
		if err != nil {
			s.logger.WarnContext(ctx, "receipt upload failed",
				slog.String("listing", st.Listing.String()),
				slog.String("error", err.Error()),
			)
		} else {
			detail["receipt_path"] = path
		}
	}

	s.emit(ctx, domain.ListingEvent{
		Type:         domain.EventListingSettled,
		Listing:      st.Listing,
		AuctionHouse: st.AuctionHouse,
		Wallet:       st.Buyer,
		TradeRecord:  st.TradeRecord,
		Price:        st.Price,
	}, detail)
	return st, nil
}

// Get returns an open listing, preferring the cache.
func (s *ListingService) Get(ctx context.Context, address solana.PublicKey) (domain.ListingConfig, error) {
	if s.cache != nil {
		l, err := s.cache.Get(ctx, address)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "listing cache read failed",
				slog.String("listing", address.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	l, err := s.engine.Listing(ctx, address)
	if err != nil {
		return domain.ListingConfig{}, err
	}
	s.cacheSet(ctx, l)
	return l, nil
}

// ListOpen returns the house's open listings ordered by end time.
func (s *ListingService) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.ListingConfig, error) {
	ls, err := s.listings.ListOpen(ctx, s.engine.House().Address, opts)
	if err != nil {
		return nil, fmt.Errorf("listing_service: list open: %w", err)
	}
	return ls, nil
}

// Settlement returns the receipt of a settled listing.
func (s *ListingService) Settlement(ctx context.Context, listing solana.PublicKey) (domain.Settlement, error) {
	st, err := s.settlements.GetByListing(ctx, listing)
	if errors.Is(err, domain.ErrNotFound) && s.receipts != nil {
		st, err = s.receipts.FindReceipt(ctx, listing)
	}
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("listing_service: settlement %s: %w", listing, err)
	}
	return st, nil
}

// ListSettlements returns receipts newest first.
func (s *ListingService) ListSettlements(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	out, err := s.settlements.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing_service: list settlements: %w", err)
	}
	return out, nil
}

// Events replays up to count stored events after lastID.
func (s *ListingService) Events(ctx context.Context, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "" {
		lastID = "0"
	}
	msgs, err := s.bus.StreamRead(ctx, domain.StreamListings, lastID, count)
	if err != nil {
		return nil, fmt.Errorf("listing_service: events: %w", err)
	}
	return msgs, nil
}

func (s *ListingService) lock(ctx context.Context, listing solana.PublicKey) (func(), error) {
	unlock, err := s.locks.Acquire(ctx, "listing:"+listing.String(), s.limits.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("listing_service: listing %s busy: %w", listing, err)
	}
	return unlock, nil
}

func (s *ListingService) cacheSet(ctx context.Context, l domain.ListingConfig) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, l); err != nil {
		s.logger.WarnContext(ctx, "listing cache write failed",
			slog.String("listing", l.Address.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ListingService) cacheInvalidate(ctx context.Context, address solana.PublicKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, address); err != nil {
		s.logger.WarnContext(ctx, "listing cache invalidate failed",
			slog.String("listing", address.String()),
			slog.String("error", err.Error()),
		)
	}
}

// emit publishes ev on the house-wide and per-listing channels, appends it to
// the replay stream, writes the audit entry and notifies. Failures are logged;
// the operation already happened.
func (s *ListingService) emit(ctx context.Context, ev domain.ListingEvent, detail map[string]any) {
	ev.ID = uuid.NewString()
	ev.At = time.Now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode event failed", slog.String("error", err.Error()))
		return
	}
	for _, ch := range []string{domain.ChannelListings, domain.ListingChannel(ev.Listing)} {
		if err := s.bus.Publish(ctx, ch, payload); err != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.String("channel", ch),
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamListings, payload); err != nil {
		s.logger.WarnContext(ctx, "stream append failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}

	entry := map[string]any{
		"event_id":     ev.ID,
		"listing":      ev.Listing.String(),
		"wallet":       ev.Wallet.String(),
		"trade_record": ev.TradeRecord.String(),
	}
	if ev.Price > 0 {
		entry["price"] = ev.Price
	}
	if ev.EndTime != 0 {
		entry["end_time"] = ev.EndTime
	}
	for k, v := range detail {
		entry[k] = v
	}
	if err := s.audit.Log(ctx, string(ev.Type), entry); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "notify failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "listing event",
		slog.String("event", string(ev.Type)),
		slog.String("listing", ev.Listing.String()),
		slog.String("wallet", ev.Wallet.String()),
	)
}
