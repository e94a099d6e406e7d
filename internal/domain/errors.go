package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Listing parameters.
	ErrInvalidWindow    = errors.New("start time must be before end time")
	ErrInvalidExtension = errors.New("time extension period and delta must be set together and delta must be positive")
	ErrInvalidTokenSize = errors.New("token size must be positive")
	ErrInvalidPrice     = errors.New("price must be positive")

	// Temporal.
	ErrAuctionNotStarted = errors.New("auction has not started")
	ErrAuctionEnded      = errors.New("auction has ended")
	ErrAuctionActive     = errors.New("auction is still active")

	// Ordering and authorization.
	ErrNotHighBidder          = errors.New("not the high bidder")
	ErrCannotCancelHighestBid = errors.New("cannot cancel the highest bid")
	ErrTradeRecordMismatch    = errors.New("trade record does not match listing")
	ErrInvalidAuthority       = errors.New("invalid auctioneer authority")

	// Bid quality and settlement.
	ErrBidTooLow            = errors.New("bid does not exceed the highest bid by the minimum increment")
	ErrBelowReservePrice    = errors.New("highest bid is below the reserve price")
	ErrInvalidCreatorShares = errors.New("creator shares must sum to 100")
	ErrInvalidBasisPoints   = errors.New("fee basis points exceed 10000")

	// Custodian.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferRejected  = errors.New("asset transfer rejected by rule set")
	ErrAssetMismatch     = errors.New("asset reference mismatch")
)
