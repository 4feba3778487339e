package auction

import "errors"

var (
	ErrLotNotFound         = errors.New("lot not found")
	ErrNotStarted          = errors.New("auction not started yet")
	ErrAlreadyClosed       = errors.New("auction already closed")
	ErrBidTooLow           = errors.New("bid not above current price")
	ErrBidBelowIncrement   = errors.New("bid below min increment")
	ErrInsufficientBalance = errors.New("balance does not cover bid")
	ErrCannotOutbidSelf    = errors.New("cannot outbid yourself")
	ErrRateLimited         = errors.New("bidding too fast for this lot")
	ErrLotHasBids          = errors.New("lot already has bids")
	ErrInvalidLot          = errors.New("invalid lot")

	// ErrConflict means the caller lost a concurrency race. It is retried
	// internally a bounded number of times before surfacing.
	ErrConflict = errors.New("concurrent update conflict")
)
