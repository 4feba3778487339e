package bidledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNoBids      = errors.New("no bids for lot")
	ErrBidNotFound = errors.New("bid not found")
)

// Bid is an offer of an amount for a lot at a point in time.
// Bids are append-only; only the IsWinning flag ever changes, and at most
// one bid per lot carries it at any time.
type Bid struct {
	ID        string          `json:"id"`
	LotID     string          `json:"lot_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	PlacedAt  time.Time       `json:"placed_at"`
	IsWinning bool            `json:"is_winning"`
}

// Ledger is the durable append-only bid store for all lots.
type Ledger interface {
	// AppendBid persists a new bid. The bid id must be unique.
	AppendBid(ctx context.Context, b Bid) error
	// AppendWinning persists a new bid and makes it the lot's sole
	// winning bid in one atomic step. On error nothing is stored and no
	// flag moves.
	AppendWinning(ctx context.Context, b Bid) error
	// GetBid returns a single bid or ErrBidNotFound.
	GetBid(ctx context.Context, lotID, bidID string) (*Bid, error)
	// ListBidsForLot returns every bid for the lot ordered by amount
	// descending, then placement time ascending (first-at-price first).
	ListBidsForLot(ctx context.Context, lotID string) ([]Bid, error)
	// HighestBid returns the top bid under the same ordering, or ErrNoBids.
	HighestBid(ctx context.Context, lotID string) (*Bid, error)
	// CountForLot reports how many bids the lot has received.
	CountForLot(ctx context.Context, lotID string) (int, error)
	// SetWinning flips IsWinning to true on the given bid and false on
	// every other bid of the lot, as one statement.
	SetWinning(ctx context.Context, lotID, bidID string) error
	// PurgeLosingBids deletes every non-winning bid of the lot and
	// reports how many rows went away. The winning bid is retained.
	PurgeLosingBids(ctx context.Context, lotID string) (int64, error)
}
