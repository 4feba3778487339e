package lot

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status of a lot's auction window.
type Status string

const (
	StatusUpcoming Status = "UPCOMING"
	StatusLive     Status = "LIVE"
	StatusClosed   Status = "CLOSED"
)

// Lot is a single flower item up for auction.
//
// CurrentPrice never drops below InitialPrice. WinningBidID is set only once
// the lot is CLOSED and at least one bid was accepted. Settled marks that
// settlement ran for this lot; Status alone cannot tell you that. Version is
// incremented by the catalog store on every save and guards concurrent writers.
type Lot struct {
	ID           string          `json:"id"`
	SellerID     string          `json:"seller_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Size         int             `json:"size"`
	Quantity     string          `json:"quantity"`
	LotNumber    int             `json:"lot_number"`
	InitialPrice decimal.Decimal `json:"initial_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	StartsAt     time.Time       `json:"starts_at" example:"2025-07-27T16:05:05Z"`
	EndsAt       time.Time       `json:"ends_at"   example:"2025-07-27T16:05:05Z"`
	Status       Status          `json:"status"    example:"LIVE"`
	WinningBidID string          `json:"winning_bid_id,omitempty"`
	Settled      bool            `json:"settled"`
	Version      int64           `json:"-"`
}

// Evaluate decides the status a lot must have at the given instant.
// It is a pure function of (lot, now): the lazy read path and the eager
// sweep path call it with the same inputs and reach the same decision.
//
// CLOSED is absorbing. A lot whose window already elapsed goes straight
// from UPCOMING to CLOSED without passing through LIVE.
func Evaluate(l Lot, now time.Time) (Status, bool) {
	if l.Status == StatusClosed {
		return StatusClosed, false
	}
	switch {
	case !now.Before(l.EndsAt):
		return StatusClosed, l.Status != StatusClosed
	case !now.Before(l.StartsAt):
		return StatusLive, l.Status != StatusLive
	default:
		return StatusUpcoming, l.Status != StatusUpcoming
	}
}
