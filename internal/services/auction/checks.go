package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"flowerbidgo/internal/bidledger"
	"flowerbidgo/internal/lot"
	"flowerbidgo/internal/wallet"
)

// CheckContext carries everything a bid validation rule may look at.
// Highest is nil until the lot has received its first bid.
type CheckContext struct {
	Lot      *lot.Lot
	Highest  *bidledger.Bid
	BidderID string
	Amount   decimal.Decimal
	Now      time.Time
}

// BidCheck is one rule in the bid acceptance chain. Checks run in declared
// order and the first failure wins; each rule is independently testable.
type BidCheck interface {
	Name() string
	Check(ctx context.Context, bc *CheckContext) error
}

// Policy declares which optional rules a deployment runs. The effective
// chain is: live window, price floor, min increment, wallet coverage,
// self-outbid (unless allowed), cooldown (when > 0).
type Policy struct {
	MinIncrement    decimal.Decimal
	AllowSelfOutbid bool
	Cooldown        time.Duration
	CooldownStore   CooldownStore
}

func buildChecks(w wallet.Service, p Policy) []BidCheck {
	checks := []BidCheck{
		liveWindowCheck{},
		priceFloorCheck{},
		minIncrementCheck{inc: p.MinIncrement},
		balanceCheck{wallet: w},
	}
	if !p.AllowSelfOutbid {
		checks = append(checks, selfOutbidCheck{})
	}
	if p.Cooldown > 0 && p.CooldownStore != nil {
		checks = append(checks, cooldownCheck{store: p.CooldownStore})
	}
	return checks
}

// liveWindowCheck requires the state machine to say LIVE at bid time,
// distinguishing "not yet started" from "already closed".
type liveWindowCheck struct{}

func (liveWindowCheck) Name() string { return "live_window" }

func (liveWindowCheck) Check(_ context.Context, bc *CheckContext) error {
	st, _ := lot.Evaluate(*bc.Lot, bc.Now)
	switch st {
	case lot.StatusUpcoming:
		return ErrNotStarted
	case lot.StatusClosed:
		return ErrAlreadyClosed
	}
	return nil
}

// priceFloorCheck enforces the strict monotonic increase: a bid must beat
// the current price, which bootstraps at the initial price.
type priceFloorCheck struct{}

func (priceFloorCheck) Name() string { return "price_floor" }

func (priceFloorCheck) Check(_ context.Context, bc *CheckContext) error {
	if bc.Amount.Cmp(bc.Lot.CurrentPrice) <= 0 {
		return ErrBidTooLow
	}
	return nil
}

// minIncrementCheck requires the raise over the standing high bid to reach
// the configured step. Inactive at zero and for the first bid.
type minIncrementCheck struct {
	inc decimal.Decimal
}

func (minIncrementCheck) Name() string { return "min_increment" }

func (c minIncrementCheck) Check(_ context.Context, bc *CheckContext) error {
	if c.inc.IsZero() || bc.Highest == nil {
		return nil
	}
	if bc.Amount.Sub(bc.Highest.Amount).Cmp(c.inc) < 0 {
		return ErrBidBelowIncrement
	}
	return nil
}

// balanceCheck requires the full bid amount to be coverable now. The
// balance is re-verified at settlement; this keeps obviously unfunded bids
// out of the ledger.
type balanceCheck struct {
	wallet wallet.Service
}

func (balanceCheck) Name() string { return "balance" }

func (c balanceCheck) Check(ctx context.Context, bc *CheckContext) error {
	bal, err := c.wallet.GetBalance(ctx, bc.BidderID)
	if err != nil {
		return fmt.Errorf("balance lookup for %s: %w", bc.BidderID, err)
	}
	if bal.Cmp(bc.Amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// selfOutbidCheck stops a bidder from raising their own standing high bid.
type selfOutbidCheck struct{}

func (selfOutbidCheck) Name() string { return "self_outbid" }

func (selfOutbidCheck) Check(_ context.Context, bc *CheckContext) error {
	if bc.Highest != nil && bc.Highest.BidderID == bc.BidderID {
		return ErrCannotOutbidSelf
	}
	return nil
}

// cooldownCheck rejects a bidder still inside the per-lot cooldown window.
// The window is armed only after a successful bid.
type cooldownCheck struct {
	store CooldownStore
}

func (cooldownCheck) Name() string { return "cooldown" }

func (c cooldownCheck) Check(ctx context.Context, bc *CheckContext) error {
	cooling, err := c.store.InCooldown(ctx, bc.Lot.ID, bc.BidderID)
	if err != nil {
		return fmt.Errorf("cooldown lookup: %w", err)
	}
	if cooling {
		return ErrRateLimited
	}
	return nil
}
