package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"flowerbidgo/internal/bidledger"
	"flowerbidgo/internal/catalog"
	"flowerbidgo/internal/lot"
	"flowerbidgo/internal/notify"
	"flowerbidgo/internal/wallet"
)

// Settlement outcome reasons.
const (
	ReasonNoBids            = "no_bids"
	ReasonInsufficientFunds = "insufficient_funds"
)

// SettlementResult reports how a lot's auction was resolved. Settled is
// true only when funds actually moved; a failed or bid-less settlement
// still closes the lot and says why in Reason.
type SettlementResult struct {
	LotID    string          `json:"lot_id"`
	WinnerID string          `json:"winner_id,omitempty"`
	BidID    string          `json:"bid_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Settled  bool            `json:"settled"`
	Reason   string          `json:"reason,omitempty"`
}

// CloseExpiredLots is the periodic sweep entry point. A failure on one lot
// is logged and never aborts the rest of the sweep.
func (svc *auctionService) CloseExpiredLots(ctx context.Context, now time.Time) {
	lots, err := svc.store.ListExpiredLots(ctx, now)
	if err != nil {
		zap.L().Error("sweep_list_failed", zap.Error(err))
		return
	}
	for _, l := range lots {
		if _, err := svc.Finalize(ctx, l.ID, ""); err != nil {
			zap.L().Error("sweep_finalize_failed",
				zap.String("lot", l.ID), zap.Error(err))
		}
	}
}

// Finalize closes the lot, picks the winner and debits their wallet. It is
// idempotent: once the settled marker is set, repeated calls reconstruct
// the same result without touching any wallet again. The per-lot mutex
// serialises it against bidding and the sweep; the Redis lock additionally
// fences other instances.
//
// requesterID attributes an explicit call: only the owning seller may
// finalize their lot. Internal callers (sweep, watcher) and admins pass
// the empty string.
func (svc *auctionService) Finalize(ctx context.Context, lotID, requesterID string) (*SettlementResult, error) {
	unlock := svc.lockLot(lotID)
	defer unlock()

	if svc.rdc != nil {
		lockKey := finalizeLockPrefix + lotID
		ok, err := svc.rdc.SetNX(ctx, lockKey, 1, finalizeLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("finalize lock for %s: %w", lotID, err)
		}
		if !ok {
			// Another instance is already finalising this lot.
			return nil, ErrConflict
		}
		defer svc.rdc.Del(ctx, lockKey)
	}

	l, err := svc.loadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if requesterID != "" && l.SellerID != requesterID {
		return nil, fmt.Errorf("%w: lot belongs to another seller", ErrInvalidLot)
	}
	if l.Settled {
		return svc.settledResult(ctx, l)
	}

	wasOpen := l.Status != lot.StatusClosed
	l.Status = lot.StatusClosed

	highest, err := svc.ledger.HighestBid(ctx, lotID)
	if errors.Is(err, bidledger.ErrNoBids) {
		l.Settled = true
		if err := svc.saveSettlement(ctx, l); err != nil {
			return nil, err
		}
		if wasOpen {
			svc.notify.Broadcast(ctx, lotID, notify.EventAuctionClosed, l)
		}
		return &SettlementResult{LotID: lotID, Reason: ReasonNoBids}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("winner lookup for %s: %w", lotID, err)
	}

	// Confirm the flag sits on the resolved winner before money moves.
	// Failing here leaves the lot unsettled for the next sweep; no debit
	// has happened yet.
	if err := svc.ledger.SetWinning(ctx, lotID, highest.ID); err != nil {
		return nil, fmt.Errorf("mark winning bid of %s: %w", lotID, err)
	}

	// The debit is conditional on the balance still covering the winning
	// amount; the bid-time check is stale by now.
	err = svc.wallet.Debit(ctx, highest.BidderID, highest.Amount)
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds), errors.Is(err, wallet.ErrUserNotFound):
		// No bid wins an unfunded lot; the flag must be gone before the
		// settled marker lands, or a reader could see a winning bid on a
		// winnerless lot.
		if serr := svc.ledger.SetWinning(ctx, lotID, ""); serr != nil {
			return nil, fmt.Errorf("clear winning bid of %s: %w", lotID, serr)
		}
		l.Settled = true
		l.WinningBidID = ""
		if serr := svc.saveSettlement(ctx, l); serr != nil {
			return nil, serr
		}
		if wasOpen {
			svc.notify.Broadcast(ctx, lotID, notify.EventAuctionClosed, l)
		}
		res := &SettlementResult{
			LotID:    lotID,
			WinnerID: highest.BidderID,
			BidID:    highest.ID,
			Amount:   highest.Amount,
			Reason:   ReasonInsufficientFunds,
		}
		svc.notify.Broadcast(ctx, lotID, notify.EventSettlementFailed, res)
		zap.L().Warn("settlement_failed_unfunded",
			zap.String("lot", lotID), zap.String("bidder", highest.BidderID))
		return res, nil
	case err != nil:
		// Wallet unreachable: leave the lot unsettled so the next sweep
		// retries. Nothing was debited.
		return nil, fmt.Errorf("debit winner of %s: %w", lotID, err)
	}

	l.Settled = true
	l.WinningBidID = highest.ID
	if err := svc.saveSettlement(ctx, l); err != nil {
		return nil, err
	}

	res := &SettlementResult{
		LotID:    lotID,
		WinnerID: highest.BidderID,
		BidID:    highest.ID,
		Amount:   highest.Amount,
		Settled:  true,
	}
	if wasOpen {
		svc.notify.Broadcast(ctx, lotID, notify.EventAuctionClosed, l)
	}
	svc.notify.Broadcast(ctx, lotID, notify.EventAuctionSettled, res)
	return res, nil
}

// settledResult rebuilds the original outcome of an already-settled lot, so
// repeat Finalize calls return what the first one did.
func (svc *auctionService) settledResult(ctx context.Context, l *lot.Lot) (*SettlementResult, error) {
	if l.WinningBidID == "" {
		highest, err := svc.ledger.HighestBid(ctx, l.ID)
		if errors.Is(err, bidledger.ErrNoBids) {
			return &SettlementResult{LotID: l.ID, Reason: ReasonNoBids}, nil
		}
		if err != nil {
			return nil, err
		}
		// Bids exist but none resolved: the top one is the bidder whose
		// funds fell short at settlement time.
		return &SettlementResult{
			LotID:    l.ID,
			WinnerID: highest.BidderID,
			BidID:    highest.ID,
			Amount:   highest.Amount,
			Reason:   ReasonInsufficientFunds,
		}, nil
	}
	b, err := svc.ledger.GetBid(ctx, l.ID, l.WinningBidID)
	if err != nil {
		return nil, fmt.Errorf("winning bid of %s: %w", l.ID, err)
	}
	return &SettlementResult{
		LotID:    l.ID,
		WinnerID: b.BidderID,
		BidID:    b.ID,
		Amount:   b.Amount,
		Settled:  true,
	}, nil
}

// saveSettlement persists the settlement write, absorbing one version
// conflict by re-applying the fields to the fresh row.
func (svc *auctionService) saveSettlement(ctx context.Context, l *lot.Lot) error {
	err := svc.store.SaveLot(ctx, l)
	if errors.Is(err, catalog.ErrVersionConflict) {
		fresh, ferr := svc.loadLot(ctx, l.ID)
		if ferr != nil {
			return ferr
		}
		fresh.Status = l.Status
		fresh.Settled = l.Settled
		fresh.WinningBidID = l.WinningBidID
		*l = *fresh
		err = svc.store.SaveLot(ctx, l)
	}
	if err != nil {
		return fmt.Errorf("persist settlement for %s: %w", l.ID, err)
	}
	return nil
}

// PurgeClosedBids is the storage hygiene pass: losing bids of settled lots
// go away, winning bids are retained forever.
func (svc *auctionService) PurgeClosedBids(ctx context.Context) error {
	const page = 100
	for offset := 0; ; offset += page {
		lots, err := svc.store.ListLots(ctx, string(lot.StatusClosed), page, offset)
		if err != nil {
			return fmt.Errorf("list closed lots: %w", err)
		}
		for _, l := range lots {
			if !l.Settled {
				continue
			}
			n, err := svc.ledger.PurgeLosingBids(ctx, l.ID)
			if err != nil {
				zap.L().Error("bid_purge_failed", zap.String("lot", l.ID), zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("bids_purged", zap.String("lot", l.ID), zap.Int64("deleted", n))
			}
		}
		if len(lots) < page {
			return nil
		}
	}
}
