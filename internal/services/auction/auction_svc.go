package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"flowerbidgo/internal/bidhistory"
	"flowerbidgo/internal/bidledger"
	"flowerbidgo/internal/catalog"
	"flowerbidgo/internal/lot"
	"flowerbidgo/internal/notify"
	"flowerbidgo/internal/wallet"
)

const (
	// LotTimerKeyPrefix names the disposable Redis TTL keys whose expiry
	// nudges the watcher into finalising a lot early. The periodic sweep
	// remains the closing mechanism of record.
	LotTimerKeyPrefix = "lot_t:"

	finalizeLockPrefix = "lot_lock:"
	finalizeLockTTL    = 5 * time.Second

	// Bounded internal retries after losing a catalog CAS race.
	maxConflictRetries = 3
)

type IAuctionService interface {
	CreateLot(ctx context.Context, l lot.Lot) (*lot.Lot, error)
	DeleteLot(ctx context.Context, lotID, requesterID string) error
	GetLot(ctx context.Context, id string) (*lot.Lot, error)
	ListLots(ctx context.Context, status string, limit, offset int) ([]lot.Lot, error)
	ListBids(ctx context.Context, lotID string) ([]bidledger.Bid, error)
	PlaceBid(ctx context.Context, lotID, bidderID string, amount decimal.Decimal) (*bidledger.Bid, error)
	BidHistory(ctx context.Context, bidderID string) ([]bidhistory.Entry, error)
	CloseExpiredLots(ctx context.Context, now time.Time)
	Finalize(ctx context.Context, lotID, requesterID string) (*SettlementResult, error)
	PurgeClosedBids(ctx context.Context) error
}

type auctionService struct {
	store   catalog.Store
	ledger  bidledger.Ledger
	wallet  wallet.Service
	notify  notify.Channel
	history bidhistory.Recorder
	policy  Policy
	checks  []BidCheck

	// rdc carries the cross-instance finalize guard and the lot-expiry
	// timer keys. Optional: nil disables both (single-instance tests).
	rdc *redis.Client

	locks sync.Map // lot id -> *sync.Mutex
	now   func() time.Time
}

func NewAuctionService(
	store catalog.Store,
	ledger bidledger.Ledger,
	w wallet.Service,
	ch notify.Channel,
	hist bidhistory.Recorder,
	rdc *redis.Client,
	policy Policy,
) IAuctionService {
	return &auctionService{
		store:   store,
		ledger:  ledger,
		wallet:  w,
		notify:  ch,
		history: hist,
		policy:  policy,
		checks:  buildChecks(w, policy),
		rdc:     rdc,
		now:     time.Now,
	}
}

// lockLot serialises every mutation of one lot. Different lots never
// contend with each other.
func (svc *auctionService) lockLot(id string) func() {
	v, _ := svc.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (svc *auctionService) CreateLot(ctx context.Context, l lot.Lot) (*lot.Lot, error) {
	now := svc.now().UTC()
	if l.Name == "" || l.SellerID == "" {
		return nil, fmt.Errorf("%w: name and seller required", ErrInvalidLot)
	}
	if l.InitialPrice.Sign() <= 0 {
		return nil, fmt.Errorf("%w: initial price must be positive", ErrInvalidLot)
	}
	if !l.EndsAt.After(l.StartsAt) || !l.EndsAt.After(now) {
		return nil, fmt.Errorf("%w: ends_at must be after starts_at and in the future", ErrInvalidLot)
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.CurrentPrice = l.InitialPrice
	l.WinningBidID = ""
	l.Settled = false
	l.Status = lot.StatusUpcoming
	l.Status, _ = lot.Evaluate(l, now)

	if err := svc.store.CreateLot(ctx, l); err != nil {
		return nil, err
	}
	svc.armExpiryTimer(ctx, l.ID, l.EndsAt)
	if l.Status == lot.StatusLive {
		svc.notify.Broadcast(ctx, l.ID, notify.EventAuctionStarted, l)
	}
	return &l, nil
}

// DeleteLot is allowed only to the owning seller and only while no bid
// exists; once money is on the table the record is permanent.
func (svc *auctionService) DeleteLot(ctx context.Context, lotID, requesterID string) error {
	unlock := svc.lockLot(lotID)
	defer unlock()

	l, err := svc.loadLot(ctx, lotID)
	if err != nil {
		return err
	}
	if l.SellerID != requesterID {
		return fmt.Errorf("%w: lot belongs to another seller", ErrInvalidLot)
	}
	n, err := svc.ledger.CountForLot(ctx, lotID)
	if err != nil {
		return fmt.Errorf("count bids for %s: %w", lotID, err)
	}
	if n > 0 {
		return ErrLotHasBids
	}
	return svc.store.DeleteLot(ctx, lotID)
}

// GetLot evaluates the state machine lazily so readers observe a correct
// status even when no sweep tick has run since the transition instant.
func (svc *auctionService) GetLot(ctx context.Context, id string) (*lot.Lot, error) {
	l, err := svc.loadLot(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := svc.applyTransition(ctx, l, svc.now().UTC()); err != nil {
		return nil, err
	}
	return l, nil
}

func (svc *auctionService) ListLots(ctx context.Context, status string, limit, offset int) ([]lot.Lot, error) {
	lots, err := svc.store.ListLots(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	// Readers see the time-correct status without waiting for the sweep
	// to persist it.
	now := svc.now().UTC()
	for i := range lots {
		lots[i].Status, _ = lot.Evaluate(lots[i], now)
	}
	return lots, nil
}

func (svc *auctionService) ListBids(ctx context.Context, lotID string) ([]bidledger.Bid, error) {
	if _, err := svc.loadLot(ctx, lotID); err != nil {
		return nil, err
	}
	return svc.ledger.ListBidsForLot(ctx, lotID)
}

// PlaceBid validates and atomically commits one bid. All mutations of the
// lot happen under its mutex; a lost catalog CAS race is retried a bounded
// number of times before ErrConflict surfaces.
func (svc *auctionService) PlaceBid(ctx context.Context, lotID, bidderID string, amount decimal.Decimal) (*bidledger.Bid, error) {
	unlock := svc.lockLot(lotID)
	defer unlock()

	var (
		b   *bidledger.Bid
		err error
	)
	for attempt := 0; ; attempt++ {
		b, err = svc.tryPlaceBid(ctx, lotID, bidderID, amount)
		if !errors.Is(err, ErrConflict) || attempt >= maxConflictRetries {
			break
		}
		zap.L().Debug("bid_retry_after_conflict",
			zap.String("lot", lotID), zap.Int("attempt", attempt+1))
	}
	return b, err
}

func (svc *auctionService) tryPlaceBid(ctx context.Context, lotID, bidderID string, amount decimal.Decimal) (*bidledger.Bid, error) {
	now := svc.now().UTC()

	l, err := svc.loadLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if err := svc.applyTransition(ctx, l, now); err != nil {
		return nil, err
	}

	highest, err := svc.ledger.HighestBid(ctx, lotID)
	if err != nil && !errors.Is(err, bidledger.ErrNoBids) {
		return nil, fmt.Errorf("highest bid for %s: %w", lotID, err)
	}

	bc := &CheckContext{Lot: l, Highest: highest, BidderID: bidderID, Amount: amount, Now: now}
	for _, check := range svc.checks {
		if err := check.Check(ctx, bc); err != nil {
			return nil, err
		}
	}

	b := bidledger.Bid{
		ID:        uuid.New().String(),
		LotID:     lotID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  now,
		IsWinning: true,
	}

	prevPrice, prevWinning := l.CurrentPrice, l.WinningBidID
	l.CurrentPrice = amount
	l.WinningBidID = b.ID
	if err := svc.store.SaveLot(ctx, l); err != nil {
		l.CurrentPrice, l.WinningBidID = prevPrice, prevWinning
		if errors.Is(err, catalog.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}

	// Append and flip in one ledger step: either the new bid is the lot's
	// sole winner or nothing happened, so the one-winner invariant holds
	// for every reader.
	if err := svc.ledger.AppendWinning(ctx, b); err != nil {
		// Undo the price raise so no half-committed bid is observable.
		l.CurrentPrice, l.WinningBidID = prevPrice, prevWinning
		if rbErr := svc.store.SaveLot(ctx, l); rbErr != nil {
			zap.L().Error("bid_rollback_failed",
				zap.String("lot", lotID), zap.Error(rbErr))
		}
		return nil, fmt.Errorf("append bid: %w", err)
	}

	if svc.policy.Cooldown > 0 && svc.policy.CooldownStore != nil {
		if err := svc.policy.CooldownStore.Arm(ctx, lotID, bidderID, svc.policy.Cooldown); err != nil {
			zap.L().Warn("cooldown_arm_failed", zap.String("lot", lotID), zap.Error(err))
		}
	}
	if svc.history != nil {
		svc.history.Push(ctx, bidderID, bidhistory.Entry{
			LotID: lotID, BidID: b.ID, Amount: amount, PlacedAt: now,
		})
	}
	svc.notify.Broadcast(ctx, lotID, notify.EventBidAccepted, b)
	return &b, nil
}

func (svc *auctionService) BidHistory(ctx context.Context, bidderID string) ([]bidhistory.Entry, error) {
	if svc.history == nil {
		return nil, nil
	}
	return svc.history.List(ctx, bidderID)
}

func (svc *auctionService) loadLot(ctx context.Context, id string) (*lot.Lot, error) {
	l, err := svc.store.GetLot(ctx, id)
	if errors.Is(err, catalog.ErrLotNotFound) {
		return nil, ErrLotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load lot %s: %w", id, err)
	}
	return l, nil
}

// applyTransition persists a due status change and announces it. A CAS
// loss here just means another writer persisted the same decision first;
// the reloaded row is taken as-is.
func (svc *auctionService) applyTransition(ctx context.Context, l *lot.Lot, now time.Time) error {
	st, changed := lot.Evaluate(*l, now)
	if !changed {
		return nil
	}
	l.Status = st
	if err := svc.store.SaveLot(ctx, l); err != nil {
		if errors.Is(err, catalog.ErrVersionConflict) {
			fresh, ferr := svc.loadLot(ctx, l.ID)
			if ferr != nil {
				return ferr
			}
			*l = *fresh
			return nil
		}
		return fmt.Errorf("persist transition for %s: %w", l.ID, err)
	}
	switch st {
	case lot.StatusLive:
		svc.notify.Broadcast(ctx, l.ID, notify.EventAuctionStarted, l)
	case lot.StatusClosed:
		svc.notify.Broadcast(ctx, l.ID, notify.EventAuctionClosed, l)
	}
	return nil
}

// armExpiryTimer sets the disposable TTL key watched by the lot watcher.
// Purely a latency optimisation; failures are logged and ignored.
func (svc *auctionService) armExpiryTimer(ctx context.Context, lotID string, endsAt time.Time) {
	if svc.rdc == nil {
		return
	}
	ttl := endsAt.Sub(svc.now())
	if ttl <= 0 {
		return
	}
	if err := svc.rdc.Set(ctx, LotTimerKeyPrefix+lotID, "1", ttl).Err(); err != nil {
		zap.L().Warn("expiry_timer_set_failed", zap.String("lot", lotID), zap.Error(err))
	}
}
