package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"flowerbidgo/internal/services/auction"
)

// Sweeper drives the recurring settlement jobs: the frequent sweep that
// closes lots whose window elapsed, and the nightly purge of losing bids.
type Sweeper struct {
	cron *cron.Cron
	svc  auction.IAuctionService
}

// New schedules the sweep at the given interval plus the purge at 01:00.
func New(ctx context.Context, svc auction.IAuctionService, sweepEvery time.Duration) (*Sweeper, error) {
	c := cron.New()

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", sweepEvery), func() {
		svc.CloseExpiredLots(ctx, time.Now().UTC())
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}

	if _, err := c.AddFunc("0 1 * * *", func() {
		if err := svc.PurgeClosedBids(ctx); err != nil {
			zap.L().Error("bid_cleanup_job", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule cleanup: %w", err)
	}

	return &Sweeper{cron: c, svc: svc}, nil
}

// Start runs the jobs in the cron's own goroutines and stops them when ctx
// is done. An immediate first sweep picks up lots that expired while the
// process was down.
func (s *Sweeper) Start(ctx context.Context) {
	s.svc.CloseExpiredLots(ctx, time.Now().UTC())
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}
