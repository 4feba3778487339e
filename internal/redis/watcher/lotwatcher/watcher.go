package lotwatcher

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flowerbidgo/internal/services/auction"
)

// Run listens for lot timer key expiries and finalises the lot the moment
// its window ends, ahead of the next sweep tick. The sweep remains the
// mechanism of record; losing an expiry event only costs latency.
// Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc auction.IAuctionService) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok {
				return
			}
			if !strings.HasPrefix(m.Payload, auction.LotTimerKeyPrefix) {
				continue
			}
			id := strings.TrimPrefix(m.Payload, auction.LotTimerKeyPrefix)
			if _, err := svc.Finalize(ctx, id, ""); err != nil {
				zap.L().Warn("watcher_finalize", zap.String("lot", id), zap.Error(err))
			}
		}
	}
}
