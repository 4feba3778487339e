package bidhistory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Entry is a reference to a bid a user placed. It carries ids only; the
// lot and bid records stay where they live and are joined at read time.
type Entry struct {
	LotID    string          `json:"lot_id"`
	BidID    string          `json:"bid_id"`
	Amount   decimal.Decimal `json:"amount"`
	PlacedAt time.Time       `json:"placed_at"`
}

// Recorder keeps the last N bid references per bidder for UI display.
type Recorder interface {
	Push(ctx context.Context, bidderID string, e Entry)
	List(ctx context.Context, bidderID string) ([]Entry, error)
}

// RedisRecorder stores each bidder's ring as a trimmed Redis list under
// "bidder:<id>:bids", newest first.
type RedisRecorder struct {
	rdc  *redis.Client
	size int64
}

func NewRedisRecorder(rdc *redis.Client, size int) *RedisRecorder {
	if size <= 0 {
		size = 10
	}
	return &RedisRecorder{rdc: rdc, size: int64(size)}
}

var _ Recorder = (*RedisRecorder)(nil)

func key(bidderID string) string { return "bidder:" + bidderID + ":bids" }

// Push is best effort: history is a display concern and must never fail
// the bid that produced it.
func (r *RedisRecorder) Push(ctx context.Context, bidderID string, e Entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		zap.L().Warn("bidhistory.marshal", zap.Error(err))
		return
	}
	pipe := r.rdc.TxPipeline()
	pipe.LPush(ctx, key(bidderID), raw)
	pipe.LTrim(ctx, key(bidderID), 0, r.size-1)
	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Warn("bidhistory.push", zap.String("bidder", bidderID), zap.Error(err))
	}
}

func (r *RedisRecorder) List(ctx context.Context, bidderID string) ([]Entry, error) {
	raws, err := r.rdc.LRange(ctx, key(bidderID), 0, r.size-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			zap.L().Warn("bidhistory.decode", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
