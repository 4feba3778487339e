package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event names pushed to connected viewers.
const (
	EventAuctionStarted   = "auctionStarted"
	EventBidAccepted      = "bidAccepted"
	EventAuctionClosed    = "auctionClosed"
	EventAuctionSettled   = "auctionSettled"
	EventSettlementFailed = "settlementFailed"
)

// Channel pushes live auction events to subscribed viewers. Delivery is
// at-most-once and best effort: implementations log failures and never
// propagate them into the state mutation that produced the event.
type Channel interface {
	Broadcast(ctx context.Context, lotID, event string, payload any)
}

// RedisChannel publishes to "lot:<id>:events"; every instance's websocket
// layer subscribes there, so events reach viewers on any node.
type RedisChannel struct {
	rdc *redis.Client
}

func NewRedisChannel(rdc *redis.Client) *RedisChannel { return &RedisChannel{rdc: rdc} }

var _ Channel = (*RedisChannel)(nil)

// ChannelName is the pub/sub channel carrying a lot's events.
func ChannelName(lotID string) string { return "lot:" + lotID + ":events" }

func (c *RedisChannel) Broadcast(ctx context.Context, lotID, event string, payload any) {
	raw, err := json.Marshal(map[string]any{
		"event": event,
		"body":  payload,
	})
	if err != nil {
		zap.L().Warn("notify.marshal", zap.String("event", event), zap.Error(err))
		return
	}
	if err := c.rdc.Publish(ctx, ChannelName(lotID), raw).Err(); err != nil {
		zap.L().Warn("notify.publish",
			zap.String("lot", lotID), zap.String("event", event), zap.Error(err))
	}
}

// Nop drops every event. Used where no viewers can exist, e.g. tests.
type Nop struct{}

func (Nop) Broadcast(context.Context, string, string, any) {}
