package auction

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore remembers which (lot, bidder) pairs recently bid.
type CooldownStore interface {
	InCooldown(ctx context.Context, lotID, bidderID string) (bool, error)
	Arm(ctx context.Context, lotID, bidderID string, ttl time.Duration) error
}

// RedisCooldownStore keys cooldowns as "bid:<lotID>:<bidderID>" with a TTL,
// so the window expires on its own.
type RedisCooldownStore struct {
	rdc *redis.Client
}

func NewRedisCooldownStore(rdc *redis.Client) *RedisCooldownStore {
	return &RedisCooldownStore{rdc: rdc}
}

var _ CooldownStore = (*RedisCooldownStore)(nil)

func cooldownKey(lotID, bidderID string) string {
	return "bid:" + lotID + ":" + bidderID
}

func (s *RedisCooldownStore) InCooldown(ctx context.Context, lotID, bidderID string) (bool, error) {
	n, err := s.rdc.Exists(ctx, cooldownKey(lotID, bidderID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisCooldownStore) Arm(ctx context.Context, lotID, bidderID string, ttl time.Duration) error {
	return s.rdc.Set(ctx, cooldownKey(lotID, bidderID), "1", ttl).Err()
}
