package ws

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"flowerbidgo/internal/notify"
)

// subscriptionManager guarantees that the process holds exactly one Redis
// subscription per lot event channel, no matter how many websocket viewers
// join the same lot room.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[string]*subEntry // lotID -> subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[string]*subEntry),
	}
}

// Subscribe ensures the process is subscribed to the lot's channel;
// subsequent calls for the same lot only increment the ref-counter.
func (sm *subscriptionManager) Subscribe(lotID string) {
	sm.mu.Lock()
	if e, ok := sm.subs[lotID]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	// First viewer: create the Redis SUB and its fan-out loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, notify.ChannelName(lotID))

	sm.subs[lotID] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				// The published payload is already the wire envelope
				// {"event":...,"body":...}; forward it untouched.
				sm.hub.Broadcast(lotID, []byte(m.Payload))
			}
		}
	}()
}

// Unsubscribe decrements the ref-counter and tears the Redis SUB down when
// the last viewer leaves the room.
func (sm *subscriptionManager) Unsubscribe(lotID string) {
	sm.mu.Lock()
	e, ok := sm.subs[lotID]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, lotID)
	sm.mu.Unlock()

	// Outside the lock: stop the fan-out goroutine.
	e.cancel()
}
