package ws

import "sync"

// room fans one lot's event stream out to its attached viewers. Membership
// changes go through the Hub; the room itself only guards its set against
// concurrent broadcasts.
type room struct {
	mu   sync.Mutex
	subs map[subscriber]struct{}
}

func newRoom() *room { return &room{subs: map[subscriber]struct{}{}} }

func (r *room) add(s subscriber) {
	r.mu.Lock()
	r.subs[s] = struct{}{}
	r.mu.Unlock()
}

// drop detaches the viewer and reports how many remain, so the Hub can
// retire an emptied room.
func (r *room) drop(s subscriber) int {
	r.mu.Lock()
	delete(r.subs, s)
	n := len(r.subs)
	r.mu.Unlock()
	s.close()
	return n
}

func (r *room) broadcast(msg []byte) {
	r.mu.Lock()
	subs := make([]subscriber, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	// Writes happen outside the lock. A viewer that cannot take the frame
	// is closed; its read loop then leaves the room.
	for _, s := range subs {
		if err := s.send(msg); err != nil {
			s.close()
		}
	}
}
