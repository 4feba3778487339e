package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// subscriber is the write side of one attached viewer. The hub and rooms
// only push frames; the read loop stays with whoever owns the connection.
type subscriber interface {
	send(msg []byte) error
	close()
}

// viewer pairs a websocket connection with a write lock, since gorilla
// allows one concurrent writer and both the room fan-out and the pinger
// write to it.
type viewer struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func newViewer(ws *websocket.Conn) *viewer { return &viewer{ws: ws} }

func (v *viewer) send(msg []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = v.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return v.ws.WriteMessage(websocket.TextMessage, msg)
}

func (v *viewer) sendJSON(val any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = v.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return v.ws.WriteJSON(val)
}

func (v *viewer) ping() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = v.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return v.ws.WriteMessage(websocket.PingMessage, nil)
}

// close unblocks the viewer's read loop, which then leaves its room.
func (v *viewer) close() { _ = v.ws.Close() }
