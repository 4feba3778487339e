package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flowerbidgo/internal/services/auction"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second // must be < pongWait
)

// WsServer attaches viewers to lot event rooms. Viewers are read-only:
// bids travel through the REST surface; this stream only pushes
// auctionStarted / bidAccepted / auctionClosed / auctionSettled frames.
type WsServer struct {
	hub        *Hub
	subMgr     *subscriptionManager
	auctionSvc auction.IAuctionService
	upgrader   websocket.Upgrader
}

func NewWsServer(h *Hub, rdc *redis.Client, auctionSvc auction.IAuctionService) *WsServer {
	return &WsServer{
		hub:        h,
		subMgr:     newSubscriptionManager(rdc, h),
		auctionSvc: auctionSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
	}
}

// Handle is the gin entry point for GET /ws?lot_id=...
func (s *WsServer) Handle(ginCtx *gin.Context) {
	lotID := ginCtx.Query("lot_id")
	if lotID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "lot_id is required"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	v := newViewer(rawConn)
	s.hub.Join(lotID, v)
	s.subMgr.Subscribe(lotID) // may be a no-op (already subscribed)

	if err := s.pushInitialSnapshot(ginCtx.Request.Context(), lotID, v); err != nil {
		zap.L().Warn("ws.snapshot", zap.String("lot", lotID), zap.Error(err))
	}

	go s.reader(lotID, v)
	go s.pinger(v)
}

// pushInitialSnapshot gives a fresh viewer the lot's current state so the
// UI renders without waiting for the next event.
func (s *WsServer) pushInitialSnapshot(ctx context.Context, id string, v *viewer) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	l, err := s.auctionSvc.GetLot(ctx, id)
	if err != nil {
		_ = v.sendJSON(gin.H{
			"event": "error",
			"body":  gin.H{"error": err.Error()},
		})
		return err
	}
	return v.sendJSON(gin.H{
		"event": "snapshot",
		"body":  l,
	})
}

// reader drains the connection until the viewer goes away, then releases
// the room slot and the Redis subscription.
func (s *WsServer) reader(lotID string, v *viewer) {
	defer func() {
		s.hub.Leave(lotID, v)
		s.subMgr.Unsubscribe(lotID)
	}()

	_ = v.ws.SetReadDeadline(time.Now().Add(pongWait))
	v.ws.SetPongHandler(func(string) error {
		return v.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := v.ws.ReadMessage(); err != nil {
			return // client closed or timed out
		}
	}
}

func (s *WsServer) pinger(v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := v.ping(); err != nil {
			return // reader tears the connection down
		}
	}
}
