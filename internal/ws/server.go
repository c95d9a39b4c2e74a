package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"antiquebid/internal/ledger"
	"antiquebid/internal/services/bidding"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait
	maxMsgSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev-only
}

type WsServer struct {
	hub    *Hub
	subMgr *subscriptionManager
	router *Router
	svc    bidding.IBiddingService
}

func NewWsServer(h *Hub, rdc *redis.Client, svc bidding.IBiddingService) *WsServer {
	srv := &WsServer{
		hub:    h,
		subMgr: newSubscriptionManager(rdc, h),
		router: NewRouter(),
		svc:    svc,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	lotID := ginCtx.Query("lot_id")
	userID := ginCtx.Query("user_id")
	if lotID == "" || userID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "lot_id and user_id are required"})
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMsgSize)
	_ = rawConn.SetReadDeadline(time.Now().Add(pongWait))
	rawConn.SetPongHandler(func(string) error {
		return rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// ─────────────────── Watcher joined ────────────────────────
	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Join(lotID, wsConn)
	s.subMgr.Subscribe(lotID) // may be a no-op (already subscribed)

	// Initial snapshot.
	if err := s.pushInitialSnapshot(ginCtx.Request.Context(), lotID, wsConn); err != nil &&
		!errors.Is(err, ledger.ErrLotNotFound) {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(lotID, userID, wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 lots/bid -------------------------------------------------------------
	Register(
		s.router,
		"lots/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (AckBody, error) {
			if req.Amount <= 0 {
				return AckBody{}, errors.New("invalid_amount")
			}
			_, err := s.svc.PlaceBid(ctx, cc.LotID, cc.UserID, req.Amount)
			return AckBody{}, err
		},
	)
}

func (s *WsServer) pushInitialSnapshot(ctx context.Context, lotID string, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	lot, err := s.svc.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	return conn.writeJSON(gin.H{
		"event": "lots/snapshot",
		"body":  lot,
	})
}

func (s *WsServer) reader(lotID, userID string, conn *clientConn) {
	defer func() {
		s.hub.Leave(lotID, conn)
		s.subMgr.Unsubscribe(lotID)
	}()

	cc := &ConnContext{LotID: lotID, UserID: userID, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.write(websocket.PingMessage, nil); err != nil {
			conn.rawConn.Close()
			return
		}
	}
}
