package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/service"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/response"
)

// Gateway upgrades chat connections and streams room messages to clients.
// Browsers cannot set an Authorization header on a websocket handshake, so
// the access token travels in the token query parameter.
type Gateway struct {
	hub          *Hub
	auth         *service.AuthService
	chat         *service.ChatService
	metrics      *service.MetricsService
	presence     *Presence
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewGateway constructs the websocket gateway. Presence may be nil.
func NewGateway(hub *Hub, auth *service.AuthService, chat *service.ChatService, metrics *service.MetricsService, presence *Presence, writeTimeout time.Duration, logger *zap.Logger) *Gateway {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{hub: hub, auth: auth, chat: chat, metrics: metrics, presence: presence, writeTimeout: writeTimeout, logger: logger}
}

type readyFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// HandleRoom serves GET /ws/rooms/:id.
func (g *Gateway) HandleRoom(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing token"))
		return
	}
	claims, err := g.auth.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	principal := authz.FromClaims(claims)

	roomID := c.Param("id")
	if _, _, err := g.chat.GetRoom(c.Request.Context(), principal, roomID); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{})
	if err != nil {
		g.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub := g.hub.Register(roomID)
	defer g.hub.Unregister(roomID, sub)
	if g.metrics != nil {
		g.metrics.ConnectionOpened()
		defer g.metrics.ConnectionClosed()
	}
	if g.presence != nil {
		g.presence.Join(ctx, roomID, principal.ID)
		// Leave must outlive the request context or the SREM is dropped.
		defer func() {
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), time.Second)
			defer leaveCancel()
			g.presence.Leave(leaveCtx, roomID, principal.ID)
		}()
	}

	ready, _ := json.Marshal(readyFrame{Type: "ready", RoomID: roomID})
	if err := g.write(ctx, conn, ready); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
		return
	}

	// drain the read side so pings and close frames are processed
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case payload, ok := <-sub:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			}
			if err := g.write(ctx, conn, payload); err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

func (g *Gateway) write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
