package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"presence-service/internal/domain"
	"presence-service/internal/identity"
	"presence-service/internal/metrics"
	"presence-service/internal/realtime"
)

// Close code sent after auth_error. 4000-4999 is reserved for applications.
const closeAuthFailed = 4001

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Handler struct {
	hub         *Hub
	router      *realtime.Router
	resolver    identity.Resolver
	authTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewHandler(hub *Hub, router *realtime.Router, resolver identity.Resolver, authTimeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		hub:         hub,
		router:      router,
		resolver:    resolver,
		authTimeout: authTimeout,
		metrics:     m,
		logger:      logger,
	}
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. The token comes from ?token= or from an authenticate frame sent
// first, within the auth timeout.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx := context.WithoutCancel(c.Request.Context())

	ident, err := h.authenticate(ctx, conn, c.Query("token"), c.Query("workspaceId"))
	if err != nil {
		h.rejectAuth(conn, err)
		return
	}

	client := newClient(conn, ident.UserID)
	session := &realtime.Session{SocketID: client.id, Identity: ident}

	// Connect의 프레임은 send 버퍼에 쌓이고, writePump는 등록이 끝난 뒤에 시작한다
	h.hub.register(client)
	if err := h.router.Connect(ctx, session); err != nil {
		h.hub.unregister(client)
		h.rejectAuth(conn, err)
		return
	}
	h.metrics.RecordConnectionOpened()
	go client.writePump()

	h.readPump(ctx, client, session)

	h.hub.unregister(client)
	h.router.Disconnect(ctx, session)
	h.metrics.RecordConnectionClosed()
	client.close()
}

func (h *Handler) authenticate(ctx context.Context, conn *websocket.Conn, token, workspace string) (domain.Identity, error) {
	if token == "" {
		conn.SetReadDeadline(time.Now().Add(h.authTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return domain.Identity{}, errors.New("no authenticate frame before timeout")
		}
		ev, err := realtime.DecodeInbound(raw)
		if err != nil {
			return domain.Identity{}, err
		}
		if ev.Type != realtime.EventAuthenticate {
			return domain.Identity{}, errors.New("first frame must be authenticate")
		}
		token = ev.Token
		if ev.WorkspaceID != "" {
			workspace = ev.WorkspaceID
		}
	}

	workspaceID := uuid.Nil
	if workspace != "" {
		id, err := uuid.Parse(workspace)
		if err != nil {
			return domain.Identity{}, errors.New("invalid workspaceId")
		}
		workspaceID = id
	}

	ctx, cancel := context.WithTimeout(ctx, h.authTimeout)
	defer cancel()
	return h.resolver.Resolve(ctx, token, workspaceID)
}

func (h *Handler) rejectAuth(conn *websocket.Conn, err error) {
	defer conn.Close()

	h.metrics.RecordAuthFailure()
	h.logger.Info("WebSocket authentication failed", zap.Error(err))

	reason := "authentication failed"
	switch {
	case errors.Is(err, domain.ErrUpstream):
		reason = "identity service unavailable"
	case errors.Is(err, domain.ErrForbidden):
		reason = "already connected in another organization"
	}

	payload, encErr := realtime.Encode(realtime.EventAuthError, realtime.AuthErrorData{Reason: reason})
	if encErr == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeAuthFailed, reason),
		time.Now().Add(writeWait))
}

func (h *Handler) readPump(ctx context.Context, client *Client, session *realtime.Session) {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket error",
					zap.String("socket_id", client.id.String()),
					zap.Error(err))
			}
			return
		}

		ev, err := realtime.DecodeInbound(message)
		if err != nil {
			h.logger.Debug("Failed to parse message", zap.Error(err))
			if payload, encErr := realtime.Encode(realtime.EventError, realtime.ErrorData{
				Code:    domain.ErrorCode(err),
				Message: err.Error(),
			}); encErr == nil {
				h.hub.Send(client.id, payload)
			}
			continue
		}

		h.router.Dispatch(ctx, session, ev)
	}
}
