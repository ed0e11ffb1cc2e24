package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/canchat/canchat/internal/auth"
	"github.com/canchat/canchat/internal/channels"
	"github.com/canchat/canchat/internal/chat"
	"github.com/canchat/canchat/internal/messages"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// Ping interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound frame size.
	maxMessageSize = 64 << 10
)

// Inbound message rate per connection.
var messageRate = rate.Limit(10)

const messageBurst = 20

// WSHandler serves the realtime websocket endpoint.
type WSHandler struct {
	gateway   *chat.Gateway
	jwtSecret string
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewWSHandler creates the websocket handler.
func NewWSHandler(log *slog.Logger, gateway *chat.Gateway, jwtSecret string) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		gateway:   gateway,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.With(slog.String("handler", "ws")),
	}
}

// Register mounts GET /ws on the Echo instance.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the connection and runs the read loop until the client
// disconnects. Teardown is synchronous: by the time the loop returns, the
// connection is out of every channel's live set.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	sess := h.gateway.Connect()
	ctx := c.Request().Context()

	writeDone := make(chan struct{})
	go h.writePump(conn, sess, writeDone)

	h.readPump(ctx, conn, sess)

	h.gateway.Disconnect(ctx, sess)
	<-writeDone
	_ = conn.Close()
	return nil
}

// readPump consumes inbound frames and dispatches them until the connection
// errors or closes.
func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, sess *chat.Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(messageRate, messageBurst)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read error",
					slog.String("connection_id", sess.ID()),
					slog.Any("error", err))
			}
			return
		}
		if !limiter.Allow() {
			h.sendError(sess, "rate_limited", "too many messages, slow down")
			continue
		}
		h.dispatch(ctx, sess, raw)
	}
}

// writePump drains the session's outbound queue to the peer and keeps the
// connection alive with pings. It exits when the queue closes or a write
// fails.
func (h *WSHandler) writePump(conn *websocket.Conn, sess *chat.Session, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sess.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound event to its handler.
func (h *WSHandler) dispatch(ctx context.Context, sess *chat.Session, raw []byte) {
	event, err := chat.DecodeEvent(raw)
	if err != nil {
		h.sendError(sess, "bad_request", "malformed event")
		return
	}
	switch event.Type {
	case chat.EventAuthenticate:
		h.handleAuthenticate(ctx, sess, event.Data)
	case chat.EventJoinChannel:
		h.handleJoin(ctx, sess, event.Data)
	case chat.EventLeaveChannel:
		h.handleLeave(ctx, sess, event.Data)
	case chat.EventSendMessage:
		h.handleSend(ctx, sess, event.Data)
	default:
		h.sendError(sess, "bad_request", "unknown event type")
	}
}

func (h *WSHandler) handleAuthenticate(ctx context.Context, sess *chat.Session, data json.RawMessage) {
	var payload chat.AuthenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || strings.TrimSpace(payload.Token) == "" {
		h.sendError(sess, "bad_request", "token is required")
		return
	}
	userID, err := auth.ParseToken(payload.Token, h.jwtSecret)
	if err != nil {
		h.sendError(sess, "invalid_token", "token is invalid or expired")
		return
	}
	if _, err := h.gateway.Authenticate(ctx, sess, userID); err != nil {
		h.sendOpError(sess, err)
		return
	}
	h.sendAck(sess, chat.EventAuthenticate)
}

func (h *WSHandler) handleJoin(ctx context.Context, sess *chat.Session, data json.RawMessage) {
	var payload chat.JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChannelID <= 0 {
		h.sendError(sess, "bad_request", "channel_id is required")
		return
	}
	if err := h.gateway.Subscribe(ctx, sess, payload.ChannelID); err != nil {
		h.sendOpError(sess, err)
		return
	}
	h.sendAck(sess, chat.EventJoinChannel)
}

func (h *WSHandler) handleLeave(ctx context.Context, sess *chat.Session, data json.RawMessage) {
	var payload chat.LeavePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChannelID <= 0 {
		h.sendError(sess, "bad_request", "channel_id is required")
		return
	}
	if err := h.gateway.Unsubscribe(ctx, sess, payload.ChannelID); err != nil {
		h.sendOpError(sess, err)
		return
	}
	h.sendAck(sess, chat.EventLeaveChannel)
}

func (h *WSHandler) handleSend(ctx context.Context, sess *chat.Session, data json.RawMessage) {
	var payload chat.SendPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChannelID <= 0 {
		h.sendError(sess, "bad_request", "channel_id is required")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		h.sendError(sess, "bad_request", "content is required")
		return
	}
	if _, err := h.gateway.Send(ctx, sess, payload.ChannelID, payload.Content, ""); err != nil {
		h.sendOpError(sess, err)
		return
	}
	// The sender receives the message through the channel fan-out like every
	// other subscriber; no separate acknowledgment.
}

// sendOpError maps a core error to a wire error event.
func (h *WSHandler) sendOpError(sess *chat.Session, err error) {
	switch {
	case errors.Is(err, chat.ErrNotAuthenticated):
		h.sendError(sess, "not_authenticated", "authenticate first")
	case errors.Is(err, chat.ErrAlreadyAuthenticated):
		h.sendError(sess, "already_authenticated", "connection is already authenticated")
	case errors.Is(err, chat.ErrNotSubscribed):
		h.sendError(sess, "not_subscribed", "join the channel on this connection first")
	case errors.Is(err, channels.ErrNotFound):
		h.sendError(sess, "channel_not_found", "channel not found")
	case errors.Is(err, channels.ErrNotMember):
		h.sendError(sess, "not_member", "channel membership required")
	case errors.Is(err, messages.ErrStoreUnavailable):
		h.sendError(sess, "store_unavailable", "message could not be saved, try again")
	default:
		h.sendError(sess, "internal", "operation failed")
	}
}

func (h *WSHandler) sendError(sess *chat.Session, code, message string) {
	frame, err := chat.EncodeEvent(chat.EventError, chat.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	_ = sess.Enqueue(frame)
}

// sendAck confirms a control operation by echoing its event type with an
// empty payload.
func (h *WSHandler) sendAck(sess *chat.Session, op chat.EventType) {
	frame, err := chat.EncodeEvent(op+"_ok", struct{}{})
	if err != nil {
		return
	}
	_ = sess.Enqueue(frame)
}
