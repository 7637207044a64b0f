package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/accounts"
	"messenger-service/internal/delivery"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
)

// Handler owns the push channel: it authenticates the connection, admits it
// to the presence registry, and dispatches inbound client events to the
// delivery engine and the reconciler.
type Handler struct {
	registry   *presence.Registry
	engine     *delivery.Engine
	reconciler *delivery.Reconciler
	verifier   accounts.Verifier
}

// NewHandler constructs a Handler.
func NewHandler(registry *presence.Registry, engine *delivery.Engine, reconciler *delivery.Reconciler, verifier accounts.Verifier) *Handler {
	return &Handler{registry: registry, engine: engine, reconciler: reconciler, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is what clients send over the channel.
type inboundFrame struct {
	Type           string `json:"type"`
	ReceiverID     int    `json:"receiver_id,omitempty"`
	Content        string `json:"content,omitempty"`
	ConversationID int    `json:"conversation_id,omitempty"`
	MessageID      int    `json:"message_id,omitempty"`
}

// Handle upgrades the connection and registers the user's channel.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := verifyBearer(ctx, h.verifier, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	ch := newChannel(conn)
	h.registry.Register(userID, ch)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.channels", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload(info, "ws_connect", 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	go h.readLoop(ch, conn, info)
}

// readLoop dispatches inbound frames until the connection dies, then removes
// the channel from the registry.
func (h *Handler) readLoop(ch *channel, conn *websocket.Conn, info ConnInfo) {
	var closeReason string
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	// The handshake request context is cancelled once Handle returns, so
	// everything in the connection's lifetime runs on its own context.
	ctx := context.Background()
	defer func() {
		h.registry.Unregister(info.UserID, ch)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.channels", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   wsEventPayload(info, "ws_disconnect", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
		}, headers)
		conn.Close()
	}()

	for {
		var in inboundFrame
		if err := conn.ReadJSON(&in); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				_ = observability.PublishEvent(ctx, "ws_events.channels", observability.EventEnvelope{
					EventType: "ws_events",
					EventName: "ws_error",
					Payload:   wsEventPayload(info, "ws_error", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
				}, headers)
			}
			return
		}

		h.dispatch(ctx, ch, info.UserID, in)
	}
}

func (h *Handler) dispatch(ctx context.Context, ch *channel, userID int, in inboundFrame) {
	switch in.Type {
	case "send_message":
		msg, err := h.engine.Submit(ctx, userID, in.ReceiverID, in.Content)
		if err != nil {
			_ = ch.Send(models.EventError, gin.H{"op": "send_message", "error": err.Error()})
			return
		}
		// The sender always learns the message was accepted at status sent
		// before any delivery confirmation can reach them.
		_ = ch.Send(models.EventMessageAccepted, models.SubmitAck{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
			Status:         msg.Status,
			Timestamp:      models.EventTimestamp(msg.CreatedAt),
		})
		h.engine.Deliver(ctx, msg)
	case "mark_read":
		if _, err := h.reconciler.MarkConversationRead(ctx, in.ConversationID, userID); err != nil {
			_ = ch.Send(models.EventError, gin.H{"op": "mark_read", "error": err.Error()})
		}
	case "ack_delivered":
		if err := h.engine.ConfirmDelivered(ctx, in.MessageID, userID); err != nil {
			_ = ch.Send(models.EventError, gin.H{"op": "ack_delivered", "error": err.Error()})
		}
	default:
		_ = ch.Send(models.EventError, gin.H{"error": "unknown event type"})
	}
}

func wsEventPayload(info ConnInfo, event string, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
