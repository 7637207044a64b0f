package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/accounts"
	"messenger-service/internal/delivery"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// MessageHandler exposes the stateless fallback path of the delivery
// pipeline: submit, read signal, and message fetch. Both it and the websocket
// handler call the same engine and reconciler, so status transitions converge
// regardless of transport.
type MessageHandler struct {
	engine        *delivery.Engine
	reconciler    *delivery.Reconciler
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	directory     accounts.Directory
	audit         *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(engine *delivery.Engine, reconciler *delivery.Reconciler, conversations repositories.ConversationRepository, messages repositories.MessageRepository, directory accounts.Directory, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		engine:        engine,
		reconciler:    reconciler,
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		audit:         audit,
	}
}

// SubmitMessage durably stores a message and reports the sent acknowledgment.
// The response is always the status the message had at the durability point;
// delivery to an online receiver is attempted once the response is written.
func (h *MessageHandler) SubmitMessage(c *gin.Context) {
	var req struct {
		ReceiverID int    `json:"receiver_id" binding:"required"`
		Content    string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.engine.Submit(c.Request.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrEmptyContent), errors.Is(err, delivery.ErrMissingReceiver), errors.Is(err, delivery.ErrSelfMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, delivery.ErrUnknownReceiver):
			c.JSON(http.StatusNotFound, gin.H{"error": "receiver not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("message %d submitted to conversation %d", msg.ID, msg.ConversationID),
		requestIDFromContext(c), auditUserID(c))

	c.JSON(http.StatusCreated, models.SubmitAck{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Status:         msg.Status,
		Timestamp:      models.EventTimestamp(msg.CreatedAt),
	})

	// Delivery runs after the acceptance response is written, so the sender
	// sees status sent before any delivery confirmation.
	h.engine.Deliver(c.Request.Context(), msg)
}

// MarkConversationRead is the stateless read signal.
func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	count, err := h.reconciler.MarkConversationRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, delivery.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark conversation read"})
		}
		return
	}

	if count > 0 {
		h.audit.Emit(c.Request.Context(), "INFO",
			fmt.Sprintf("conversation %d read, %d transitions", conversationID, count),
			requestIDFromContext(c), auditUserID(c))
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID, "messages_read": count})
}

// GetConversationMessages returns the conversation's messages in order with
// sender display names. Status fields are always current on fetch, so a
// sender who missed a delivery or read push learns the final state here.
func (h *MessageHandler) GetConversationMessages(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.conversations.Get(c.Request.Context(), conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	msgs, err := h.messages.ListByConversation(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, 2)
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	names, err := h.directory.DisplayNames(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}

	type messageResponse struct {
		models.Message
		SenderName string `json:"sender_name,omitempty"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, SenderName: names[m.SenderID]})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}
