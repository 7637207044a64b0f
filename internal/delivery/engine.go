package delivery

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"messenger-service/internal/accounts"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
)

var (
	ErrEmptyContent    = errors.New("message content is empty")
	ErrMissingReceiver = errors.New("receiver is missing")
	ErrSelfMessage     = errors.New("cannot message yourself")
	ErrUnknownReceiver = errors.New("receiver account not found")
	ErrNotReceiver     = errors.New("user is not the message receiver")
)

// Engine owns the submission-to-delivery half of the message status pipeline:
// Submit persists the message and Deliver pushes it to the receiver's channel
// when one is registered. A push failure is not an error: the receiver is
// treated as offline and the message stays at sent.
type Engine struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	directory     accounts.Directory
	registry      *presence.Registry
	explicitAck   bool
	now           func() time.Time
}

// NewEngine constructs an Engine. With explicitAck set the engine pushes
// without advancing status; the receiver confirms delivery via
// ConfirmDelivered instead.
func NewEngine(conversations repositories.ConversationRepository, messages repositories.MessageRepository, directory accounts.Directory, registry *presence.Registry, explicitAck bool) *Engine {
	return &Engine{
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		registry:      registry,
		explicitAck:   explicitAck,
		now:           time.Now,
	}
}

// Submit validates and durably stores a message. It returns at the
// durability point, before any push work, so both transports acknowledge the
// sender with the stored record at status sent and then call Deliver.
func (e *Engine) Submit(ctx context.Context, senderID int, receiverID int, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}
	if receiverID == 0 {
		return models.Message{}, ErrMissingReceiver
	}
	if senderID == receiverID {
		return models.Message{}, ErrSelfMessage
	}

	exists, err := e.directory.AccountExists(ctx, receiverID)
	if err != nil {
		return models.Message{}, err
	}
	if !exists {
		return models.Message{}, ErrUnknownReceiver
	}

	conv, err := e.conversations.Resolve(ctx, senderID, receiverID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := e.messages.Append(ctx, conv.ID, senderID, receiverID, content)
	if err != nil {
		return models.Message{}, err
	}

	if err := e.conversations.TouchActivity(ctx, conv.ID, msg.CreatedAt); err != nil {
		log.Printf("touch activity for conversation %d failed: %v", conv.ID, err)
	}

	return msg, nil
}

// Deliver pushes the message to the receiver's channel and, unless the
// explicit-ack policy is active, advances the status in the same logical
// step. Callers invoke it after acknowledging the sender; any failure here
// degrades to the offline branch.
func (e *Engine) Deliver(ctx context.Context, msg models.Message) {
	ch, ok := e.registry.Lookup(msg.ReceiverID)
	if !ok {
		observability.IncDeliveryOffline()
		return
	}

	senderName, err := e.directory.DisplayName(ctx, msg.SenderID)
	if err != nil {
		log.Printf("display name lookup for user %d failed: %v", msg.SenderID, err)
	}

	event := models.NewMessageEvent{
		ID:             msg.ID,
		Content:        msg.Content,
		SenderID:       msg.SenderID,
		SenderName:     senderName,
		Timestamp:      models.EventTimestamp(msg.CreatedAt),
		ConversationID: msg.ConversationID,
		ReceiverID:     msg.ReceiverID,
	}
	if err := ch.Send(models.EventNewMessage, event); err != nil {
		log.Printf("push to user %d failed, message %d stays at sent: %v", msg.ReceiverID, msg.ID, err)
		observability.IncDeliveryOffline()
		return
	}

	if e.explicitAck {
		return
	}
	e.advanceDelivered(ctx, msg)
}

// ConfirmDelivered handles the receiver's explicit delivery acknowledgment.
func (e *Engine) ConfirmDelivered(ctx context.Context, messageID int, receiverID int) error {
	msg, err := e.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != receiverID {
		return ErrNotReceiver
	}
	e.advanceDelivered(ctx, msg)
	return nil
}

func (e *Engine) advanceDelivered(ctx context.Context, msg models.Message) {
	at := e.now().UTC()
	n, err := e.messages.AdvanceStatus(ctx, msg.ID, models.StatusDelivered, at)
	if err != nil {
		log.Printf("advance message %d to delivered failed: %v", msg.ID, err)
		return
	}
	if n == 0 {
		// A concurrent path already moved the message past sent.
		return
	}
	observability.IncStatusTransition(string(models.StatusDelivered))

	senderCh, ok := e.registry.Lookup(msg.SenderID)
	if !ok {
		return
	}
	confirmation := models.MessageDeliveredEvent{
		MessageID:   msg.ID,
		Status:      models.StatusDelivered,
		DeliveredAt: models.EventTimestamp(at),
	}
	if err := senderCh.Send(models.EventMessageDelivered, confirmation); err != nil {
		log.Printf("delivery confirmation to user %d failed: %v", msg.SenderID, err)
	}
}
