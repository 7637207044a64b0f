package delivery

import (
	"context"
	"errors"
	"log"
	"time"

	"messenger-service/internal/accounts"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
)

var ErrNotParticipant = errors.New("user is not a conversation participant")

// Reconciler advances messages to read when a participant signals they viewed
// a conversation, and notifies the original senders. Both the websocket and
// the HTTP transport trigger the same method, so whichever signal lands first
// wins and the other finds nothing left to advance.
type Reconciler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	directory     accounts.Directory
	registry      *presence.Registry
	graceWindow   time.Duration
	now           func() time.Time
}

// NewReconciler constructs a Reconciler. graceWindow bounds how recent an
// unconfirmed message must be to count as implicitly delivered when the read
// signal arrives before the delivery step completed.
func NewReconciler(conversations repositories.ConversationRepository, messages repositories.MessageRepository, directory accounts.Directory, registry *presence.Registry, graceWindow time.Duration) *Reconciler {
	return &Reconciler{
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		registry:      registry,
		graceWindow:   graceWindow,
		now:           time.Now,
	}
}

// MarkConversationRead advances the reader's messages in the conversation and
// returns the total number of status transitions performed (delivered-bump
// plus read-bump). Calling it again with nothing eligible returns 0 and emits
// no notifications.
func (r *Reconciler) MarkConversationRead(ctx context.Context, conversationID int, readerID int) (int, error) {
	conv, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(readerID) {
		return 0, ErrNotParticipant
	}

	at := r.now().UTC()

	// Messages still at sent inside the grace window are implicitly
	// delivered: the read signal proves the receiver saw them even if the
	// delivery step never ran or ran on another transport.
	cutoff := at.Add(-r.graceWindow)
	bumped, err := r.messages.AdvanceConversation(ctx, conversationID, readerID, models.StatusSent, models.StatusDelivered, at, &cutoff)
	if err != nil {
		return 0, err
	}
	for range bumped {
		observability.IncStatusTransition(string(models.StatusDelivered))
	}

	read, err := r.messages.AdvanceConversation(ctx, conversationID, readerID, models.StatusDelivered, models.StatusRead, at, nil)
	if err != nil {
		return len(bumped), err
	}
	for range read {
		observability.IncStatusTransition(string(models.StatusRead))
	}

	if len(read) > 0 {
		r.notifySenders(ctx, conversationID, readerID, read, at)
	}
	return len(bumped) + len(read), nil
}

// notifySenders emits one read notification per sender with an active
// channel. Failures are logged and never roll back the status advancement;
// the status change is the durable fact, the notification is best-effort.
func (r *Reconciler) notifySenders(ctx context.Context, conversationID int, readerID int, read []models.Message, at time.Time) {
	counts := make(map[int]int)
	for _, msg := range read {
		counts[msg.SenderID]++
	}

	readerName, err := r.directory.DisplayName(ctx, readerID)
	if err != nil {
		log.Printf("display name lookup for user %d failed: %v", readerID, err)
	}
	timestamp := models.EventTimestamp(at)

	for senderID, count := range counts {
		ch, ok := r.registry.Lookup(senderID)
		if !ok {
			continue
		}
		event := models.ConversationReadEvent{
			ConversationID: conversationID,
			ReaderID:       readerID,
			ReaderName:     readerName,
			Timestamp:      timestamp,
			MessageCount:   count,
		}
		if err := ch.Send(models.EventConversationRead, event); err != nil {
			log.Printf("read notification to user %d failed: %v", senderID, err)
		}
	}
}
