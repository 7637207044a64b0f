package models

import "time"

// Event names pushed over the websocket channel.
const (
	EventNewMessage       = "new_message"
	EventMessageDelivered = "message_delivered"
	EventConversationRead = "conversation_read"
	EventMessageAccepted  = "message_accepted"
	EventError            = "error"
)

// NewMessageEvent is pushed to the receiver when a message arrives.
type NewMessageEvent struct {
	ID             int    `json:"id"`
	Content        string `json:"content"`
	SenderID       int    `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Timestamp      string `json:"timestamp"`
	ConversationID int    `json:"conversation_id"`
	ReceiverID     int    `json:"receiver_id"`
}

// MessageDeliveredEvent is pushed to the sender once the message reached the
// receiver's channel.
type MessageDeliveredEvent struct {
	MessageID   int    `json:"message_id"`
	Status      Status `json:"status"`
	DeliveredAt string `json:"delivered_at"`
}

// ConversationReadEvent is pushed to a sender when the reader viewed the
// conversation. One event per sender, not per message.
type ConversationReadEvent struct {
	ConversationID int    `json:"conversation_id"`
	ReaderID       int    `json:"reader_id"`
	ReaderName     string `json:"reader_name"`
	Timestamp      string `json:"timestamp"`
	MessageCount   int    `json:"message_count"`
}

// SubmitAck acknowledges a durably accepted message to its sender. Shared by
// the HTTP response and the websocket message_accepted event.
type SubmitAck struct {
	MessageID      int    `json:"message_id"`
	ConversationID int    `json:"conversation_id"`
	Status         Status `json:"status"`
	Timestamp      string `json:"timestamp"`
}

// EventTimestamp renders event timestamps as ISO-8601 UTC.
func EventTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
