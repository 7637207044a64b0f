package models

import "time"

// Conversation represents a private conversation between exactly two users.
// At most one conversation exists per unordered participant pair.
type Conversation struct {
	ID             int       `db:"id" json:"id"`
	User1ID        int       `db:"user1_id" json:"user1_id"`
	User2ID        int       `db:"user2_id" json:"user2_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// PeerOf returns the other participant's id.
func (c Conversation) PeerOf(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}
