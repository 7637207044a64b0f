package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions with the durable message log.
//
// Both status-advancement methods are conditional updates: a row moves only
// when its current status precedes the target, so whichever of the two
// transports arrives first wins and the loser is a no-op.
type MessageRepository interface {
	Append(ctx context.Context, conversationID int, senderID int, receiverID int, content string) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID int) ([]models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	AdvanceStatus(ctx context.Context, messageID int, target models.Status, at time.Time) (int64, error)
	AdvanceConversation(ctx context.Context, conversationID int, receiverID int, from models.Status, to models.Status, at time.Time, createdAfter *time.Time) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, status, delivered_at, read_at, created_at`

// Append stores a message with status sent. This is the durability point of a
// submission.
func (r *MessageRepo) Append(ctx context.Context, conversationID int, senderID int, receiverID int, content string) (models.Message, error) {
	var msg models.Message
	query := `INSERT INTO messages (conversation_id, sender_id, receiver_id, content, status)
        VALUES ($1, $2, $3, $4, $5) RETURNING ` + messageColumns
	err := r.db.QueryRowxContext(ctx, query, conversationID, senderID, receiverID, content, models.StatusSent).StructScan(&msg)
	return msg, err
}

// ListByConversation returns the conversation's messages in creation order.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID)
	return msgs, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// AdvanceStatus moves one message to target if its current status is strictly
// earlier, stamping the matching timestamp. Returns the number of rows
// changed; 0 means a concurrent path already advanced the message.
func (r *MessageRepo) AdvanceStatus(ctx context.Context, messageID int, target models.Status, at time.Time) (int64, error) {
	var res sql.Result
	var err error
	switch target {
	case models.StatusDelivered:
		res, err = r.db.ExecContext(ctx, `UPDATE messages
            SET status=$2, delivered_at=COALESCE(delivered_at, $3)
            WHERE id=$1 AND status=$4`,
			messageID, models.StatusDelivered, at, models.StatusSent)
	case models.StatusRead:
		res, err = r.db.ExecContext(ctx, `UPDATE messages
            SET status=$2, read_at=COALESCE(read_at, $3), delivered_at=COALESCE(delivered_at, $3)
            WHERE id=$1 AND status IN ($4, $5)`,
			messageID, models.StatusRead, at, models.StatusSent, models.StatusDelivered)
	default:
		return 0, fmt.Errorf("cannot advance to status %q", target)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AdvanceConversation moves every message in the conversation addressed to
// receiverID from one status to the next, stamping timestamps, and returns
// the rows it changed. createdAfter, when set, restricts the sweep to
// messages created at or after that instant (the read grace window).
func (r *MessageRepo) AdvanceConversation(ctx context.Context, conversationID int, receiverID int, from models.Status, to models.Status, at time.Time, createdAfter *time.Time) ([]models.Message, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("cannot advance from %q to %q", from, to)
	}

	query := `UPDATE messages
        SET status=$4, delivered_at=COALESCE(delivered_at, $5), read_at=CASE WHEN $4='read' THEN COALESCE(read_at, $5) ELSE read_at END
        WHERE conversation_id=$1 AND receiver_id=$2 AND status=$3`
	args := []interface{}{conversationID, receiverID, from, to, at}
	if createdAfter != nil {
		query += ` AND created_at >= $6`
		args = append(args, *createdAfter)
	}
	query += ` RETURNING ` + messageColumns

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updated []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.StructScan(&msg); err != nil {
			return nil, err
		}
		updated = append(updated, msg)
	}
	return updated, rows.Err()
}
