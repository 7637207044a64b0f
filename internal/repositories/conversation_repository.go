package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	Resolve(ctx context.Context, userID int, peerID int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	ListForUser(ctx context.Context, userID int) ([]models.Conversation, error)
	TouchActivity(ctx context.Context, conversationID int, at time.Time) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user1_id, user2_id, created_at, last_activity_at`

// Resolve returns the conversation for the unordered pair, creating it when
// absent. The participant pair is normalized and the insert conflicts on the
// pair's unique constraint, so concurrent calls for (A,B) and (B,A) converge
// on a single row.
func (r *ConversationRepo) Resolve(ctx context.Context, userID int, peerID int) (models.Conversation, error) {
	if userID == peerID {
		return models.Conversation{}, errors.New("cannot open conversation with self")
	}
	participants := []int{userID, peerID}
	sort.Ints(participants)

	var conv models.Conversation
	query := `INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = conversations.user1_id
        RETURNING ` + conversationColumns
	err := r.db.QueryRowxContext(ctx, query, participants[0], participants[1]).StructScan(&conv)
	return conv, err
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
        WHERE user1_id=$1 OR user2_id=$1
        ORDER BY last_activity_at DESC`
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, query, userID)
	return convs, err
}

// TouchActivity bumps the conversation's last-activity time. Stale updates
// are ignored so out-of-order appends cannot move the clock backwards.
func (r *ConversationRepo) TouchActivity(ctx context.Context, conversationID int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_activity_at=$2 WHERE id=$1 AND last_activity_at < $2`, conversationID, at)
	return err
}
