package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

func newReconcilerFixture() (*Reconciler, *mocks.ConversationRepositoryMock, *mocks.MessageRepositoryMock, *mocks.DirectoryMock, *presence.Registry) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	directory := new(mocks.DirectoryMock)
	registry := presence.NewRegistry()
	reconciler := NewReconciler(convRepo, msgRepo, directory, registry, time.Minute)
	return reconciler, convRepo, msgRepo, directory, registry
}

func conversationFixture() models.Conversation {
	return models.Conversation{ID: 5, User1ID: 1, User2ID: 2}
}

func TestMarkConversationReadAdvancesAndNotifies(t *testing.T) {
	reconciler, convRepo, msgRepo, directory, registry := newReconcilerFixture()

	convRepo.On("Get", mock.Anything, 5).Return(conversationFixture(), nil).Once()

	// One recent message still at sent gets the grace bump, then both
	// delivered messages move to read.
	bumped := []models.Message{{ID: 8, ConversationID: 5, SenderID: 1, ReceiverID: 2}}
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusSent, models.StatusDelivered, mock.Anything,
		mock.MatchedBy(func(cutoff *time.Time) bool { return cutoff != nil })).Return(bumped, nil).Once()

	read := []models.Message{
		{ID: 7, ConversationID: 5, SenderID: 1, ReceiverID: 2},
		{ID: 8, ConversationID: 5, SenderID: 1, ReceiverID: 2},
	}
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusDelivered, models.StatusRead, mock.Anything,
		(*time.Time)(nil)).Return(read, nil).Once()

	directory.On("DisplayName", mock.Anything, 2).Return("bob", nil).Once()

	senderCh := new(mocks.ChannelMock)
	senderCh.On("Send", models.EventConversationRead, mock.MatchedBy(func(event models.ConversationReadEvent) bool {
		return event.ConversationID == 5 && event.ReaderID == 2 && event.ReaderName == "bob" && event.MessageCount == 2
	})).Return(nil).Once()
	registry.Register(1, senderCh)

	count, err := reconciler.MarkConversationRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	senderCh.AssertExpectations(t)
}

func TestMarkConversationReadIdempotent(t *testing.T) {
	reconciler, convRepo, msgRepo, directory, _ := newReconcilerFixture()

	convRepo.On("Get", mock.Anything, 5).Return(conversationFixture(), nil).Once()
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusSent, models.StatusDelivered, mock.Anything, mock.Anything).Return(([]models.Message)(nil), nil).Once()
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusDelivered, models.StatusRead, mock.Anything, (*time.Time)(nil)).Return(([]models.Message)(nil), nil).Once()

	count, err := reconciler.MarkConversationRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	directory.AssertNotCalled(t, "DisplayName", mock.Anything, mock.Anything)
}

func TestMarkConversationReadBatchesPerSender(t *testing.T) {
	reconciler, convRepo, msgRepo, directory, registry := newReconcilerFixture()

	convRepo.On("Get", mock.Anything, 5).Return(conversationFixture(), nil).Once()
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusSent, models.StatusDelivered, mock.Anything, mock.Anything).Return(([]models.Message)(nil), nil).Once()

	read := []models.Message{
		{ID: 7, SenderID: 1, ReceiverID: 2},
		{ID: 8, SenderID: 1, ReceiverID: 2},
		{ID: 9, SenderID: 3, ReceiverID: 2},
	}
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusDelivered, models.StatusRead, mock.Anything, (*time.Time)(nil)).Return(read, nil).Once()
	directory.On("DisplayName", mock.Anything, 2).Return("bob", nil).Once()

	firstSender := new(mocks.ChannelMock)
	firstSender.On("Send", models.EventConversationRead, mock.MatchedBy(func(event models.ConversationReadEvent) bool {
		return event.MessageCount == 2
	})).Return(nil).Once()
	thirdSender := new(mocks.ChannelMock)
	thirdSender.On("Send", models.EventConversationRead, mock.MatchedBy(func(event models.ConversationReadEvent) bool {
		return event.MessageCount == 1
	})).Return(nil).Once()
	registry.Register(1, firstSender)
	registry.Register(3, thirdSender)

	count, err := reconciler.MarkConversationRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	firstSender.AssertExpectations(t)
	thirdSender.AssertExpectations(t)
}

func TestMarkConversationReadOfflineSenderSkipsNotification(t *testing.T) {
	reconciler, convRepo, msgRepo, directory, _ := newReconcilerFixture()

	convRepo.On("Get", mock.Anything, 5).Return(conversationFixture(), nil).Once()
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusSent, models.StatusDelivered, mock.Anything, mock.Anything).Return(([]models.Message)(nil), nil).Once()
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusDelivered, models.StatusRead, mock.Anything, (*time.Time)(nil)).
		Return([]models.Message{{ID: 7, SenderID: 1, ReceiverID: 2}}, nil).Once()
	directory.On("DisplayName", mock.Anything, 2).Return("bob", nil).Once()

	// Sender offline: the status change still counts, the notification is
	// simply skipped.
	count, err := reconciler.MarkConversationRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkConversationReadRejectsNonParticipant(t *testing.T) {
	reconciler, convRepo, msgRepo, _, _ := newReconcilerFixture()

	convRepo.On("Get", mock.Anything, 5).Return(conversationFixture(), nil).Once()

	_, err := reconciler.MarkConversationRead(context.Background(), 5, 9)
	assert.ErrorIs(t, err, ErrNotParticipant)
	msgRepo.AssertNotCalled(t, "AdvanceConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestDeliveryThenReadFlow walks one message through the full pipeline: an
// online receiver gets the push, the sender gets the delivery confirmation,
// and the read signal produces a single batched read notification.
func TestDeliveryThenReadFlow(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	directory := new(mocks.DirectoryMock)
	registry := presence.NewRegistry()
	engine := NewEngine(convRepo, msgRepo, directory, registry, false)
	reconciler := NewReconciler(convRepo, msgRepo, directory, registry, time.Minute)

	stored := models.Message{ID: 7, ConversationID: 5, SenderID: 1, ReceiverID: 2, Content: "hello", Status: models.StatusSent, CreatedAt: time.Now().UTC()}
	directory.On("AccountExists", mock.Anything, 2).Return(true, nil).Once()
	convRepo.On("Resolve", mock.Anything, 1, 2).Return(conversationFixture(), nil).Once()
	msgRepo.On("Append", mock.Anything, 5, 1, 2, "hello").Return(stored, nil).Once()
	convRepo.On("TouchActivity", mock.Anything, 5, stored.CreatedAt).Return(nil).Once()
	directory.On("DisplayName", mock.Anything, 1).Return("alice", nil).Once()
	msgRepo.On("AdvanceStatus", mock.Anything, 7, models.StatusDelivered, mock.Anything).Return(int64(1), nil).Once()

	receiverCh := new(mocks.ChannelMock)
	receiverCh.On("Send", models.EventNewMessage, mock.Anything).Return(nil).Once()
	senderCh := new(mocks.ChannelMock)
	senderCh.On("Send", models.EventMessageDelivered, mock.Anything).Return(nil).Once()
	registry.Register(2, receiverCh)
	registry.Register(1, senderCh)

	msg, err := engine.Submit(context.Background(), 1, 2, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, msg.Status)
	engine.Deliver(context.Background(), msg)

	// The receiver opens the conversation.
	convRepo.On("Get", mock.Anything, 5).Return(conversationFixture(), nil).Once()
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusSent, models.StatusDelivered, mock.Anything, mock.Anything).Return(([]models.Message)(nil), nil).Once()
	msgRepo.On("AdvanceConversation", mock.Anything, 5, 2, models.StatusDelivered, models.StatusRead, mock.Anything, (*time.Time)(nil)).
		Return([]models.Message{{ID: 7, ConversationID: 5, SenderID: 1, ReceiverID: 2}}, nil).Once()
	directory.On("DisplayName", mock.Anything, 2).Return("bob", nil).Once()
	senderCh.On("Send", models.EventConversationRead, mock.MatchedBy(func(event models.ConversationReadEvent) bool {
		return event.MessageCount == 1 && event.ReaderID == 2
	})).Return(nil).Once()

	count, err := reconciler.MarkConversationRead(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	receiverCh.AssertExpectations(t)
	senderCh.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}
