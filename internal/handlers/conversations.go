package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/accounts"
	"messenger-service/internal/repositories"
)

// ConversationHandler manages the conversation surface.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	directory     accounts.Directory
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository, directory accounts.Directory) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, directory: directory}
}

// ListConversations returns the caller's conversations with peer names,
// most recently active first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	convs, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	peerIDs := make([]int, 0, len(convs))
	for _, conv := range convs {
		peerIDs = append(peerIDs, conv.PeerOf(userID))
	}

	names, err := h.directory.DisplayNames(c.Request.Context(), peerIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load peers"})
		return
	}

	type conversationResponse struct {
		ConversationID int       `json:"conversation_id"`
		PeerID         int       `json:"peer_id"`
		PeerName       string    `json:"peer_name,omitempty"`
		CreatedAt      time.Time `json:"created_at"`
		LastActivityAt time.Time `json:"last_activity_at"`
	}

	responses := make([]conversationResponse, 0, len(convs))
	for _, conv := range convs {
		peerID := conv.PeerOf(userID)
		responses = append(responses, conversationResponse{
			ConversationID: conv.ID,
			PeerID:         peerID,
			PeerName:       names[peerID],
			CreatedAt:      conv.CreatedAt,
			LastActivityAt: conv.LastActivityAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": responses})
}

// OpenConversation resolves (creating if needed) the conversation with the
// given participant.
func (h *ConversationHandler) OpenConversation(c *gin.Context) {
	var req struct {
		ParticipantID int `json:"participant_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.ParticipantID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open conversation with yourself"})
		return
	}

	exists, err := h.directory.AccountExists(c.Request.Context(), req.ParticipantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate participant"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		return
	}

	conv, err := h.conversations.Resolve(c.Request.Context(), userID, req.ParticipantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}
