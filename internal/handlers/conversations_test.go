package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
)

func setupConversationRouter() (*gin.Engine, *mocks.ConversationRepositoryMock, *mocks.DirectoryMock) {
	convRepo := new(mocks.ConversationRepositoryMock)
	directory := new(mocks.DirectoryMock)
	handler := NewConversationHandler(convRepo, directory)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	router.GET("/conversations", handler.ListConversations)
	router.POST("/conversations/open", handler.OpenConversation)
	return router, convRepo, directory
}

func TestListConversations(t *testing.T) {
	router, convRepo, directory := setupConversationRouter()

	created := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	convRepo.On("ListForUser", mock.Anything, 1).Return([]models.Conversation{
		{ID: 5, User1ID: 1, User2ID: 2, CreatedAt: created, LastActivityAt: created},
		{ID: 6, User1ID: 3, User2ID: 1, CreatedAt: created, LastActivityAt: created},
	}, nil).Once()
	directory.On("DisplayNames", mock.Anything, []int{2, 3}).Return(map[int]string{2: "bob", 3: "carol"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"peer_name":"bob"`)
	assert.Contains(t, rec.Body.String(), `"peer_name":"carol"`)
	convRepo.AssertExpectations(t)
}

func TestListConversationsEmpty(t *testing.T) {
	router, convRepo, directory := setupConversationRouter()

	convRepo.On("ListForUser", mock.Anything, 1).Return([]models.Conversation{}, nil).Once()
	directory.On("DisplayNames", mock.Anything, []int{}).Return(map[int]string{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversations":[]`)
}

func TestOpenConversation(t *testing.T) {
	router, convRepo, directory := setupConversationRouter()

	directory.On("AccountExists", mock.Anything, 2).Return(true, nil).Once()
	convRepo.On("Resolve", mock.Anything, 1, 2).Return(models.Conversation{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/open", bytes.NewBufferString(`{"participant_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversation_id":5`)
}

func TestOpenConversationWithSelf(t *testing.T) {
	router, _, _ := setupConversationRouter()

	req := httptest.NewRequest(http.MethodPost, "/conversations/open", bytes.NewBufferString(`{"participant_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenConversationUnknownParticipant(t *testing.T) {
	router, _, directory := setupConversationRouter()

	directory.On("AccountExists", mock.Anything, 9).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/open", bytes.NewBufferString(`{"participant_id":9}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
