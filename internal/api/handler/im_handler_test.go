package handler

import (
	"Courier/internal/api/config"
	"Courier/internal/api/dto"
	"Courier/internal/model"
	"Courier/internal/service"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIMService struct {
	lastLimit   int
	lastCursor  string
	lastSend    *dto.SendMessageReq
	deleteErr   error
	sendErr     error
	historyErr  error
	createdWith [3]any
}

func (s *stubIMService) GetOrCreateConversation(ctx context.Context, userID, targetUserID uint64, initialText string) (*model.Conversation, error) {
	s.createdWith = [3]any{userID, targetUserID, initialText}
	if userID == targetUserID {
		return nil, service.ErrSameParticipant
	}
	return &model.Conversation{ID: 11}, nil
}

func (s *stubIMService) SendMessage(ctx context.Context, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	s.lastSend = req
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &dto.MessageDTO{ID: "0190a6c4-3b2e-7c1a-8f00-000000000001"}, nil
}

func (s *stubIMService) GetChatHistory(ctx context.Context, convID uint64, cursor string, limit int) (*dto.MessagePageDTO, error) {
	s.lastLimit, s.lastCursor = limit, cursor
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return &dto.MessagePageDTO{Messages: []*dto.MessageDTO{}}, nil
}

func (s *stubIMService) SyncMessages(ctx context.Context, convID uint64, after string, limit int) (*dto.MessagePageDTO, error) {
	s.lastLimit, s.lastCursor = limit, after
	return &dto.MessagePageDTO{Messages: []*dto.MessageDTO{}}, nil
}

func (s *stubIMService) GetConversationList(ctx context.Context, userID uint64) ([]*dto.ConversationSummaryDTO, error) {
	return []*dto.ConversationSummaryDTO{{ConversationID: 11, PeerID: 2}}, nil
}

func (s *stubIMService) DeleteConversation(ctx context.Context, convID uint64) error {
	return s.deleteErr
}

func (s *stubIMService) Close() {}

func newTestRouter(svc service.IMService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewIMHandler(svc, config.DefaultIMConfig())
	r := gin.New()
	r.POST("/api/conversations", h.CreateConversation)
	r.GET("/api/conversations", h.GetConversationList)
	r.GET("/api/conversations/:id/messages", h.GetChatHistory)
	r.GET("/api/conversations/:id/messages/sync", h.SyncMessages)
	r.DELETE("/api/conversations/:id", h.DeleteConversation)
	r.POST("/api/messages", h.SendMessage)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body any) dto.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateConversation(t *testing.T) {
	svc := &stubIMService{}
	r := newTestRouter(svc)

	resp := doRequest(t, r, http.MethodPost, "/api/conversations", map[string]any{
		"currentUserId": 1, "otherUserId": 2, "initialMessage": "hi",
	})
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, [3]any{uint64(1), uint64(2), "hi"}, svc.createdWith)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 11, data["conversationId"])

	resp = doRequest(t, r, http.MethodPost, "/api/conversations", map[string]any{"currentUserId": 1, "otherUserId": 1})
	assert.Equal(t, service.BadRequest, resp.Code)
	assert.Equal(t, service.ErrSameParticipant.Error(), resp.Message)

	resp = doRequest(t, r, http.MethodPost, "/api/conversations", map[string]any{"currentUserId": 1})
	assert.Equal(t, service.BadRequest, resp.Code)
}

func TestGetChatHistory_Params(t *testing.T) {
	svc := &stubIMService{}
	r := newTestRouter(svc)

	resp := doRequest(t, r, http.MethodGet, "/api/conversations/11/messages", nil)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, 20, svc.lastLimit)

	resp = doRequest(t, r, http.MethodGet, "/api/conversations/11/messages?cursor=abc&limit=5", nil)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, 5, svc.lastLimit)
	assert.Equal(t, "abc", svc.lastCursor)

	resp = doRequest(t, r, http.MethodGet, "/api/conversations/11/messages/sync?after=xyz", nil)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "xyz", svc.lastCursor)

	resp = doRequest(t, r, http.MethodGet, "/api/conversations/abc/messages", nil)
	assert.Equal(t, service.BadRequest, resp.Code)

	resp = doRequest(t, r, http.MethodGet, "/api/conversations/11/messages?limit=ten", nil)
	assert.Equal(t, service.BadRequest, resp.Code)

	svc.historyErr = service.ErrPageSizeInvalid
	resp = doRequest(t, r, http.MethodGet, "/api/conversations/11/messages?limit=0", nil)
	assert.Equal(t, service.BadRequest, resp.Code)
	assert.Equal(t, service.ErrPageSizeInvalid.Error(), resp.Message)
}

func TestSendMessage(t *testing.T) {
	svc := &stubIMService{}
	r := newTestRouter(svc)

	resp := doRequest(t, r, http.MethodPost, "/api/messages", map[string]any{
		"conversationId": 11, "sender": 1,
		"media": []map[string]any{{"type": "image", "url": "https://cdn/a.png"}},
	})
	assert.Equal(t, 200, resp.Code)
	require.NotNil(t, svc.lastSend)
	require.Len(t, svc.lastSend.Media, 1)
	assert.Equal(t, "image", svc.lastSend.Media[0].Type)

	resp = doRequest(t, r, http.MethodPost, "/api/messages", map[string]any{
		"conversationId": 11, "sender": 1,
		"media": []map[string]any{{"type": "image"}},
	})
	assert.Equal(t, service.BadRequest, resp.Code)

	svc.sendErr = fmt.Errorf("save message: %w", service.ErrStorageTransient)
	resp = doRequest(t, r, http.MethodPost, "/api/messages", map[string]any{"conversationId": 11, "sender": 1, "text": "x"})
	assert.Equal(t, service.ServiceUnavailable, resp.Code)
	assert.Equal(t, service.ErrStorageTransient.Error(), resp.Message)

	svc.sendErr = service.ErrNotParticipant
	resp = doRequest(t, r, http.MethodPost, "/api/messages", map[string]any{"conversationId": 11, "sender": 3, "text": "x"})
	assert.Equal(t, service.Forbidden, resp.Code)
}

func TestConversationListAndDelete(t *testing.T) {
	svc := &stubIMService{}
	r := newTestRouter(svc)

	resp := doRequest(t, r, http.MethodGet, "/api/conversations?userId=1", nil)
	assert.Equal(t, 200, resp.Code)
	assert.Len(t, resp.Data, 1)

	resp = doRequest(t, r, http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, service.BadRequest, resp.Code)

	resp = doRequest(t, r, http.MethodDelete, "/api/conversations/11", nil)
	assert.Equal(t, 200, resp.Code)

	svc.deleteErr = service.ErrConversationNotFound
	resp = doRequest(t, r, http.MethodDelete, "/api/conversations/11", nil)
	assert.Equal(t, service.NotFound, resp.Code)
}
