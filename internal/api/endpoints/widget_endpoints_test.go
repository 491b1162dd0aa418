package endpoints

import (
	"bytes"
	"chat-widget-backend/internal/api"
	"chat-widget-backend/internal/api/middleware"
	"chat-widget-backend/internal/jwt"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/queue"
	"chat-widget-backend/internal/service/orchestrator"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type fakeOrchestrator struct {
	lastRequest orchestrator.InboundRequest
	result      orchestrator.InboundResult
	err         error

	history    []model.MessageItem
	historyKey string
	historyLim int
	cleared    int
	clearErr   error
}

func (f *fakeOrchestrator) HandleInboundMessage(_ context.Context, req orchestrator.InboundRequest) (orchestrator.InboundResult, error) {
	f.lastRequest = req
	return f.result, f.err
}

func (f *fakeOrchestrator) GetHistory(_ context.Context, apiKey, sessionID string, limit int) ([]model.MessageItem, error) {
	f.historyKey = apiKey
	f.historyLim = limit
	return f.history, nil
}

func (f *fakeOrchestrator) ClearHistory(_ context.Context, apiKey, sessionID string) (int, error) {
	return f.cleared, f.clearErr
}

var testTokens = jwt.NewManager("test-secret", time.Hour)

func newTestServer(t *testing.T) *api.APIServer {
	t.Helper()

	queueManager := queue.NewRequestQueueManager(10, 2, zerolog.Nop())
	t.Cleanup(queueManager.Shutdown)

	return api.NewAPIServer(api.Options{
		ListenAddr:     ":0",
		Queue:          queueManager,
		Log:            zerolog.Nop(),
		AllowedOrigins: []string{"*"},
		Tokens:         testTokens,
		Registerer:     prometheus.NewRegistry(),
	})
}

func setupWidgetHandler(t *testing.T, o Orchestrator) http.Handler {
	t.Helper()

	server := newTestServer(t)
	widget := NewWidgetEndpoints(o)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/widget/chat/sessions", server.MakeHTTPHandleFunc(Methods(map[string]handlerFunc{
		http.MethodPost: widget.CreateSession,
	})))
	mux.HandleFunc("/api/widget/chat/messages", server.MakeHTTPHandleFunc(Methods(map[string]handlerFunc{
		http.MethodPost: widget.PostMessage,
	}), middleware.OptionalAgent(testTokens)))
	mux.HandleFunc("/api/widget/chat/sessions/{sessionId}/messages", server.MakeHTTPHandleFunc(Methods(map[string]handlerFunc{
		http.MethodGet:    widget.History,
		http.MethodDelete: widget.ClearHistory,
	})))
	return mux
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestWidgetPostMessage(t *testing.T) {
	fake := &fakeOrchestrator{result: orchestrator.InboundResult{
		Reply:       "Hello!",
		UserMessage: model.MessageItem{MessageID: "m1", Role: model.MessageRoleUser, Content: "hi"},
		AIMessage:   &model.MessageItem{MessageID: "m2", Role: model.MessageRoleAI, Content: "Hello!"},
		Source:      orchestrator.SourceAI,
	}}
	handler := setupWidgetHandler(t, fake)

	res := postJSON(t, handler, "/api/widget/chat/messages", map[string]any{
		"sessionId":   "s-1",
		"message":     "hi",
		"pageContext": map[string]string{"url": "https://shop.example/item"},
	}, map[string]string{"X-API-Key": "key-1"})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fake.lastRequest.APIKey != "key-1" || fake.lastRequest.SessionID != "s-1" {
		t.Fatalf("unexpected request %+v", fake.lastRequest)
	}
	if fake.lastRequest.PageContext["url"] != "https://shop.example/item" {
		t.Fatalf("page context not forwarded")
	}
	if fake.lastRequest.Identity != nil {
		t.Fatalf("anonymous widget request should carry no identity")
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reply"] != "Hello!" || body["source"] != "ai" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWidgetPostMessageWithAgentToken(t *testing.T) {
	fake := &fakeOrchestrator{result: orchestrator.InboundResult{Reply: "ok", Source: orchestrator.SourceAI}}
	handler := setupWidgetHandler(t, fake)

	token, err := testTokens.CreateToken(jwt.Claims{UserID: "agent-a", WorkspaceID: "ws-1", Role: "agent"})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	res := postJSON(t, handler, "/api/widget/chat/messages", map[string]any{"message": "hi"},
		map[string]string{"Authorization": "Bearer " + token})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	id := fake.lastRequest.Identity
	if id == nil || id.UserID != "agent-a" || id.WorkspaceID != "ws-1" {
		t.Fatalf("expected identity from token, got %+v", id)
	}
}

func TestWidgetPostMessageProviderFailureReturnsRecords(t *testing.T) {
	fake := &fakeOrchestrator{
		result: orchestrator.InboundResult{
			Reply:       "Sorry, something went wrong.",
			UserMessage: model.MessageItem{MessageID: "m1"},
			AIMessage:   &model.MessageItem{MessageID: "m2", Metadata: model.MessageMetadata{Error: "upstream 503"}},
			Source:      orchestrator.SourceError,
		},
		err: &orchestrator.Error{Code: orchestrator.ErrorCodeProvider, Message: "AI provider request failed", Err: errors.New("upstream 503")},
	}
	handler := setupWidgetHandler(t, fake)

	res := postJSON(t, handler, "/api/widget/chat/messages", map[string]any{"sessionId": "s-1", "message": "hi"},
		map[string]string{"X-API-Key": "key-1"})
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}

	var body struct {
		Reply     string             `json:"reply"`
		Error     string             `json:"error"`
		AIMessage *model.MessageItem `json:"aiMessage"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "AI provider request failed" || body.AIMessage == nil || body.AIMessage.Metadata.Error != "upstream 503" {
		t.Fatalf("expected transcript records in the error body, got %+v", body)
	}
}

func TestWidgetPostMessageErrorMapping(t *testing.T) {
	cases := []struct {
		code   orchestrator.ErrorCode
		status int
	}{
		{orchestrator.ErrorCodeValidation, http.StatusBadRequest},
		{orchestrator.ErrorCodeUnauthorized, http.StatusUnauthorized},
		{orchestrator.ErrorCodeForbidden, http.StatusForbidden},
		{orchestrator.ErrorCodeNotFound, http.StatusNotFound},
		{orchestrator.ErrorCodeConfiguration, http.StatusInternalServerError},
		{orchestrator.ErrorCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		fake := &fakeOrchestrator{err: &orchestrator.Error{Code: tc.code, Message: string(tc.code)}}
		handler := setupWidgetHandler(t, fake)

		res := postJSON(t, handler, "/api/widget/chat/messages", map[string]any{"message": "hi"},
			map[string]string{"X-API-Key": "key-1"})
		if res.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.code, tc.status, res.Code)
		}
		var body ApiMessageResponse
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Message != string(tc.code) {
			t.Fatalf("%s: unexpected message %q", tc.code, body.Message)
		}
	}
}

func TestWidgetPostMessageRejectsBadJSON(t *testing.T) {
	handler := setupWidgetHandler(t, &fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/widget/chat/messages", bytes.NewBufferString("{"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestWidgetHistoryAndClear(t *testing.T) {
	fake := &fakeOrchestrator{
		history: []model.MessageItem{{MessageID: "m1"}, {MessageID: "m2"}},
		cleared: 2,
	}
	handler := setupWidgetHandler(t, fake)

	req := httptest.NewRequest(http.MethodGet, "/api/widget/chat/sessions/s-1/messages?limit=20&apiKey=key-q", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if fake.historyKey != "key-q" || fake.historyLim != 20 {
		t.Fatalf("unexpected history call key=%q limit=%d", fake.historyKey, fake.historyLim)
	}
	var history struct {
		SessionID string              `json:"sessionId"`
		Messages  []model.MessageItem `json:"messages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if history.SessionID != "s-1" || len(history.Messages) != 2 {
		t.Fatalf("unexpected history %+v", history)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/widget/chat/sessions/s-1/messages?limit=abc", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/widget/chat/sessions/s-1/messages", nil)
	req.Header.Set("X-API-Key", "key-1")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var cleared struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cleared); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cleared.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", cleared.Deleted)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/widget/chat/sessions/s-1/messages", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestWidgetCreateSession(t *testing.T) {
	handler := setupWidgetHandler(t, &fakeOrchestrator{})

	res := postJSON(t, handler, "/api/widget/chat/sessions", map[string]any{}, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without api key, got %d", res.Code)
	}

	res = postJSON(t, handler, "/api/widget/chat/sessions", map[string]any{}, map[string]string{"X-API-Key": "key-1"})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.SessionID) != 36 {
		t.Fatalf("expected a uuid session id, got %q", body.SessionID)
	}
}
