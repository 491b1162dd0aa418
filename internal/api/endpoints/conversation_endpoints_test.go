package endpoints

import (
	"bytes"
	"chat-widget-backend/internal/api/middleware"
	"chat-widget-backend/internal/jwt"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/service/conversation"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeConversations struct {
	calls     []string
	identity  conversation.Identity
	sessionID string
	content   string
	workspace string
	filter    conversation.ListFilter
	err       error
	item      model.ConversationItem
	stats     conversation.Stats
}

func (f *fakeConversations) record(call string, identity conversation.Identity, sessionID string) {
	f.calls = append(f.calls, call)
	f.identity = identity
	f.sessionID = sessionID
}

func (f *fakeConversations) Takeover(_ context.Context, identity conversation.Identity, sessionID string) (model.ConversationItem, error) {
	f.record("takeover", identity, sessionID)
	return f.item, f.err
}

func (f *fakeConversations) EndHumanSession(_ context.Context, identity conversation.Identity, sessionID string) (model.ConversationItem, error) {
	f.record("end", identity, sessionID)
	return f.item, f.err
}

func (f *fakeConversations) SendAsHuman(_ context.Context, identity conversation.Identity, sessionID, content string) (conversation.MessageResult, error) {
	f.record("send", identity, sessionID)
	f.content = content
	return conversation.MessageResult{Conversation: f.item, Message: model.MessageItem{MessageID: "m1", Content: content}}, f.err
}

func (f *fakeConversations) Resolve(_ context.Context, identity conversation.Identity, sessionID string) (model.ConversationItem, error) {
	f.record("resolve", identity, sessionID)
	return f.item, f.err
}

func (f *fakeConversations) AddNote(_ context.Context, identity conversation.Identity, sessionID, body string) (model.ConversationItem, error) {
	f.record("note", identity, sessionID)
	f.content = body
	return f.item, f.err
}

func (f *fakeConversations) ListConversations(_ context.Context, identity conversation.Identity, workspaceID string, filter conversation.ListFilter) ([]model.ConversationItem, error) {
	f.record("list", identity, "")
	f.workspace = workspaceID
	f.filter = filter
	return []model.ConversationItem{f.item}, f.err
}

func (f *fakeConversations) Stats(_ context.Context, identity conversation.Identity, workspaceID string) (conversation.Stats, error) {
	f.record("stats", identity, "")
	f.workspace = workspaceID
	return f.stats, f.err
}

func setupConversationHandler(t *testing.T, svc ConversationService) http.Handler {
	t.Helper()

	server := newTestServer(t)
	conv := NewConversationEndpoints(svc)
	auth := middleware.RequireAgent(testTokens)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/client/conversations", server.MakeHTTPHandleFunc(Methods(map[string]handlerFunc{
		http.MethodGet: conv.List,
	}), auth))
	mux.HandleFunc("/api/client/conversations/stats", server.MakeHTTPHandleFunc(Methods(map[string]handlerFunc{
		http.MethodGet: conv.Stats,
	}), auth))
	for action, h := range map[string]handlerFunc{
		"takeover": conv.Takeover,
		"release":  conv.EndHumanSession,
		"messages": conv.SendMessage,
		"resolve":  conv.Resolve,
		"notes":    conv.AddNote,
	} {
		mux.HandleFunc("/api/client/conversations/{sessionId}/"+action, server.MakeHTTPHandleFunc(Methods(map[string]handlerFunc{
			http.MethodPost: h,
		}), auth))
	}
	return mux
}

func agentToken(t *testing.T) string {
	t.Helper()
	token, err := testTokens.CreateToken(jwt.Claims{UserID: "agent-a", Email: "a@example.com", WorkspaceID: "ws-1", Role: "agent"})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	return token
}

func agentRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+agentToken(t))
	return req
}

func TestConversationEndpointsRequireToken(t *testing.T) {
	fake := &fakeConversations{}
	handler := setupConversationHandler(t, fake)

	req := httptest.NewRequest(http.MethodPost, "/api/client/conversations/s-1/takeover", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("service must not be called without a token")
	}
}

func TestConversationTransitions(t *testing.T) {
	fake := &fakeConversations{item: model.ConversationItem{SessionID: "s-1", Mode: model.ConversationModeHuman}}
	handler := setupConversationHandler(t, fake)

	for action, call := range map[string]string{
		"takeover": "takeover",
		"release":  "end",
		"resolve":  "resolve",
	} {
		fake.calls = nil
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, agentRequest(t, http.MethodPost, "/api/client/conversations/s-1/"+action, nil))

		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", action, res.Code, res.Body.String())
		}
		if len(fake.calls) != 1 || fake.calls[0] != call || fake.sessionID != "s-1" {
			t.Fatalf("%s: unexpected calls %v session %q", action, fake.calls, fake.sessionID)
		}
		if fake.identity.UserID != "agent-a" || fake.identity.WorkspaceID != "ws-1" {
			t.Fatalf("%s: identity not taken from token: %+v", action, fake.identity)
		}
	}
}

func TestConversationSendMessageAndNote(t *testing.T) {
	fake := &fakeConversations{item: model.ConversationItem{SessionID: "s-1"}}
	handler := setupConversationHandler(t, fake)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, agentRequest(t, http.MethodPost, "/api/client/conversations/s-1/messages", map[string]string{"content": "Hi, I'm Ann"}))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if fake.content != "Hi, I'm Ann" {
		t.Fatalf("content not forwarded: %q", fake.content)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, agentRequest(t, http.MethodPost, "/api/client/conversations/s-1/notes", map[string]string{"body": "VIP"}))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if fake.content != "VIP" {
		t.Fatalf("note not forwarded: %q", fake.content)
	}
}

func TestConversationServiceErrors(t *testing.T) {
	cases := []struct {
		code   conversation.ErrorCode
		status int
	}{
		{conversation.ErrorCodeValidation, http.StatusBadRequest},
		{conversation.ErrorCodeForbidden, http.StatusForbidden},
		{conversation.ErrorCodeNotFound, http.StatusNotFound},
		{conversation.ErrorCodeConflict, http.StatusConflict},
		{conversation.ErrorCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		fake := &fakeConversations{err: &conversation.Error{Code: tc.code, Message: "nope", Err: errors.New("cause")}}
		handler := setupConversationHandler(t, fake)

		res := httptest.NewRecorder()
		handler.ServeHTTP(res, agentRequest(t, http.MethodPost, "/api/client/conversations/s-1/takeover", nil))
		if res.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.code, tc.status, res.Code)
		}
	}
}

func TestConversationListFilters(t *testing.T) {
	fake := &fakeConversations{item: model.ConversationItem{SessionID: "s-1"}}
	handler := setupConversationHandler(t, fake)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, agentRequest(t, http.MethodGet, "/api/client/conversations?status=active&mode=human&assignedTo=agent-a&limit=5", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	want := conversation.ListFilter{
		Status:     model.ConversationStatusActive,
		Mode:       model.ConversationModeHuman,
		AssignedTo: "agent-a",
		Limit:      5,
	}
	if fake.filter != want || fake.workspace != "ws-1" {
		t.Fatalf("unexpected filter %+v workspace %q", fake.filter, fake.workspace)
	}

	var body struct {
		Conversations []model.ConversationItem `json:"conversations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Conversations) != 1 {
		t.Fatalf("expected one conversation, got %d", len(body.Conversations))
	}
}

func TestConversationStatsUsesWorkspaceParam(t *testing.T) {
	fake := &fakeConversations{stats: conversation.Stats{WorkspaceID: "ws-2", Total: 3}}
	handler := setupConversationHandler(t, fake)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, agentRequest(t, http.MethodGet, "/api/client/conversations/stats?workspaceId=ws-2", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if fake.workspace != "ws-2" {
		t.Fatalf("expected workspace param to win, got %q", fake.workspace)
	}

	var stats conversation.Stats
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
