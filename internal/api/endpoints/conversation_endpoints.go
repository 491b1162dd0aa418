package endpoints

import (
	"chat-widget-backend/internal/api/middleware"
	"chat-widget-backend/internal/dto"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/service/conversation"
	"context"
	"net/http"
	"strings"
)

// ConversationService is the agent dashboard slice of conversation.Service.
type ConversationService interface {
	Takeover(ctx context.Context, identity conversation.Identity, sessionID string) (model.ConversationItem, error)
	EndHumanSession(ctx context.Context, identity conversation.Identity, sessionID string) (model.ConversationItem, error)
	SendAsHuman(ctx context.Context, identity conversation.Identity, sessionID, content string) (conversation.MessageResult, error)
	Resolve(ctx context.Context, identity conversation.Identity, sessionID string) (model.ConversationItem, error)
	AddNote(ctx context.Context, identity conversation.Identity, sessionID, body string) (model.ConversationItem, error)
	ListConversations(ctx context.Context, identity conversation.Identity, workspaceID string, filter conversation.ListFilter) ([]model.ConversationItem, error)
	Stats(ctx context.Context, identity conversation.Identity, workspaceID string) (conversation.Stats, error)
}

type ConversationEndpoints interface {
	List(http.ResponseWriter, *http.Request) error
	Stats(http.ResponseWriter, *http.Request) error
	Takeover(http.ResponseWriter, *http.Request) error
	EndHumanSession(http.ResponseWriter, *http.Request) error
	SendMessage(http.ResponseWriter, *http.Request) error
	Resolve(http.ResponseWriter, *http.Request) error
	AddNote(http.ResponseWriter, *http.Request) error
}

type conversationEndpoints struct {
	service ConversationService
}

func NewConversationEndpoints(service ConversationService) ConversationEndpoints {
	return &conversationEndpoints{service: service}
}

func (h *conversationEndpoints) List(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}

	q := r.URL.Query()
	filter := conversation.ListFilter{
		Status:     model.ConversationStatus(strings.TrimSpace(q.Get("status"))),
		Mode:       model.ConversationMode(strings.TrimSpace(q.Get("mode"))),
		AssignedTo: strings.TrimSpace(q.Get("assignedTo")),
		Limit:      limit,
	}

	items, err := h.service.ListConversations(r.Context(), identity, workspaceParam(r, identity), filter)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.ConversationListResponse{Conversations: items})
}

func (h *conversationEndpoints) Stats(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	stats, err := h.service.Stats(r.Context(), identity, workspaceParam(r, identity))
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, stats)
}

func (h *conversationEndpoints) Takeover(w http.ResponseWriter, r *http.Request) error {
	return h.transition(w, r, h.service.Takeover)
}

func (h *conversationEndpoints) EndHumanSession(w http.ResponseWriter, r *http.Request) error {
	return h.transition(w, r, h.service.EndHumanSession)
}

func (h *conversationEndpoints) Resolve(w http.ResponseWriter, r *http.Request) error {
	return h.transition(w, r, h.service.Resolve)
}

func (h *conversationEndpoints) SendMessage(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}
	var body dto.HumanMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}

	res, err := h.service.SendAsHuman(r.Context(), identity, r.PathValue("sessionId"), body.Content)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusCreated, dto.HumanMessageResponse{Conversation: res.Conversation, Message: res.Message})
}

func (h *conversationEndpoints) AddNote(w http.ResponseWriter, r *http.Request) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}
	var body dto.NoteRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}

	item, err := h.service.AddNote(r.Context(), identity, r.PathValue("sessionId"), body.Body)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusCreated, dto.ConversationResponse{Conversation: item})
}

type transitionFunc func(ctx context.Context, identity conversation.Identity, sessionID string) (model.ConversationItem, error)

func (h *conversationEndpoints) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) error {
	identity, err := identityFromRequest(r)
	if err != nil {
		return err
	}

	item, err := fn(r.Context(), identity, r.PathValue("sessionId"))
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.ConversationResponse{Conversation: item})
}

func identityFromRequest(r *http.Request) (conversation.Identity, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		return conversation.Identity{}, statusError(http.StatusUnauthorized, "Unauthorized", nil)
	}
	return conversation.IdentityFromClaims(claims), nil
}

func workspaceParam(r *http.Request, identity conversation.Identity) string {
	if ws := strings.TrimSpace(r.URL.Query().Get("workspaceId")); ws != "" {
		return ws
	}
	return identity.WorkspaceID
}
