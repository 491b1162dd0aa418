package endpoints

import (
	"chat-widget-backend/internal/api/middleware"
	"chat-widget-backend/internal/dto"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/service/conversation"
	"chat-widget-backend/internal/service/orchestrator"
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// Orchestrator is the slice of orchestrator.Service the widget needs.
type Orchestrator interface {
	HandleInboundMessage(ctx context.Context, req orchestrator.InboundRequest) (orchestrator.InboundResult, error)
	GetHistory(ctx context.Context, apiKey, sessionID string, limit int) ([]model.MessageItem, error)
	ClearHistory(ctx context.Context, apiKey, sessionID string) (int, error)
}

type WidgetEndpoints interface {
	CreateSession(http.ResponseWriter, *http.Request) error
	PostMessage(http.ResponseWriter, *http.Request) error
	History(http.ResponseWriter, *http.Request) error
	ClearHistory(http.ResponseWriter, *http.Request) error
}

type widgetEndpoints struct {
	orchestrator Orchestrator
}

func NewWidgetEndpoints(o Orchestrator) WidgetEndpoints {
	return &widgetEndpoints{orchestrator: o}
}

func (h *widgetEndpoints) CreateSession(w http.ResponseWriter, r *http.Request) error {
	if apiKeyFromRequest(r) == "" {
		return statusError(http.StatusUnauthorized, "api key is required", nil)
	}
	return WriteJSON(w, http.StatusCreated, dto.CreateSessionResponse{SessionID: uuid.NewString()})
}

func (h *widgetEndpoints) PostMessage(w http.ResponseWriter, r *http.Request) error {
	var body dto.InboundMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		return err
	}

	req := orchestrator.InboundRequest{
		SessionID:   body.SessionID,
		APIKey:      apiKeyFromRequest(r),
		Message:     body.Message,
		PageContext: body.PageContext,
	}
	if req.APIKey == "" {
		req.APIKey = body.APIKey
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		identity := conversation.IdentityFromClaims(claims)
		req.Identity = &identity
	}

	res, err := h.orchestrator.HandleInboundMessage(r.Context(), req)
	if err != nil {
		var orchErr *orchestrator.Error
		if errors.As(err, &orchErr) && res.Source == orchestrator.SourceError {
			mapped := serviceError(err).(*HTTPError)
			payload := inboundResponse(res)
			payload.Error = orchErr.Message
			mapped.Body = payload
			return mapped
		}
		return serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, inboundResponse(res))
}

func (h *widgetEndpoints) History(w http.ResponseWriter, r *http.Request) error {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}

	sessionID := r.PathValue("sessionId")
	messages, err := h.orchestrator.GetHistory(r.Context(), apiKeyFromRequest(r), sessionID, limit)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.HistoryResponse{SessionID: sessionID, Messages: messages})
}

func (h *widgetEndpoints) ClearHistory(w http.ResponseWriter, r *http.Request) error {
	sessionID := r.PathValue("sessionId")
	deleted, err := h.orchestrator.ClearHistory(r.Context(), apiKeyFromRequest(r), sessionID)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.ClearHistoryResponse{SessionID: sessionID, Deleted: deleted})
}

func inboundResponse(res orchestrator.InboundResult) dto.InboundMessageResponse {
	return dto.InboundMessageResponse{
		Reply:            res.Reply,
		UserMessage:      res.UserMessage,
		AIMessage:        res.AIMessage,
		ConversationMode: res.ConversationMode,
		AwaitingHuman:    res.AwaitingHuman,
		Ignored:          res.Ignored,
		Source:           string(res.Source),
	}
}
