package orchestrator

import (
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/service/conversation"
	"context"
	"errors"
	"strings"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// GetHistory returns the session transcript in chronological order.
func (s *Service) GetHistory(ctx context.Context, apiKey, sessionID string, limit int) ([]model.MessageItem, error) {
	if _, err := s.sessionForKey(ctx, apiKey, sessionID); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return []model.MessageItem{}, nil
		}
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := s.conversations.ListMessages(ctx, strings.TrimSpace(sessionID), limit)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to load history", err)
	}
	return messages, nil
}

// ClearHistory deletes the session's messages and reports how many were
// removed. The conversation document is kept.
func (s *Service) ClearHistory(ctx context.Context, apiKey, sessionID string) (int, error) {
	if _, err := s.sessionForKey(ctx, apiKey, sessionID); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	deleted, err := s.conversations.DeleteMessages(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to clear history", err)
	}
	s.log.Info().Str("session_id", sessionID).Int("deleted", deleted).Msg("history cleared")
	return deleted, nil
}

// sessionForKey checks that the session exists and belongs to the api key's
// workspace. A missing session is returned as conversation.ErrNotFound.
func (s *Service) sessionForKey(ctx context.Context, apiKey, sessionID string) (model.ConversationItem, error) {
	apiKey = strings.TrimSpace(apiKey)
	sessionID = strings.TrimSpace(sessionID)
	if apiKey == "" {
		return model.ConversationItem{}, newError(ErrorCodeUnauthorized, "api key is required", nil)
	}
	if sessionID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}

	ws, err := s.resolveWorkspace(ctx, InboundRequest{APIKey: apiKey})
	if err != nil {
		return model.ConversationItem{}, err
	}

	conv, err := s.conversations.GetConversation(ctx, sessionID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return model.ConversationItem{}, err
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to load conversation", err)
	}
	if conv.WorkspaceID != ws.WorkspaceID {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "session belongs to another workspace", nil)
	}
	return conv, nil
}
