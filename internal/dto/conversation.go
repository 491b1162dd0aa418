package dto

import "chat-widget-backend/internal/model"

type InboundMessageRequest struct {
	SessionID   string            `json:"sessionId"`
	Message     string            `json:"message"`
	APIKey      string            `json:"apiKey,omitempty"`
	PageContext map[string]string `json:"pageContext,omitempty"`
}

type InboundMessageResponse struct {
	Reply            string                 `json:"reply"`
	UserMessage      model.MessageItem      `json:"userMessage"`
	AIMessage        *model.MessageItem     `json:"aiMessage,omitempty"`
	ConversationMode model.ConversationMode `json:"conversationMode,omitempty"`
	AwaitingHuman    bool                   `json:"awaitingHuman"`
	Ignored          bool                   `json:"ignored"`
	Source           string                 `json:"source"`
	// Error is set when the provider failed and the records above hold the
	// apology reply.
	Error string `json:"error,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type HistoryResponse struct {
	SessionID string              `json:"sessionId"`
	Messages  []model.MessageItem `json:"messages"`
}

type ClearHistoryResponse struct {
	SessionID string `json:"sessionId"`
	Deleted   int    `json:"deleted"`
}

type HumanMessageRequest struct {
	Content string `json:"content"`
}

type HumanMessageResponse struct {
	Conversation model.ConversationItem `json:"conversation"`
	Message      model.MessageItem      `json:"message"`
}

type NoteRequest struct {
	Body string `json:"body"`
}

type ConversationResponse struct {
	Conversation model.ConversationItem `json:"conversation"`
}

type ConversationListResponse struct {
	Conversations []model.ConversationItem `json:"conversations"`
}
