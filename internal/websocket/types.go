package websocket

import (
	"chat-widget-backend/internal/model"
	"fmt"
)

type Room struct {
	Id      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

type WSMessage struct {
	Content   string `json:"content"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
}

type RoomRes struct {
	ID      string `json:"id"`
	Clients int    `json:"clients"`
}

type EventType string

const (
	EventMessageCreated      EventType = "message_created"
	EventCustomerMessage     EventType = "customer_message"
	EventConversationUpdated EventType = "conversation_updated"
	EventTakeover            EventType = "takeover_by_human"
	EventHumanSessionEnded   EventType = "end_human_session"
	EventResolved            EventType = "resolve"
	EventNoteAdded           EventType = "add_note"
)

// Event is the payload pushed to widget and dashboard clients.
type Event struct {
	Type         EventType               `json:"type"`
	SessionID    string                  `json:"sessionId"`
	WorkspaceID  string                  `json:"workspaceId"`
	Conversation *model.ConversationItem `json:"conversation,omitempty"`
	Message      *model.MessageItem      `json:"message,omitempty"`
	Timestamp    string                  `json:"timestamp"`
}

func SessionRoomID(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func AgentRoomID(agentID string) string {
	return fmt.Sprintf("agent:%s", agentID)
}

func WorkspaceRoomID(workspaceID string) string {
	return fmt.Sprintf("workspace:%s:notifications", workspaceID)
}
