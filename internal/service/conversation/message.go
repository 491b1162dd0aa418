package conversation

import (
	"chat-widget-backend/internal/model"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a ULID, so ids issued later sort after earlier ones.
func NewMessageID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

func lifecycleMessage(sessionID, workspaceID, content string, now time.Time) model.MessageItem {
	return model.MessageItem{
		SessionID:   sessionID,
		MessageID:   NewMessageID(now),
		WorkspaceID: workspaceID,
		Role:        model.MessageRoleSystem,
		Content:     content,
		Type:        model.MessageTypeText,
		Provider:    model.ProviderSystem,
		Model:       model.ModelSystemLifecycle,
		CreatedAt:   timestamp(now),
	}
}
