package conversation

import (
	"chat-widget-backend/internal/database"
	"chat-widget-backend/internal/i18n"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/service/workspace"
	"chat-widget-backend/internal/websocket"
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	MaxMessageLength = 2000
	defaultListLimit = 50
	maxListLimit     = 200
)

// Publisher pushes real-time events to a room.
type Publisher interface {
	Publish(ctx context.Context, roomID string, payload interface{}) error
}

type MessageResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
}

type Stats struct {
	WorkspaceID   string                           `json:"workspaceId"`
	Total         int                              `json:"total"`
	ByStatus      map[model.ConversationStatus]int `json:"byStatus"`
	ByMode        map[model.ConversationMode]int   `json:"byMode"`
	AwaitingHuman int                              `json:"awaitingHuman"`
	Messages      int                              `json:"messages"`
}

// Service runs the agent dashboard lifecycle operations.
type Service struct {
	repo       Repository
	workspaces workspace.Store
	publisher  Publisher
	translator *i18n.Translator
	log        zerolog.Logger
	now        func() time.Time
}

func New(db *database.Database, workspaces workspace.Store, publisher Publisher, translator *i18n.Translator, log zerolog.Logger) *Service {
	return NewWithRepository(NewDynamoRepository(db), workspaces, publisher, translator, log, time.Now)
}

func NewWithRepository(repo Repository, workspaces workspace.Store, publisher Publisher, translator *i18n.Translator, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if translator == nil {
		translator = i18n.New()
	}
	return &Service{
		repo:       repo,
		workspaces: workspaces,
		publisher:  publisher,
		translator: translator,
		log:        log.With().Str("service", "conversation").Logger(),
		now:        now,
	}
}

func (s *Service) Takeover(ctx context.Context, identity Identity, sessionID string) (model.ConversationItem, error) {
	ws, conv, err := s.authorize(ctx, identity, sessionID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	if conv.HeldBy(identity.UserID) {
		return conv.Item(), nil
	}

	now := s.now().UTC()
	if err := conv.TakeoverByHuman(identity.UserID, now); err != nil {
		return model.ConversationItem{}, transitionError(err)
	}
	if err := s.save(ctx, conv); err != nil {
		return model.ConversationItem{}, err
	}

	s.announce(ctx, conv, s.notice(ws, conv, i18n.AgentJoined, now), now)
	s.publishLifecycle(ctx, conv, websocket.EventTakeover, now)
	return conv.Item(), nil
}

func (s *Service) EndHumanSession(ctx context.Context, identity Identity, sessionID string) (model.ConversationItem, error) {
	ws, conv, err := s.authorize(ctx, identity, sessionID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	now := s.now().UTC()
	if err := conv.EndHumanSession(identity.UserID, now); err != nil {
		return model.ConversationItem{}, transitionError(err)
	}
	if err := s.save(ctx, conv); err != nil {
		return model.ConversationItem{}, err
	}

	s.announce(ctx, conv, s.notice(ws, conv, i18n.AgentLeft, now), now)
	s.publishLifecycle(ctx, conv, websocket.EventHumanSessionEnded, now)
	return conv.Item(), nil
}

// SendAsHuman posts an agent reply, taking the conversation over first when
// the bot still owns it.
func (s *Service) SendAsHuman(ctx context.Context, identity Identity, sessionID, content string) (MessageResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message content is required", nil)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return MessageResult{}, newError(ErrorCodeValidation, "message content is too long", nil)
	}

	ws, conv, err := s.authorize(ctx, identity, sessionID)
	if err != nil {
		return MessageResult{}, err
	}

	now := s.now().UTC()
	var joined *model.MessageItem
	if !conv.HeldBy(identity.UserID) {
		if err := conv.TakeoverByHuman(identity.UserID, now); err != nil {
			return MessageResult{}, transitionError(err)
		}
		// issued before the reply's id so the notice sorts first
		notice := s.notice(ws, conv, i18n.AgentJoined, now)
		joined = &notice
	}

	message := model.MessageItem{
		SessionID:   conv.SessionID(),
		MessageID:   NewMessageID(now),
		WorkspaceID: conv.WorkspaceID(),
		Role:        model.MessageRoleHuman,
		Content:     content,
		Type:        model.MessageTypeText,
		AuthorID:    identity.UserID,
		CreatedAt:   timestamp(now),
	}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	conv.RecordMessage(now)
	if err := s.save(ctx, conv); err != nil {
		return MessageResult{}, err
	}
	if joined != nil {
		s.announce(ctx, conv, *joined, now)
		s.publishLifecycle(ctx, conv, websocket.EventTakeover, now)
	}
	s.publishMessage(ctx, conv, message, now)

	return MessageResult{Conversation: conv.Item(), Message: message}, nil
}

func (s *Service) Resolve(ctx context.Context, identity Identity, sessionID string) (model.ConversationItem, error) {
	_, conv, err := s.authorize(ctx, identity, sessionID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	now := s.now().UTC()
	conv.Resolve(identity.UserID, now)
	if err := s.save(ctx, conv); err != nil {
		return model.ConversationItem{}, err
	}
	s.publishLifecycle(ctx, conv, websocket.EventResolved, now)
	return conv.Item(), nil
}

func (s *Service) AddNote(ctx context.Context, identity Identity, sessionID, body string) (model.ConversationItem, error) {
	if strings.TrimSpace(body) == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "note body is required", nil)
	}

	_, conv, err := s.authorize(ctx, identity, sessionID)
	if err != nil {
		return model.ConversationItem{}, err
	}

	now := s.now().UTC()
	if err := conv.AddNote(identity.UserID, body, now); err != nil {
		return model.ConversationItem{}, transitionError(err)
	}
	if err := s.save(ctx, conv); err != nil {
		return model.ConversationItem{}, err
	}
	// notes are internal, the customer's room does not see them
	s.publish(ctx, websocket.WorkspaceRoomID(conv.WorkspaceID()), websocket.Event{
		Type:         websocket.EventNoteAdded,
		SessionID:    conv.SessionID(),
		WorkspaceID:  conv.WorkspaceID(),
		Conversation: itemPtr(conv),
		Timestamp:    timestamp(now),
	})
	return conv.Item(), nil
}

func (s *Service) ListConversations(ctx context.Context, identity Identity, workspaceID string, filter ListFilter) ([]model.ConversationItem, error) {
	if _, err := s.authorizeWorkspace(ctx, identity, workspaceID); err != nil {
		return nil, err
	}
	if workspaceID == "" {
		workspaceID = identity.WorkspaceID
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	conversations, err := s.repo.ListConversations(ctx, workspaceID, filter)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list conversations", err)
	}
	return conversations, nil
}

func (s *Service) Stats(ctx context.Context, identity Identity, workspaceID string) (Stats, error) {
	if _, err := s.authorizeWorkspace(ctx, identity, workspaceID); err != nil {
		return Stats{}, err
	}
	if workspaceID == "" {
		workspaceID = identity.WorkspaceID
	}

	conversations, err := s.repo.ListConversations(ctx, workspaceID, ListFilter{})
	if err != nil {
		return Stats{}, newError(ErrorCodeInternal, "failed to load conversations", err)
	}

	stats := Stats{
		WorkspaceID: workspaceID,
		ByStatus:    make(map[model.ConversationStatus]int),
		ByMode:      make(map[model.ConversationMode]int),
	}
	for _, c := range conversations {
		stats.Total++
		stats.ByStatus[c.Status]++
		stats.ByMode[c.Mode]++
		stats.Messages += c.MessageCount
		if c.Mode == model.ConversationModeHuman && c.Status != model.ConversationStatusResolved {
			stats.AwaitingHuman++
		}
	}
	return stats, nil
}

func (s *Service) authorize(ctx context.Context, identity Identity, sessionID string) (model.WorkspaceItem, *Conversation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return model.WorkspaceItem{}, nil, newError(ErrorCodeValidation, "sessionId is required", nil)
	}
	if identity.UserID == "" {
		return model.WorkspaceItem{}, nil, newError(ErrorCodeUnauthorized, "authentication required", nil)
	}

	item, err := s.repo.GetConversation(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.WorkspaceItem{}, nil, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.WorkspaceItem{}, nil, newError(ErrorCodeInternal, "failed to load conversation", err)
	}

	ws, err := s.authorizeWorkspace(ctx, identity, item.WorkspaceID)
	if err != nil {
		return model.WorkspaceItem{}, nil, err
	}
	return ws, Restore(item), nil
}

func (s *Service) authorizeWorkspace(ctx context.Context, identity Identity, workspaceID string) (model.WorkspaceItem, error) {
	if identity.UserID == "" {
		return model.WorkspaceItem{}, newError(ErrorCodeUnauthorized, "authentication required", nil)
	}
	if workspaceID == "" {
		workspaceID = identity.WorkspaceID
	}
	if workspaceID == "" {
		return model.WorkspaceItem{}, newError(ErrorCodeValidation, "workspaceId is required", nil)
	}

	ws, err := s.workspaces.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			return model.WorkspaceItem{}, newError(ErrorCodeNotFound, "workspace not found", err)
		}
		return model.WorkspaceItem{}, newError(ErrorCodeInternal, "failed to load workspace", err)
	}

	allowed, err := workspace.CanManage(ctx, s.workspaces, ws, identity.UserID)
	if err != nil {
		return model.WorkspaceItem{}, newError(ErrorCodeInternal, "failed to check workspace access", err)
	}
	if !allowed {
		return model.WorkspaceItem{}, newError(ErrorCodeForbidden, "not allowed to manage this workspace's conversations", nil)
	}
	return ws, nil
}

func (s *Service) save(ctx context.Context, conv *Conversation) error {
	if err := s.repo.PutConversation(ctx, conv.Item()); err != nil {
		return newError(ErrorCodeInternal, "failed to save conversation", err)
	}
	return nil
}

// notice builds a lifecycle message in the workspace language.
func (s *Service) notice(ws model.WorkspaceItem, conv *Conversation, textID string, now time.Time) model.MessageItem {
	lang := ws.Language
	if lang == "" {
		lang = "en"
	}
	return lifecycleMessage(conv.SessionID(), conv.WorkspaceID(), s.translator.Text(lang, textID, nil), now)
}

// announce writes a lifecycle notice into the transcript so the customer
// sees who is answering. Failures are logged only.
func (s *Service) announce(ctx context.Context, conv *Conversation, msg model.MessageItem, now time.Time) {
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("session_id", conv.SessionID()).Msg("failed to store lifecycle message")
		return
	}
	s.publish(ctx, websocket.SessionRoomID(conv.SessionID()), websocket.Event{
		Type:        websocket.EventMessageCreated,
		SessionID:   conv.SessionID(),
		WorkspaceID: conv.WorkspaceID(),
		Message:     &msg,
		Timestamp:   timestamp(now),
	})
}

func (s *Service) publishLifecycle(ctx context.Context, conv *Conversation, event websocket.EventType, now time.Time) {
	payload := websocket.Event{
		Type:         event,
		SessionID:    conv.SessionID(),
		WorkspaceID:  conv.WorkspaceID(),
		Conversation: itemPtr(conv),
		Timestamp:    timestamp(now),
	}
	s.publish(ctx, websocket.SessionRoomID(conv.SessionID()), payload)
	s.publish(ctx, websocket.WorkspaceRoomID(conv.WorkspaceID()), payload)
}

func (s *Service) publishMessage(ctx context.Context, conv *Conversation, msg model.MessageItem, now time.Time) {
	payload := websocket.Event{
		Type:        websocket.EventMessageCreated,
		SessionID:   conv.SessionID(),
		WorkspaceID: conv.WorkspaceID(),
		Message:     &msg,
		Timestamp:   timestamp(now),
	}
	s.publish(ctx, websocket.SessionRoomID(conv.SessionID()), payload)
	s.publish(ctx, websocket.WorkspaceRoomID(conv.WorkspaceID()), payload)
}

func (s *Service) publish(ctx context.Context, roomID string, payload websocket.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, roomID, payload); err != nil {
		s.log.Warn().Err(err).Str("room", roomID).Str("event", string(payload.Type)).Msg("failed to publish event")
	}
}

func transitionError(err error) error {
	switch {
	case errors.Is(err, ErrConflict):
		return newError(ErrorCodeConflict, "conversation is already handled by another agent", err)
	case errors.Is(err, ErrInvalidTransition):
		return newError(ErrorCodeConflict, err.Error(), err)
	default:
		return newError(ErrorCodeInternal, "conversation transition failed", err)
	}
}

func itemPtr(conv *Conversation) *model.ConversationItem {
	item := conv.Item()
	return &item
}
