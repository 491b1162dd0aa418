package conversation

import (
	"chat-widget-backend/internal/model"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConflict          = errors.New("conversation is held by another agent")
	ErrInvalidTransition = errors.New("invalid conversation transition")
)

// Timeline event names, one per transition method.
const (
	EventTakeoverByHuman = "takeover_by_human"
	EventEndHumanSession = "end_human_session"
	EventActivateBot     = "activate_bot"
	EventResolve         = "resolve"
	EventAddNote         = "add_note"
)

const actorSystem = "system"

// Conversation owns a conversation document. State only changes through its
// transition methods, each of which appends exactly one timeline entry.
type Conversation struct {
	item model.ConversationItem
}

// NewConversation starts a conversation in bot mode with the bot actively replying.
func NewConversation(sessionID, workspaceID, originURL string, now time.Time) *Conversation {
	ts := timestamp(now)
	return &Conversation{item: model.ConversationItem{
		SessionID:      sessionID,
		WorkspaceID:    workspaceID,
		OriginURL:      originURL,
		Status:         model.ConversationStatusActive,
		Mode:           model.ConversationModeBot,
		BotMode:        model.BotModeActive,
		Timeline:       []model.TimelineEntry{},
		LastActivityAt: ts,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}}
}

// Restore wraps a stored document.
func Restore(item model.ConversationItem) *Conversation {
	c := &Conversation{item: copyItem(item)}
	if c.item.Mode == "" {
		c.item.Mode = model.ConversationModeBot
	}
	if c.item.BotMode == "" {
		c.item.BotMode = model.BotModeActive
	}
	if c.item.Status == "" {
		c.item.Status = model.ConversationStatusActive
	}
	return c
}

// Item returns a copy of the document for persistence and responses.
func (c *Conversation) Item() model.ConversationItem {
	return copyItem(c.item)
}

func (c *Conversation) SessionID() string                { return c.item.SessionID }
func (c *Conversation) WorkspaceID() string              { return c.item.WorkspaceID }
func (c *Conversation) Mode() model.ConversationMode     { return c.item.Mode }
func (c *Conversation) BotMode() model.BotMode           { return c.item.BotMode }
func (c *Conversation) Status() model.ConversationStatus { return c.item.Status }
func (c *Conversation) AssignedTo() string               { return c.item.AssignedTo }
func (c *Conversation) BotPaused() bool                  { return c.item.BotPaused }

// HeldByOther reports whether another agent owns the conversation in human mode.
func (c *Conversation) HeldByOther(agentID string) bool {
	return c.item.Mode == model.ConversationModeHuman &&
		c.item.AssignedTo != "" &&
		c.item.AssignedTo != agentID
}

// HeldBy reports whether agentID already owns the open conversation in human
// mode. Taking it over again is a no-op.
func (c *Conversation) HeldBy(agentID string) bool {
	return c.item.Mode == model.ConversationModeHuman &&
		c.item.AssignedTo == agentID &&
		c.item.Status != model.ConversationStatusResolved
}

func (c *Conversation) TakeoverByHuman(agentID string, now time.Time) error {
	if agentID == "" {
		return fmt.Errorf("%w: agent required", ErrInvalidTransition)
	}
	if c.HeldByOther(agentID) {
		return ErrConflict
	}
	if c.HeldBy(agentID) {
		return nil
	}
	c.item.Mode = model.ConversationModeHuman
	c.item.BotPaused = true
	c.item.AssignedTo = agentID
	c.item.Status = model.ConversationStatusActive
	c.record(EventTakeoverByHuman, "agent took over the conversation", agentID, now)
	return nil
}

// EndHumanSession hands the conversation back to a passive bot, which stays
// quiet until the customer asks a question.
func (c *Conversation) EndHumanSession(agentID string, now time.Time) error {
	if c.item.Mode != model.ConversationModeHuman {
		return fmt.Errorf("%w: conversation is not in human mode", ErrInvalidTransition)
	}
	c.item.Mode = model.ConversationModeBot
	c.item.BotPaused = false
	c.item.BotMode = model.BotModePassive
	c.record(EventEndHumanSession, "agent ended the human session", agentID, now)
	return nil
}

func (c *Conversation) ActivateBot(now time.Time) {
	c.item.Mode = model.ConversationModeBot
	c.item.BotMode = model.BotModeActive
	c.item.AssignedTo = ""
	c.item.BotPaused = false
	c.record(EventActivateBot, "bot re-engaged by a customer question", actorSystem, now)
}

func (c *Conversation) Resolve(agentID string, now time.Time) {
	c.item.Status = model.ConversationStatusResolved
	c.record(EventResolve, "conversation resolved", agentID, now)
}

func (c *Conversation) AddNote(agentID, body string, now time.Time) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("%w: note body required", ErrInvalidTransition)
	}
	c.item.Notes = append(c.item.Notes, model.Note{
		Author:    agentID,
		Body:      body,
		CreatedAt: timestamp(now),
	})
	c.record(EventAddNote, "note added", agentID, now)
	return nil
}

// RecordMessage bumps the activity counters. It is not a state transition.
func (c *Conversation) RecordMessage(now time.Time) {
	c.item.MessageCount++
	c.item.LastActivityAt = timestamp(now)
	c.item.UpdatedAt = c.item.LastActivityAt
}

func (c *Conversation) record(event, description, actor string, now time.Time) {
	ts := timestamp(now)
	c.item.Timeline = append(c.item.Timeline, model.TimelineEntry{
		Event:       event,
		Description: description,
		Actor:       actor,
		Timestamp:   ts,
	})
	c.item.UpdatedAt = ts
}

type Decision int

const (
	// DecisionReply lets the bot answer.
	DecisionReply Decision = iota
	// DecisionHuman forwards the message to the assigned agent.
	DecisionHuman
	// DecisionIgnore keeps a passive bot silent.
	DecisionIgnore
	// DecisionActivate wakes a passive bot before answering.
	DecisionActivate
)

func (d Decision) String() string {
	switch d {
	case DecisionHuman:
		return "human"
	case DecisionIgnore:
		return "ignore"
	case DecisionActivate:
		return "activate"
	default:
		return "reply"
	}
}

// Gate decides whether the bot may answer message in the current state.
func (c *Conversation) Gate(message string) Decision {
	if c.item.Mode == model.ConversationModeHuman && c.item.BotPaused {
		return DecisionHuman
	}
	if c.item.Mode == model.ConversationModeBot && c.item.BotMode == model.BotModePassive {
		if IsQuestion(message) {
			return DecisionActivate
		}
		return DecisionIgnore
	}
	return DecisionReply
}

var questionKeywords = []string{
	"help", "support", "assist", "question",
	"ช่วย", "สอบถาม", "ติดต่อ", "แอดมิน",
}

// IsQuestion reports whether the message addresses the bot.
func IsQuestion(message string) bool {
	msg := strings.ToLower(message)
	if strings.ContainsAny(msg, "?？") {
		return true
	}
	for _, kw := range questionKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func copyItem(item model.ConversationItem) model.ConversationItem {
	out := item
	if item.Customer != nil {
		out.Customer = make(map[string]string, len(item.Customer))
		for k, v := range item.Customer {
			out.Customer[k] = v
		}
	}
	out.Timeline = append([]model.TimelineEntry(nil), item.Timeline...)
	if out.Timeline == nil {
		out.Timeline = []model.TimelineEntry{}
	}
	out.Notes = append([]model.Note(nil), item.Notes...)
	return out
}
