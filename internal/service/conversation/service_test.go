package conversation

import (
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/service/workspace"
	"chat-widget-backend/internal/websocket"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	messages      map[string][]model.MessageItem
	// failMessage, when set, fails CreateMessage for matching messages.
	failMessage func(model.MessageItem) bool
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]model.ConversationItem),
		messages:      make(map[string][]model.MessageItem),
	}
}

func (m *memoryRepository) GetConversation(ctx context.Context, sessionID string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[sessionID]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryRepository) PutConversation(ctx context.Context, c model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.SessionID] = c
	return nil
}

func (m *memoryRepository) ListConversations(ctx context.Context, workspaceID string, filter ListFilter) ([]model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ConversationItem
	for _, c := range m.conversations {
		if c.WorkspaceID == workspaceID && filter.matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt > out[j].LastActivityAt })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryRepository) CreateMessage(ctx context.Context, msg model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMessage != nil && m.failMessage(msg) {
		return errors.New("messages table unavailable")
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *memoryRepository) ListMessages(ctx context.Context, sessionID string, limit int) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append([]model.MessageItem(nil), m.messages[sessionID]...)
	// the sort key orders the transcript, as in the messages table
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].MessageID < msgs[j].MessageID })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *memoryRepository) DeleteMessages(ctx context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.messages[sessionID])
	delete(m.messages, sessionID)
	return n, nil
}

type memoryWorkspaces struct {
	workspaces map[string]model.WorkspaceItem
	agents     map[string]model.AgentItem
}

func (m *memoryWorkspaces) GetWorkspace(ctx context.Context, id string) (model.WorkspaceItem, error) {
	ws, ok := m.workspaces[id]
	if !ok {
		return model.WorkspaceItem{}, workspace.ErrNotFound
	}
	return ws, nil
}

func (m *memoryWorkspaces) GetWorkspaceByAPIKey(ctx context.Context, apiKey string) (model.WorkspaceItem, error) {
	for _, ws := range m.workspaces {
		if ws.APIKey == apiKey {
			return ws, nil
		}
	}
	return model.WorkspaceItem{}, workspace.ErrNotFound
}

func (m *memoryWorkspaces) GetAgent(ctx context.Context, workspaceID, userID string) (model.AgentItem, error) {
	a, ok := m.agents[model.AgentPK(workspaceID, userID)]
	if !ok {
		return model.AgentItem{}, workspace.ErrNotFound
	}
	return a, nil
}

func (m *memoryWorkspaces) IncrementMessageUsage(ctx context.Context, workspaceID string, now time.Time) error {
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]websocket.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, roomID string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]websocket.Event)
	}
	p.events[roomID] = append(p.events[roomID], payload.(websocket.Event))
	return nil
}

func (p *recordingPublisher) types(roomID string) []websocket.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []websocket.EventType
	for _, e := range p.events[roomID] {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *Service
	repo      *memoryRepository
	publisher *recordingPublisher
}

var (
	owner    = Identity{UserID: "owner-1", WorkspaceID: "ws-1"}
	agentA   = Identity{UserID: "agent-a", WorkspaceID: "ws-1"}
	agentB   = Identity{UserID: "agent-b", WorkspaceID: "ws-1"}
	outsider = Identity{UserID: "stranger", WorkspaceID: "ws-1"}
)

func newFixture(t *testing.T) fixture {
	t.Helper()

	repo := newMemoryRepository()
	workspaces := &memoryWorkspaces{
		workspaces: map[string]model.WorkspaceItem{
			"ws-1": {WorkspaceID: "ws-1", OwnerID: "owner-1", Plan: "pro", Language: "en"},
		},
		agents: map[string]model.AgentItem{
			model.AgentPK("ws-1", "agent-a"):  {WorkspaceID: "ws-1", UserID: "agent-a", Active: true},
			model.AgentPK("ws-1", "agent-b"):  {WorkspaceID: "ws-1", UserID: "agent-b", Active: true},
			model.AgentPK("ws-1", "stranger"): {WorkspaceID: "ws-1", UserID: "stranger", Active: false},
		},
	}
	publisher := &recordingPublisher{}
	clock := func() time.Time { return t0 }

	c := NewConversation("s-1", "ws-1", "", t0)
	if err := repo.PutConversation(context.Background(), c.Item()); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	return fixture{
		svc:       NewWithRepository(repo, workspaces, publisher, nil, zerolog.Nop(), clock),
		repo:      repo,
		publisher: publisher,
	}
}

func codeOf(err error) ErrorCode {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}

func TestTakeoverThenSecondAgentConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.svc.Takeover(ctx, agentA, "s-1")
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	if conv.Mode != model.ConversationModeHuman || !conv.BotPaused || conv.AssignedTo != "agent-a" {
		t.Fatalf("unexpected conversation after takeover: %+v", conv)
	}

	_, err = f.svc.Takeover(ctx, agentB, "s-1")
	if codeOf(err) != ErrorCodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	stored, _ := f.repo.GetConversation(ctx, "s-1")
	if stored.AssignedTo != "agent-a" {
		t.Fatalf("expected agent-a to stay assigned, got %s", stored.AssignedTo)
	}
	if len(stored.Timeline) != 1 {
		t.Fatalf("expected one timeline entry, got %d", len(stored.Timeline))
	}

	msgs, _ := f.repo.ListMessages(ctx, "s-1", 0)
	if len(msgs) != 1 || msgs[0].Role != model.MessageRoleSystem || msgs[0].Model != model.ModelSystemLifecycle {
		t.Fatalf("expected one lifecycle message, got %+v", msgs)
	}

	if got := f.publisher.types(websocket.WorkspaceRoomID("ws-1")); len(got) != 1 || got[0] != websocket.EventTakeover {
		t.Fatalf("unexpected workspace events %v", got)
	}
}

func TestUnauthorizedAgentCannotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Takeover(ctx, outsider, "s-1")
	if codeOf(err) != ErrorCodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	stored, _ := f.repo.GetConversation(ctx, "s-1")
	if stored.Mode != model.ConversationModeBot || len(stored.Timeline) != 0 {
		t.Fatalf("conversation mutated by a forbidden call: %+v", stored)
	}

	if _, err := f.svc.Takeover(ctx, Identity{}, "s-1"); codeOf(err) != ErrorCodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSendAsHumanTakesOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendAsHuman(ctx, owner, "s-1", "Hi, I'm Anna from the shop")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Conversation.Mode != model.ConversationModeHuman || res.Conversation.AssignedTo != "owner-1" {
		t.Fatalf("expected owner takeover, got %+v", res.Conversation)
	}
	if res.Message.Role != model.MessageRoleHuman || res.Message.AuthorID != "owner-1" {
		t.Fatalf("unexpected message %+v", res.Message)
	}
	if res.Conversation.MessageCount != 1 {
		t.Fatalf("expected message count 1, got %d", res.Conversation.MessageCount)
	}

	events := f.publisher.types(websocket.SessionRoomID("s-1"))
	if len(events) == 0 || events[len(events)-1] != websocket.EventMessageCreated {
		t.Fatalf("expected message_created on the session room, got %v", events)
	}

	if _, err := f.svc.SendAsHuman(ctx, agentA, "s-1", "me too"); codeOf(err) != ErrorCodeConflict {
		t.Fatalf("expected conflict for second agent, got %v", err)
	}
	if _, err := f.svc.SendAsHuman(ctx, owner, "s-1", "   "); codeOf(err) != ErrorCodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEndHumanSessionLeavesPassiveBot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.EndHumanSession(ctx, agentA, "s-1"); codeOf(err) != ErrorCodeConflict {
		t.Fatalf("expected conflict when not in human mode, got %v", err)
	}

	if _, err := f.svc.Takeover(ctx, agentA, "s-1"); err != nil {
		t.Fatalf("takeover: %v", err)
	}
	conv, err := f.svc.EndHumanSession(ctx, agentA, "s-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if conv.Mode != model.ConversationModeBot || conv.BotMode != model.BotModePassive || conv.BotPaused {
		t.Fatalf("unexpected state %+v", conv)
	}
	if conv.Timeline[len(conv.Timeline)-1].Event != EventEndHumanSession {
		t.Fatalf("expected end_human_session entry, got %+v", conv.Timeline)
	}
}

func TestResolveAndNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddNote(ctx, agentA, "s-1", "asked about wholesale"); err != nil {
		t.Fatalf("note: %v", err)
	}
	conv, err := f.svc.Resolve(ctx, agentA, "s-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if conv.Status != model.ConversationStatusResolved {
		t.Fatalf("expected resolved, got %s", conv.Status)
	}
	if len(conv.Notes) != 1 || len(conv.Timeline) != 2 {
		t.Fatalf("unexpected notes/timeline %+v", conv)
	}

	for _, e := range f.publisher.types(websocket.SessionRoomID("s-1")) {
		if e == websocket.EventNoteAdded {
			t.Fatalf("notes must not reach the customer's room")
		}
	}

	if _, err := f.svc.Resolve(ctx, agentA, "missing"); codeOf(err) != ErrorCodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListConversationsAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	later := NewConversation("s-2", "ws-1", "", t0.Add(time.Minute))
	later.RecordMessage(t0.Add(time.Minute))
	_ = later.TakeoverByHuman("agent-b", t0.Add(time.Minute))
	_ = f.repo.PutConversation(ctx, later.Item())
	_ = f.repo.PutConversation(ctx, NewConversation("other", "ws-2", "", t0).Item())

	all, err := f.svc.ListConversations(ctx, agentA, "", ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].SessionID != "s-2" {
		t.Fatalf("expected 2 conversations newest first, got %+v", all)
	}

	humans, err := f.svc.ListConversations(ctx, agentA, "ws-1", ListFilter{Mode: model.ConversationModeHuman})
	if err != nil {
		t.Fatalf("list human: %v", err)
	}
	if len(humans) != 1 || humans[0].AssignedTo != "agent-b" {
		t.Fatalf("unexpected filtered list %+v", humans)
	}

	stats, err := f.svc.Stats(ctx, owner, "ws-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.ByMode[model.ConversationModeHuman] != 1 || stats.AwaitingHuman != 1 || stats.Messages != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, err := f.svc.Stats(ctx, outsider, "ws-1"); codeOf(err) != ErrorCodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSendAsHumanNoticePrecedesReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.SendAsHuman(ctx, owner, "s-1", "Hi, I'm Anna"); err != nil {
		t.Fatalf("send: %v", err)
	}

	transcript, _ := f.repo.ListMessages(ctx, "s-1", 0)
	if len(transcript) != 2 {
		t.Fatalf("expected notice and reply, got %d messages", len(transcript))
	}
	if transcript[0].Role != model.MessageRoleSystem || transcript[1].Role != model.MessageRoleHuman {
		t.Fatalf("expected system notice before the agent reply, got %s then %s", transcript[0].Role, transcript[1].Role)
	}
	if transcript[1].Content != "Hi, I'm Anna" {
		t.Fatalf("unexpected reply %q", transcript[1].Content)
	}
}

func TestSendAsHumanFailedWriteLeavesConversationUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.failMessage = func(m model.MessageItem) bool { return m.Role == model.MessageRoleHuman }

	before, _ := f.repo.GetConversation(ctx, "s-1")

	_, err := f.svc.SendAsHuman(ctx, agentA, "s-1", "hello")
	if codeOf(err) != ErrorCodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	after, _ := f.repo.GetConversation(ctx, "s-1")
	if after.Mode != before.Mode || after.AssignedTo != "" || after.MessageCount != before.MessageCount {
		t.Fatalf("failed send must not commit state, got %+v", after)
	}
	if len(after.Timeline) != len(before.Timeline) {
		t.Fatalf("failed send must not touch the timeline")
	}
	if msgs, _ := f.repo.ListMessages(ctx, "s-1", 0); len(msgs) != 0 {
		t.Fatalf("expected no transcript entries, got %d", len(msgs))
	}
	if events := f.publisher.types(websocket.WorkspaceRoomID("ws-1")); len(events) != 0 {
		t.Fatalf("expected no events, got %v", events)
	}
}

func TestRepeatTakeoverBySameAgentIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Takeover(ctx, agentA, "s-1")
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}
	second, err := f.svc.Takeover(ctx, agentA, "s-1")
	if err != nil {
		t.Fatalf("repeat takeover: %v", err)
	}

	if len(second.Timeline) != len(first.Timeline) {
		t.Fatalf("repeat takeover appended to the timeline: %d -> %d", len(first.Timeline), len(second.Timeline))
	}
	if msgs, _ := f.repo.ListMessages(ctx, "s-1", 0); len(msgs) != 1 {
		t.Fatalf("expected a single join notice, got %d messages", len(msgs))
	}
	if events := f.publisher.types(websocket.WorkspaceRoomID("ws-1")); len(events) != 1 {
		t.Fatalf("expected one takeover event, got %v", events)
	}
}
