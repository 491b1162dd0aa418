package orchestrator

import (
	"chat-widget-backend/internal/ai"
	"chat-widget-backend/internal/i18n"
	"chat-widget-backend/internal/interceptor"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/plan"
	"chat-widget-backend/internal/prompt"
	"chat-widget-backend/internal/service/conversation"
	"chat-widget-backend/internal/service/workspace"
	"chat-widget-backend/internal/websocket"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxMessageLength = 2000
	maxHistoryFetch         = 200
)

// Source says who produced the reply to an inbound message.
type Source string

const (
	SourceAI          Source = "ai"
	SourceInterceptor Source = "interceptor"
	SourceHuman       Source = "human"
	SourceIgnored     Source = "ignored"
	SourceError       Source = "error"
)

// ProviderLookup resolves a provider by name.
type ProviderLookup interface {
	Get(name string) (ai.Provider, error)
}

type InboundRequest struct {
	SessionID string `validate:"max=128"`
	// APIKey identifies the widget's workspace. Dashboard previews send an
	// Identity instead.
	APIKey      string
	Identity    *conversation.Identity
	Message     string `validate:"required"`
	PageContext map[string]string
}

type InboundResult struct {
	Reply            string                  `json:"reply"`
	UserMessage      model.MessageItem       `json:"userMessage"`
	AIMessage        *model.MessageItem      `json:"aiMessage,omitempty"`
	ConversationMode model.ConversationMode  `json:"conversationMode,omitempty"`
	AwaitingHuman    bool                    `json:"awaitingHuman"`
	Ignored          bool                    `json:"ignored"`
	Source           Source                  `json:"source"`
	Conversation     *model.ConversationItem `json:"-"`
}

type Dependencies struct {
	Conversations    conversation.Repository
	Workspaces       workspace.Store
	Providers        ProviderLookup
	Resolver         plan.Resolver
	Chain            *interceptor.Chain
	Publisher        conversation.Publisher
	Translator       *i18n.Translator
	MaxMessageLength int
	Log              zerolog.Logger
	Now              func() time.Time
	// Sleep waits d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Service struct {
	conversations    conversation.Repository
	workspaces       workspace.Store
	providers        ProviderLookup
	resolver         plan.Resolver
	chain            *interceptor.Chain
	publisher        conversation.Publisher
	translator       *i18n.Translator
	validate         *validator.Validate
	maxMessageLength int
	log              zerolog.Logger
	now              func() time.Time
	sleep            func(ctx context.Context, d time.Duration) error
}

func New(deps Dependencies) *Service {
	s := &Service{
		conversations:    deps.Conversations,
		workspaces:       deps.Workspaces,
		providers:        deps.Providers,
		resolver:         deps.Resolver,
		chain:            deps.Chain,
		publisher:        deps.Publisher,
		translator:       deps.Translator,
		validate:         validator.New(),
		maxMessageLength: deps.MaxMessageLength,
		log:              deps.Log.With().Str("service", "orchestrator").Logger(),
		now:              deps.Now,
		sleep:            deps.Sleep,
	}
	if s.translator == nil {
		s.translator = i18n.New()
	}
	if s.chain == nil {
		s.chain = interceptor.NewChain(deps.Log)
	}
	if s.maxMessageLength <= 0 {
		s.maxMessageLength = defaultMaxMessageLength
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	return s
}

// turn carries the per-request state through the pipeline.
type turn struct {
	req       InboundRequest
	message   string
	workspace model.WorkspaceItem
	conv      *conversation.Conversation
	policy    plan.Policy
	language  string
	now       time.Time
	user      model.MessageItem
}

// HandleInboundMessage answers one customer message.
func (s *Service) HandleInboundMessage(ctx context.Context, req InboundRequest) (InboundResult, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.Message = strings.TrimSpace(req.Message)

	if err := s.validateRequest(req); err != nil {
		return InboundResult{}, err
	}

	t := &turn{req: req, message: req.Message, now: s.now().UTC()}
	if err := s.load(ctx, t); err != nil {
		return InboundResult{}, err
	}
	t.language = i18n.LanguageFor(t.message, t.workspace.Language)

	role := ""
	if req.Identity != nil {
		role = req.Identity.Role
	}
	t.policy = s.resolver.Resolve(t.workspace.Plan, role)

	if err := s.recordUserMessage(ctx, t); err != nil {
		return InboundResult{}, err
	}

	if t.conv != nil {
		switch t.conv.Gate(t.message) {
		case conversation.DecisionHuman:
			return s.forwardToHuman(ctx, t)
		case conversation.DecisionIgnore:
			return s.ignore(ctx, t)
		case conversation.DecisionActivate:
			t.conv.ActivateBot(t.now)
		}
	}

	if reply := s.chain.Run(ctx, interceptor.Input{
		Workspace: t.workspace,
		SessionID: req.SessionID,
		Message:   t.message,
		Language:  t.language,
	}); reply != nil {
		return s.replyFromInterceptor(ctx, t, reply)
	}

	return s.replyFromProvider(ctx, t)
}

func (s *Service) validateRequest(req InboundRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return newError(ErrorCodeValidation, validationMessage(err), err)
	}
	if err := s.validate.Var(req.Message, "max="+strconv.Itoa(s.maxMessageLength)); err != nil {
		return newError(ErrorCodeValidation, fmt.Sprintf("message must be at most %d characters", s.maxMessageLength), err)
	}
	if req.APIKey == "" && (req.Identity == nil || req.Identity.UserID == "") {
		return newError(ErrorCodeUnauthorized, "api key or agent token is required", nil)
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
}

// load resolves the workspace and, for durable sessions, the conversation.
// Both lookups run concurrently.
func (s *Service) load(ctx context.Context, t *turn) error {
	var (
		ws      model.WorkspaceItem
		conv    model.ConversationItem
		hasConv bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ws, err = s.resolveWorkspace(gctx, t.req)
		return err
	})
	if t.req.SessionID != "" {
		g.Go(func() error {
			item, err := s.conversations.GetConversation(gctx, t.req.SessionID)
			switch {
			case err == nil:
				conv, hasConv = item, true
				return nil
			case errors.Is(err, conversation.ErrNotFound):
				return nil
			default:
				return newError(ErrorCodeInternal, "failed to load conversation", err)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t.workspace = ws
	if t.req.SessionID == "" {
		return nil
	}
	if hasConv {
		if conv.WorkspaceID != ws.WorkspaceID {
			return newError(ErrorCodeForbidden, "session belongs to another workspace", nil)
		}
		t.conv = conversation.Restore(conv)
		return nil
	}
	t.conv = conversation.NewConversation(t.req.SessionID, ws.WorkspaceID, t.req.PageContext["url"], t.now)
	return nil
}

func (s *Service) resolveWorkspace(ctx context.Context, req InboundRequest) (model.WorkspaceItem, error) {
	if req.APIKey != "" {
		ws, err := s.workspaces.GetWorkspaceByAPIKey(ctx, req.APIKey)
		if err != nil {
			if errors.Is(err, workspace.ErrNotFound) {
				return model.WorkspaceItem{}, newError(ErrorCodeUnauthorized, "invalid api key", err)
			}
			return model.WorkspaceItem{}, newError(ErrorCodeInternal, "failed to load workspace", err)
		}
		return ws, nil
	}

	id := req.Identity
	if id.WorkspaceID == "" {
		return model.WorkspaceItem{}, newError(ErrorCodeValidation, "agent token has no workspace", nil)
	}
	ws, err := s.workspaces.GetWorkspace(ctx, id.WorkspaceID)
	if err != nil {
		if errors.Is(err, workspace.ErrNotFound) {
			return model.WorkspaceItem{}, newError(ErrorCodeNotFound, "workspace not found", err)
		}
		return model.WorkspaceItem{}, newError(ErrorCodeInternal, "failed to load workspace", err)
	}
	allowed, err := workspace.CanManage(ctx, s.workspaces, ws, id.UserID)
	if err != nil {
		return model.WorkspaceItem{}, newError(ErrorCodeInternal, "failed to check workspace access", err)
	}
	if !allowed && id.Role != model.RoleAdmin {
		return model.WorkspaceItem{}, newError(ErrorCodeForbidden, "not a member of this workspace", nil)
	}
	return ws, nil
}

func (s *Service) recordUserMessage(ctx context.Context, t *turn) error {
	t.user = model.MessageItem{
		SessionID:   t.req.SessionID,
		MessageID:   conversation.NewMessageID(t.now),
		WorkspaceID: t.workspace.WorkspaceID,
		Role:        model.MessageRoleUser,
		Content:     t.message,
		Type:        model.MessageTypeText,
		PageContext: t.req.PageContext,
		CreatedAt:   t.now.Format(time.RFC3339),
	}
	if t.conv == nil {
		return nil
	}

	if err := s.conversations.CreateMessage(ctx, t.user); err != nil {
		return newError(ErrorCodeInternal, "failed to store message", err)
	}
	t.conv.RecordMessage(t.now)

	if err := s.workspaces.IncrementMessageUsage(ctx, t.workspace.WorkspaceID, t.now); err != nil {
		s.log.Warn().Err(err).Str("workspace_id", t.workspace.WorkspaceID).Msg("failed to increment message usage")
	}
	return nil
}

func (s *Service) forwardToHuman(ctx context.Context, t *turn) (InboundResult, error) {
	if err := s.saveConversation(ctx, t); err != nil {
		return InboundResult{}, err
	}

	event := websocket.Event{
		Type:         websocket.EventCustomerMessage,
		SessionID:    t.conv.SessionID(),
		WorkspaceID:  t.conv.WorkspaceID(),
		Conversation: conversationPtr(t.conv),
		Message:      &t.user,
		Timestamp:    t.user.CreatedAt,
	}
	if agent := t.conv.AssignedTo(); agent != "" {
		s.publish(ctx, websocket.AgentRoomID(agent), event)
	}
	s.publish(ctx, websocket.WorkspaceRoomID(t.conv.WorkspaceID()), event)

	countReply(SourceHuman)
	return InboundResult{
		Reply:            s.translator.Text(t.language, i18n.HumanWillRespond, nil),
		UserMessage:      t.user,
		ConversationMode: t.conv.Mode(),
		AwaitingHuman:    true,
		Source:           SourceHuman,
		Conversation:     conversationPtr(t.conv),
	}, nil
}

func (s *Service) ignore(ctx context.Context, t *turn) (InboundResult, error) {
	if err := s.saveConversation(ctx, t); err != nil {
		return InboundResult{}, err
	}
	s.publish(ctx, websocket.WorkspaceRoomID(t.conv.WorkspaceID()), websocket.Event{
		Type:        websocket.EventCustomerMessage,
		SessionID:   t.conv.SessionID(),
		WorkspaceID: t.conv.WorkspaceID(),
		Message:     &t.user,
		Timestamp:   t.user.CreatedAt,
	})

	countReply(SourceIgnored)
	return InboundResult{
		UserMessage:      t.user,
		ConversationMode: t.conv.Mode(),
		Ignored:          true,
		Source:           SourceIgnored,
		Conversation:     conversationPtr(t.conv),
	}, nil
}

func (s *Service) replyFromInterceptor(ctx context.Context, t *turn, reply *interceptor.Reply) (InboundResult, error) {
	msgType := reply.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	msg := s.aiMessage(t, reply.Content)
	msg.Type = msgType
	msg.Provider = model.ProviderSystem
	msg.Model = reply.Model
	msg.StructuredData = reply.Card
	msg.Metadata.Interceptor = reply.Interceptor

	if err := s.finish(ctx, t, &msg); err != nil {
		return InboundResult{}, err
	}

	countReply(SourceInterceptor)
	return s.result(t, &msg, SourceInterceptor), nil
}

func (s *Service) replyFromProvider(ctx context.Context, t *turn) (InboundResult, error) {
	turns, err := s.buildTurns(ctx, t)
	if err != nil {
		return InboundResult{}, err
	}

	if delay := t.policy.DelayFor(t.conv != nil); delay > 0 {
		if err := s.sleep(ctx, delay); err != nil {
			return InboundResult{}, newError(ErrorCodeInternal, "request cancelled", err)
		}
	}

	resp, err := s.callProvider(ctx, t.policy, turns)
	if err != nil {
		return s.providerFailed(ctx, t, err)
	}

	msg := s.aiMessage(t, resp.Content)
	msg.Provider = t.policy.Provider
	msg.Model = resp.Model
	if msg.Model == "" {
		msg.Model = t.policy.Model
	}
	msg.Metadata.ResponseTimeMs = resp.ResponseTimeMs

	if err := s.finish(ctx, t, &msg); err != nil {
		return InboundResult{}, err
	}

	countReply(SourceAI)
	return s.result(t, &msg, SourceAI), nil
}

func (s *Service) callProvider(ctx context.Context, policy plan.Policy, turns []ai.Message) (ai.Response, error) {
	provider, err := s.providers.Get(policy.Provider)
	if err != nil {
		return ai.Response{}, err
	}

	start := time.Now()
	resp, err := provider.Chat(ctx, policy.Model, turns)
	outcome := "ok"
	if err != nil {
		outcome = string(ai.KindOf(err))
	}
	observeProvider(provider.Name(), outcome, time.Since(start).Seconds())
	return resp, err
}

// providerFailed keeps the transcript complete: the customer sees an error
// reply and the caller gets the failure.
func (s *Service) providerFailed(ctx context.Context, t *turn, cause error) (InboundResult, error) {
	s.log.Error().Err(cause).
		Str("session_id", t.req.SessionID).
		Str("provider", t.policy.Provider).
		Str("model", t.policy.Model).
		Msg("provider call failed")

	msg := s.aiMessage(t, s.translator.Text(t.language, i18n.ErrorReply, nil))
	msg.Provider = t.policy.Provider
	msg.Model = t.policy.Model
	msg.Metadata.Error = cause.Error()

	if err := s.finish(ctx, t, &msg); err != nil {
		return InboundResult{}, err
	}

	countReply(SourceError)
	res := s.result(t, &msg, SourceError)
	if ai.KindOf(cause) == ai.ErrorKindConfiguration {
		return res, newError(ErrorCodeConfiguration, "AI provider is not configured", cause)
	}
	return res, newError(ErrorCodeProvider, "AI provider request failed", cause)
}

// buildTurns renders the system prompt followed by the bounded history and
// the current message.
func (s *Service) buildTurns(ctx context.Context, t *turn) ([]ai.Message, error) {
	turns := []ai.Message{{Role: ai.RoleSystem, Content: prompt.SystemPrompt(t.workspace)}}

	if t.conv != nil && t.policy.HistoryDepth > 0 {
		prior, err := s.priorTurns(ctx, t)
		if err != nil {
			return nil, newError(ErrorCodeInternal, "failed to load history", err)
		}
		turns = append(turns, prior...)
	}

	return append(turns, ai.Message{Role: ai.RoleUser, Content: t.message}), nil
}

// priorTurns returns up to HistoryDepth conversational turns before the
// current message. Lifecycle notices do not count toward the depth, so the
// window widens until enough turns are found or the transcript runs out.
func (s *Service) priorTurns(ctx context.Context, t *turn) ([]ai.Message, error) {
	depth := t.policy.HistoryDepth
	limit := depth + 1
	for {
		history, err := s.conversations.ListMessages(ctx, t.req.SessionID, limit)
		if err != nil {
			return nil, err
		}

		prior := make([]ai.Message, 0, len(history))
		for _, m := range history {
			if m.MessageID == t.user.MessageID {
				continue
			}
			switch m.Role {
			case model.MessageRoleUser:
				prior = append(prior, ai.Message{Role: ai.RoleUser, Content: m.Content})
			case model.MessageRoleAI, model.MessageRoleHuman:
				prior = append(prior, ai.Message{Role: ai.RoleAssistant, Content: m.Content})
			}
		}
		if len(prior) >= depth || len(history) < limit || limit >= maxHistoryFetch {
			if len(prior) > depth {
				prior = prior[len(prior)-depth:]
			}
			return prior, nil
		}
		limit *= 2
		if limit > maxHistoryFetch {
			limit = maxHistoryFetch
		}
	}
}

func (s *Service) aiMessage(t *turn, content string) model.MessageItem {
	now := s.now().UTC()
	return model.MessageItem{
		SessionID:   t.req.SessionID,
		MessageID:   conversation.NewMessageID(now),
		WorkspaceID: t.workspace.WorkspaceID,
		Role:        model.MessageRoleAI,
		Content:     content,
		Type:        model.MessageTypeText,
		CreatedAt:   now.Format(time.RFC3339),
	}
}

// finish persists the reply, saves the conversation and notifies listeners.
// Session-less requests skip all three.
func (s *Service) finish(ctx context.Context, t *turn, msg *model.MessageItem) error {
	if t.conv == nil {
		return nil
	}

	if err := s.conversations.CreateMessage(ctx, *msg); err != nil {
		return newError(ErrorCodeInternal, "failed to store reply", err)
	}
	t.conv.RecordMessage(s.now().UTC())
	if err := s.saveConversation(ctx, t); err != nil {
		return err
	}

	for _, m := range []*model.MessageItem{&t.user, msg} {
		event := websocket.Event{
			Type:        websocket.EventMessageCreated,
			SessionID:   t.conv.SessionID(),
			WorkspaceID: t.conv.WorkspaceID(),
			Message:     m,
			Timestamp:   m.CreatedAt,
		}
		s.publish(ctx, websocket.SessionRoomID(t.conv.SessionID()), event)
		s.publish(ctx, websocket.WorkspaceRoomID(t.conv.WorkspaceID()), event)
	}
	return nil
}

// saveConversation writes the whole document; concurrent requests on the
// same session overwrite each other (last writer wins).
func (s *Service) saveConversation(ctx context.Context, t *turn) error {
	if err := s.conversations.PutConversation(ctx, t.conv.Item()); err != nil {
		return newError(ErrorCodeInternal, "failed to save conversation", err)
	}
	return nil
}

func (s *Service) result(t *turn, msg *model.MessageItem, source Source) InboundResult {
	res := InboundResult{
		Reply:       msg.Content,
		UserMessage: t.user,
		AIMessage:   msg,
		Source:      source,
	}
	if t.conv != nil {
		res.ConversationMode = t.conv.Mode()
		res.Conversation = conversationPtr(t.conv)
	}
	return res
}

func (s *Service) publish(ctx context.Context, roomID string, event websocket.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, roomID, event); err != nil {
		s.log.Warn().Err(err).Str("room", roomID).Str("event", string(event.Type)).Msg("failed to publish event")
	}
}

func conversationPtr(c *conversation.Conversation) *model.ConversationItem {
	item := c.Item()
	return &item
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
