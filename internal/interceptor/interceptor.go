package interceptor

import (
	"chat-widget-backend/internal/model"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

type Input struct {
	Workspace model.WorkspaceItem
	SessionID string
	Message   string
	Language  string
}

// Reply is a deterministic answer that replaces the provider call.
type Reply struct {
	Interceptor string
	Content     string
	Type        model.MessageType
	Model       string
	Card        *model.ProductCard
}

// Interceptor returns a nil reply when it does not apply to the input.
type Interceptor interface {
	Name() string
	Intercept(ctx context.Context, in Input) (*Reply, error)
}

type Chain struct {
	interceptors []Interceptor
	log          zerolog.Logger
}

func NewChain(log zerolog.Logger, interceptors ...Interceptor) *Chain {
	return &Chain{
		interceptors: interceptors,
		log:          log.With().Str("component", "interceptor").Logger(),
	}
}

// Run returns the first reply produced, in registration order. Failing
// interceptors are logged and skipped.
func (c *Chain) Run(ctx context.Context, in Input) *Reply {
	for _, i := range c.interceptors {
		reply, err := c.try(ctx, i, in)
		if err != nil {
			c.log.Warn().Err(err).Str("interceptor", i.Name()).Str("session_id", in.SessionID).Msg("interceptor failed, falling through")
			continue
		}
		if reply != nil {
			reply.Interceptor = i.Name()
			return reply
		}
	}
	return nil
}

func (c *Chain) try(ctx context.Context, i Interceptor, in Input) (reply *Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return i.Intercept(ctx, in)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
