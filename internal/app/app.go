package app

import (
	"chat-widget-backend/internal/ai"
	"chat-widget-backend/internal/database"
	"chat-widget-backend/internal/env"
	"chat-widget-backend/internal/i18n"
	"chat-widget-backend/internal/interceptor"
	"chat-widget-backend/internal/jwt"
	"chat-widget-backend/internal/plan"
	"chat-widget-backend/internal/queue"
	"chat-widget-backend/internal/service/conversation"
	"chat-widget-backend/internal/service/notification"
	"chat-widget-backend/internal/service/orchestrator"
	"chat-widget-backend/internal/service/workspace"
	"chat-widget-backend/internal/websocket"
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Components holds everything the server binaries share.
type Components struct {
	Config        *env.Config
	Log           zerolog.Logger
	DB            *database.Database
	Redis         *redis.Client
	Queue         *queue.RequestQueueManager
	Tokens        *jwt.Manager
	Workspaces    *workspace.DynamoStore
	Conversations *conversation.DynamoRepository
	Dispatcher    *notification.Dispatcher
	Orchestrator  *orchestrator.Service
	Lifecycle     *conversation.Service
}

func New(ctx context.Context, cfg *env.Config, log zerolog.Logger) (*Components, error) {
	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db init failed: %w", err)
	}

	redisClient := websocket.NewRedisClient(cfg)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, real-time events will be dropped until it recovers")
	}

	publisher := websocket.NewRedisPublisher(redisClient)
	translator := i18n.New()
	workspaces := workspace.NewDynamoStore(db)
	conversations := conversation.NewDynamoRepository(db)
	dispatcher := notification.NewDispatcher(notification.NewDynamoStore(db), log, cfg.NotifyTimeout)

	registry := ai.NewRegistryFromConfig(cfg.Providers)
	log.Info().Strs("providers", registry.Names()).Msg("ai providers registered")

	chain := interceptor.NewChain(log,
		interceptor.NewProductMatch(translator),
		interceptor.NewPaymentIntent(translator, dispatcher),
	)

	orch := orchestrator.New(orchestrator.Dependencies{
		Conversations:    conversations,
		Workspaces:       workspaces,
		Providers:        registry,
		Resolver:         plan.NewResolver(cfg.Tiers),
		Chain:            chain,
		Publisher:        publisher,
		Translator:       translator,
		MaxMessageLength: cfg.MaxMessageLength,
		Log:              log,
	})

	lifecycle := conversation.NewWithRepository(conversations, workspaces, publisher, translator, log, nil)

	return &Components{
		Config:        cfg,
		Log:           log,
		DB:            db,
		Redis:         redisClient,
		Queue:         queue.NewRequestQueueManager(cfg.QueueSize, cfg.QueueWorkers, log),
		Tokens:        jwt.NewManager(cfg.UserSecretKey, cfg.TokenTTL),
		Workspaces:    workspaces,
		Conversations: conversations,
		Dispatcher:    dispatcher,
		Orchestrator:  orch,
		Lifecycle:     lifecycle,
	}, nil
}

// Close drains queued requests and pending notifications.
func (c *Components) Close() {
	c.Queue.Shutdown()
	c.Dispatcher.Wait()
	if err := c.Redis.Close(); err != nil {
		c.Log.Warn().Err(err).Msg("close redis")
	}
}
