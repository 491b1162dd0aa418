package main

import (
	"chat-widget-backend/internal/api"
	"chat-widget-backend/internal/api/router"
	"chat-widget-backend/internal/app"
	"chat-widget-backend/internal/env"
	"chat-widget-backend/internal/logger"
	"chat-widget-backend/internal/model"
	"chat-widget-backend/internal/service/conversation"
	"chat-widget-backend/internal/websocket"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// sessions maps the repository's not-found error onto the one the websocket
// handler understands.
type sessions struct {
	repo conversation.Repository
}

func (s sessions) GetConversation(ctx context.Context, sessionID string) (model.ConversationItem, error) {
	item, err := s.repo.GetConversation(ctx, sessionID)
	if errors.Is(err, conversation.ErrNotFound) {
		return model.ConversationItem{}, websocket.ErrSessionNotFound
	}
	return item, err
}

func main() {
	cfg := env.MustLoad()
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "ws-server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer c.Close()

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub, c.Redis, c.Workspaces, sessions{repo: c.Conversations}, c.Tokens, cfg.AllowedOrigins, log)

	server := api.NewAPIServer(
		api.Options{
			ListenAddr:     cfg.WSAddr,
			Queue:          c.Queue,
			Log:            log,
			AllowedOrigins: cfg.AllowedOrigins,
			Tokens:         c.Tokens,
		},
		router.UtilsRoutes("/api/ws/v1"),
		router.ConversationWebsocketRoutes("/api/ws/v1", handler),
	)

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
