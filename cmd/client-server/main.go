package main

import (
	"chat-widget-backend/internal/api"
	"chat-widget-backend/internal/api/router"
	"chat-widget-backend/internal/app"
	"chat-widget-backend/internal/env"
	"chat-widget-backend/internal/logger"
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg := env.MustLoad()
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "client-server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer c.Close()

	server := api.NewAPIServer(
		api.Options{
			ListenAddr:     cfg.ClientAddr,
			Queue:          c.Queue,
			Log:            log,
			AllowedOrigins: cfg.AllowedOrigins,
			Tokens:         c.Tokens,
		},
		router.UtilsRoutes("/api/client/v1"),
		router.ConversationAgentRoutes("/api/client/v1", c.Lifecycle),
		router.WidgetPreviewRoutes("/api/client/v1", c.Orchestrator),
	)

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
