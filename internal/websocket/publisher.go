package websocket

import (
	"chat-widget-backend/internal/env"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

func NewRedisClient(cfg *env.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.ChatRedisURL,
		Password: cfg.ChatRedisPass,
		DB:       0,
	})
}

// RedisPublisher fans events out to every ws-server instance through
// redis pub/sub, one channel per room.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID string, payload interface{}) error {
	if roomID == "" {
		return fmt.Errorf("websocket publish: roomID required")
	}
	if p.client == nil {
		return fmt.Errorf("websocket publish: redis client not initialised")
	}

	messageJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal payload: %w", err)
	}

	if err := p.client.Publish(ctx, roomID, string(messageJSON)).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}
