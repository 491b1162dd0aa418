package websocket

import (
	"chat-widget-backend/internal/jwt"
	"chat-widget-backend/internal/model"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WorkspaceLookup resolves a widget API key to its workspace.
type WorkspaceLookup interface {
	GetWorkspaceByAPIKey(ctx context.Context, apiKey string) (model.WorkspaceItem, error)
}

// SessionLookup loads the conversation a widget wants to follow.
type SessionLookup interface {
	GetConversation(ctx context.Context, sessionID string) (model.ConversationItem, error)
}

type Handler struct {
	hub         *Hub
	redisClient *redis.Client
	upgrader    websocket.Upgrader
	workspaces  WorkspaceLookup
	sessions    SessionLookup
	tokens      *jwt.Manager
	log         zerolog.Logger
}

func NewHandler(h *Hub, redisClient *redis.Client, workspaces WorkspaceLookup, sessions SessionLookup, tokens *jwt.Manager, allowedOrigins []string, log zerolog.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimSpace(o)] = true
	}

	return &Handler{
		hub:         h,
		redisClient: redisClient,
		workspaces:  workspaces,
		sessions:    sessions,
		tokens:      tokens,
		log:         log.With().Str("component", "websocket").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Widgets are embedded on arbitrary storefronts.
				if strings.HasPrefix(r.URL.Path, "/api/ws/v1/sessions/") {
					return true
				}
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

func (h *Handler) subscribeToRoomChannel(roomID string) {
	h.log.Debug().Str("room", roomID).Msg("subscribing to redis channel")
	subscriber := h.redisClient.Subscribe(context.Background(), roomID)
	defer subscriber.Close()

	for msg := range subscriber.Channel() {
		h.hub.Broadcast <- &WSMessage{
			Content:   msg.Payload,
			RoomID:    roomID,
			Timestamp: time.Now().Unix(),
		}
	}
	h.log.Debug().Str("room", roomID).Msg("unsubscribed from redis channel")
}

func (h *Handler) CreateRoom(id string) {
	if h.hub.ensureRoom(id) {
		go h.subscribeToRoomChannel(id)
	}
}

func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request, roomID, clientID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Msg("websocket upgrade failed")
		return
	}

	cl := &WSClient{
		Conn:    conn,
		Message: make(chan *WSMessage, 10),
		ID:      clientID,
		RoomID:  roomID,
		done:    make(chan struct{}),
		log:     h.log,
	}

	h.hub.Register <- cl

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
}

// ServeSession streams events of one widget session.
// GET /api/ws/v1/sessions/{sessionId}?apiKey=...
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("sessionId"))
	apiKey := strings.TrimSpace(r.URL.Query().Get("apiKey"))
	if sessionID == "" || apiKey == "" {
		http.Error(w, "sessionId and apiKey are required", http.StatusBadRequest)
		return
	}

	ws, err := h.workspaces.GetWorkspaceByAPIKey(r.Context(), apiKey)
	if err != nil {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	conv, err := h.sessions.GetConversation(r.Context(), sessionID)
	switch {
	case err == nil && conv.WorkspaceID != ws.WorkspaceID:
		http.Error(w, "session does not belong to workspace", http.StatusForbidden)
		return
	case err != nil && !isNotFound(err):
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("load conversation for websocket")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	roomID := SessionRoomID(sessionID)
	h.CreateRoom(roomID)
	h.JoinRoom(w, r, roomID, uuid.NewString())
}

// ServeAgent streams events for a dashboard user. scope=workspace joins the
// workspace notification room, anything else the agent's own room.
// GET /api/ws/v1/agents?token=...&scope=workspace
func (h *Handler) ServeAgent(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.ParseToken(strings.TrimSpace(r.URL.Query().Get("token")))
	if err != nil || claims.UserID == "" || claims.WorkspaceID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	roomID := AgentRoomID(claims.UserID)
	if r.URL.Query().Get("scope") == "workspace" {
		roomID = WorkspaceRoomID(claims.WorkspaceID)
	}
	h.CreateRoom(roomID)
	h.JoinRoom(w, r, roomID, claims.UserID+":"+uuid.NewString())
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.hub.snapshot())
}

var ErrSessionNotFound = errors.New("websocket: session not found")

func isNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
