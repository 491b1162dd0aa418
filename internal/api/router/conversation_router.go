package router

import (
	"chat-widget-backend/internal/api"
	"chat-widget-backend/internal/api/endpoints"
	"chat-widget-backend/internal/api/middleware"
	"chat-widget-backend/internal/websocket"
	"net/http"
)

func ConversationAgentRoutes(prefix string, service endpoints.ConversationService) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		convEndpoints := endpoints.NewConversationEndpoints(service)
		auth := middleware.RequireAgent(s.Tokens())

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(endpoints.Methods(methods{
			http.MethodGet: convEndpoints.List,
		}), auth))
		mux.HandleFunc(prefix+"/conversations/stats", s.MakeHTTPHandleFunc(endpoints.Methods(methods{
			http.MethodGet: convEndpoints.Stats,
		}), auth))

		actions := map[string]func(http.ResponseWriter, *http.Request) error{
			"takeover": convEndpoints.Takeover,
			"release":  convEndpoints.EndHumanSession,
			"messages": convEndpoints.SendMessage,
			"resolve":  convEndpoints.Resolve,
			"notes":    convEndpoints.AddNote,
		}
		for action, handler := range actions {
			mux.HandleFunc(prefix+"/conversations/{sessionId}/"+action, s.MakeHTTPHandleFunc(endpoints.Methods(methods{
				http.MethodPost: handler,
			}), auth))
		}
	}
}

func ConversationWebsocketRoutes(prefix string, handler *websocket.Handler) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		mux.HandleFunc("GET "+prefix+"/sessions/{sessionId}", s.MakeStreamHandleFunc(handler.ServeSession))
		mux.HandleFunc("GET "+prefix+"/agents", s.MakeStreamHandleFunc(handler.ServeAgent))
		mux.HandleFunc(prefix+"/rooms", s.MakeHTTPHandleFunc(func(w http.ResponseWriter, r *http.Request) error {
			handler.GetRooms(w, r)
			return nil
		}, middleware.RequireAgent(s.Tokens())))
	}
}
