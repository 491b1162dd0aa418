package router

import (
	"chat-widget-backend/internal/api"
	"chat-widget-backend/internal/api/endpoints"
	"chat-widget-backend/internal/api/middleware"
	"net/http"
)

type methods = map[string]func(http.ResponseWriter, *http.Request) error

// WidgetPublicRoutes serves the embeddable widget, authenticated by api key.
func WidgetPublicRoutes(prefix string, orchestrator endpoints.Orchestrator) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		widgetEndpoints := endpoints.NewWidgetEndpoints(orchestrator)

		mux.HandleFunc(prefix+"/chat/sessions", s.MakeHTTPHandleFunc(endpoints.Methods(methods{
			http.MethodPost: widgetEndpoints.CreateSession,
		})))
		mux.HandleFunc(prefix+"/chat/messages", s.MakeDirectHandleFunc(endpoints.Methods(methods{
			http.MethodPost: widgetEndpoints.PostMessage,
		})))
		mux.HandleFunc(prefix+"/chat/sessions/{sessionId}/messages", s.MakeHTTPHandleFunc(endpoints.Methods(methods{
			http.MethodGet:    widgetEndpoints.History,
			http.MethodDelete: widgetEndpoints.ClearHistory,
		})))
	}
}

// WidgetPreviewRoutes lets dashboard users try the bot with their agent token.
func WidgetPreviewRoutes(prefix string, orchestrator endpoints.Orchestrator) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		widgetEndpoints := endpoints.NewWidgetEndpoints(orchestrator)

		mux.HandleFunc(prefix+"/chat/preview", s.MakeDirectHandleFunc(endpoints.Methods(methods{
			http.MethodPost: widgetEndpoints.PostMessage,
		}), middleware.RequireAgent(s.Tokens())))
	}
}
