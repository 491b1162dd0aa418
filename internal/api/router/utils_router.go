package router

import (
	"chat-widget-backend/internal/api"
	"chat-widget-backend/internal/api/endpoints"
	"net/http"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints()
		mux.HandleFunc(prefix+"/health", s.MakeHTTPHandleFunc(endpoints.Methods(map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: utilsEndpoints.Health,
		})))
	}
}
