package api

import (
	"chat-widget-backend/internal/api/middleware"
	"chat-widget-backend/internal/queue"
	"encoding/json"
	"errors"
	"net/http"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (s *APIServer) corsConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "OPTIONS", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With", "Authorization", "X-API-Key"},
		AllowCredentials: true,
	}
}

// MakeHTTPHandleFunc runs f on the request queue. Returned errors become JSON
// error responses.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		}

		s.requestQueueManager.EnqueueJob(job)

		if err := <-errc; err != nil {
			s.writeError(w, r, err)
		}
	}

	return s.wrap(baseHandler, authMiddleware...)
}

// MakeDirectHandleFunc runs f on the request goroutine. Use it for handlers
// that wait on slow upstreams, so one session's provider call never holds a
// queue worker another session needs.
func (s *APIServer) MakeDirectHandleFunc(f apiFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}

	return s.wrap(baseHandler, authMiddleware...)
}

func (s *APIServer) wrap(h http.HandlerFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	handler := middleware.Chain(h, authMiddleware...)

	return middleware.Chain(handler,
		middleware.Logging(s.log),
		middleware.CORS(s.corsConfig()),
	)
}

// MakeStreamHandleFunc is for long-lived connections such as websockets,
// which must not hold a queue worker.
func (s *APIServer) MakeStreamHandleFunc(f http.HandlerFunc) http.HandlerFunc {
	return middleware.Chain(f, middleware.Logging(s.log))
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		WriteJSON(w, http.StatusInternalServerError, ApiError{Error: "Internal server error"})
		return
	}

	if httpErr.ErrorLog != nil {
		event := s.log.Warn()
		if httpErr.StatusCode >= http.StatusInternalServerError {
			event = s.log.Error()
		}
		event.Err(httpErr.ErrorLog).Int("status", httpErr.StatusCode).Str("path", r.URL.Path).Msg(httpErr.Message)
	}

	if httpErr.Body != nil {
		WriteJSON(w, httpErr.StatusCode, httpErr.Body)
		return
	}
	WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
}
