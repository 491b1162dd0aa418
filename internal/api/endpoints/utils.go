package endpoints

import (
	"chat-widget-backend/internal/api"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

type HTTPError = api.HTTPError

const maxBodyBytes = 1 << 20

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &HTTPError{StatusCode: http.StatusBadRequest, Message: "Request body is required.", ErrorLog: err}
		}
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: "Invalid request body.", ErrorLog: err}
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("%s must be a non-negative integer", name),
			ErrorLog:   fmt.Errorf("parse %s=%q", name, raw),
		}
	}
	return n, nil
}

// apiKeyFromRequest reads the widget key from the X-API-Key header, then the
// apiKey query parameter.
func apiKeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	return strings.TrimSpace(r.URL.Query().Get("apiKey"))
}

func statusError(status int, message string, logErr error) *HTTPError {
	if logErr == nil {
		logErr = errors.New(message)
	}
	return &HTTPError{StatusCode: status, Message: message, ErrorLog: logErr}
}

type handlerFunc = func(http.ResponseWriter, *http.Request) error

func MethodHandler(w http.ResponseWriter, r *http.Request, allowed map[string]handlerFunc) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path),
	}
}

// Methods binds a method table into a single handler for one path.
func Methods(allowed map[string]handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		return MethodHandler(w, r, allowed)
	}
}
