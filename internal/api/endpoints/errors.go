package endpoints

import (
	"chat-widget-backend/internal/service/conversation"
	"chat-widget-backend/internal/service/orchestrator"
	"errors"
	"fmt"
	"net/http"
)

var conversationStatus = map[conversation.ErrorCode]int{
	conversation.ErrorCodeValidation:   http.StatusBadRequest,
	conversation.ErrorCodeUnauthorized: http.StatusUnauthorized,
	conversation.ErrorCodeForbidden:    http.StatusForbidden,
	conversation.ErrorCodeNotFound:     http.StatusNotFound,
	conversation.ErrorCodeConflict:     http.StatusConflict,
	conversation.ErrorCodeInternal:     http.StatusInternalServerError,
}

var orchestratorStatus = map[orchestrator.ErrorCode]int{
	orchestrator.ErrorCodeValidation:    http.StatusBadRequest,
	orchestrator.ErrorCodeUnauthorized:  http.StatusUnauthorized,
	orchestrator.ErrorCodeForbidden:     http.StatusForbidden,
	orchestrator.ErrorCodeNotFound:      http.StatusNotFound,
	orchestrator.ErrorCodeProvider:      http.StatusInternalServerError,
	orchestrator.ErrorCodeConfiguration: http.StatusInternalServerError,
	orchestrator.ErrorCodeInternal:      http.StatusInternalServerError,
}

// serviceError maps service errors onto HTTP responses. Internal causes are
// logged but never shown to the caller.
func serviceError(err error) error {
	if err == nil {
		return nil
	}

	var (
		status  int
		message string
		cause   error
	)

	var convErr *conversation.Error
	var orchErr *orchestrator.Error
	switch {
	case errors.As(err, &convErr):
		status, message, cause = lookupStatus(conversationStatus, convErr.Code), convErr.Message, convErr.Err
	case errors.As(err, &orchErr):
		status, message, cause = lookupStatus(orchestratorStatus, orchErr.Code), orchErr.Message, orchErr.Err
	default:
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("service: %w", err),
		}
	}

	var logErr error
	if cause != nil {
		logErr = fmt.Errorf("%s: %w", message, cause)
	} else {
		logErr = err
	}

	if status == http.StatusInternalServerError && message == "" {
		message = "Internal server error"
	}
	return &HTTPError{StatusCode: status, Message: message, ErrorLog: logErr}
}

func lookupStatus[C comparable](table map[C]int, code C) int {
	if status, ok := table[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
