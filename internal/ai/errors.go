package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	ErrorKindAuth          ErrorKind = "provider_auth"
	ErrorKindTimeout       ErrorKind = "provider_timeout"
	ErrorKindBadResponse   ErrorKind = "provider_bad_response"
	ErrorKindUnavailable   ErrorKind = "provider_unavailable"
	ErrorKindConfiguration ErrorKind = "configuration"
)

type Error struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a provider error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}
	return ""
}

func configurationError(provider, message string) *Error {
	return &Error{Provider: provider, Kind: ErrorKindConfiguration, Message: message}
}

func badResponse(provider, message string, err error) *Error {
	return &Error{Provider: provider, Kind: ErrorKindBadResponse, Message: message, Err: err}
}

const maxErrorBody = 4 << 10

func statusError(provider string, status int, body string) *Error {
	body = strings.TrimSpace(body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if body == "" {
		body = http.StatusText(status)
	}

	kind := ErrorKindBadResponse
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrorKindAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = ErrorKindTimeout
	case status == http.StatusTooManyRequests || status >= 500:
		kind = ErrorKindUnavailable
	}
	return &Error{Provider: provider, Kind: kind, StatusCode: status, Message: body}
}

func transportError(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: provider, Kind: ErrorKindTimeout, Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Provider: provider, Kind: ErrorKindTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Provider: provider, Kind: ErrorKindUnavailable, Message: "request failed", Err: err}
}
