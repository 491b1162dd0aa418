package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"resty.dev/v3"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Response struct {
	Content        string
	Model          string
	ResponseTimeMs int64
}

// Provider is one chat-completion backend. Implementations never retry.
type Provider interface {
	Name() string
	Chat(ctx context.Context, model string, turns []Message) (Response, error)
}

// splitSystem pulls system turns out of the turn list for backends that
// take the system instruction as a separate field.
func splitSystem(turns []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleSystem {
			if s := strings.TrimSpace(t.Content); s != "" {
				system = append(system, s)
			}
			continue
		}
		rest = append(rest, t)
	}
	return strings.Join(system, "\n\n"), rest
}

// dropLeadingAssistant removes assistant turns before the first user turn;
// a truncated history window can start mid-exchange.
func dropLeadingAssistant(turns []Message) []Message {
	for i, t := range turns {
		if t.Role == RoleUser {
			return turns[i:]
		}
	}
	return nil
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
}

// postJSON sends body to path and decodes a 2xx answer into out.
func postJSON(ctx context.Context, client *resty.Client, provider, path string, headers map[string]string, body, out any) error {
	resp, err := client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Post(path)
	if err != nil {
		return transportError(provider, err)
	}
	if resp.IsError() {
		return statusError(provider, resp.StatusCode(), resp.String())
	}

	raw := resp.String()
	if strings.TrimSpace(raw) == "" {
		return badResponse(provider, "empty response body", nil)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return badResponse(provider, "decode response", err)
	}
	return nil
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
