package ai

import (
	"context"
	"strings"
	"time"

	"resty.dev/v3"
)

const ProviderOllama = "ollama"

// OllamaProvider talks to a local inference server. It needs no credentials.
type OllamaProvider struct {
	client *resty.Client
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaChatResp struct {
	Model   string    `json:"model"`
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func NewOllamaProvider(baseURL string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaProvider{client: newRestyClient(baseURL, timeout)}
}

func (p *OllamaProvider) Name() string { return ProviderOllama }

func (p *OllamaProvider) Chat(ctx context.Context, model string, turns []Message) (Response, error) {
	start := time.Now()

	req := ollamaChatReq{Model: model, Stream: false, Messages: make([]ollamaMsg, 0, len(turns))}
	for _, t := range turns {
		req.Messages = append(req.Messages, ollamaMsg{Role: string(t.Role), Content: t.Content})
	}

	var out ollamaChatResp
	if err := postJSON(ctx, p.client, ProviderOllama, "/api/chat", nil, req, &out); err != nil {
		return Response{}, err
	}
	if out.Error != "" {
		return Response{}, badResponse(ProviderOllama, out.Error, nil)
	}
	content := strings.TrimSpace(out.Message.Content)
	if content == "" {
		return Response{}, badResponse(ProviderOllama, "empty message content", nil)
	}
	if out.Model == "" {
		out.Model = model
	}

	return Response{Content: content, Model: out.Model, ResponseTimeMs: elapsedMs(start)}, nil
}
