package ai

import (
	"context"
	"strings"
	"time"

	"resty.dev/v3"
)

const ProviderAnthropic = "anthropic"

type AnthropicConfig struct {
	BaseURL   string
	APIKey    string
	Version   string
	MaxTokens int
	Timeout   time.Duration
}

// AnthropicProvider calls the Messages API, which carries the system prompt
// in a top-level field instead of the turn list.
type AnthropicProvider struct {
	client    *resty.Client
	apiKey    string
	version   string
	maxTokens int
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Version == "" {
		cfg.Version = "2023-06-01"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &AnthropicProvider{
		client:    newRestyClient(cfg.BaseURL, cfg.Timeout),
		apiKey:    cfg.APIKey,
		version:   cfg.Version,
		maxTokens: cfg.MaxTokens,
	}
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

func (p *AnthropicProvider) Chat(ctx context.Context, model string, turns []Message) (Response, error) {
	if p.apiKey == "" {
		return Response{}, configurationError(ProviderAnthropic, "api key is not configured")
	}
	start := time.Now()

	system, rest := splitSystem(turns)
	rest = dropLeadingAssistant(rest)
	if len(rest) == 0 {
		return Response{}, badResponse(ProviderAnthropic, "no user turn to answer", nil)
	}

	req := anthropicRequest{
		Model:     model,
		MaxTokens: p.maxTokens,
		System:    system,
		Messages:  make([]anthropicMessage, 0, len(rest)),
	}
	for _, t := range rest {
		req.Messages = append(req.Messages, anthropicMessage{Role: string(t.Role), Content: t.Content})
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.version,
	}

	var out anthropicResponse
	if err := postJSON(ctx, p.client, ProviderAnthropic, "/v1/messages", headers, req, &out); err != nil {
		return Response{}, err
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return Response{}, badResponse(ProviderAnthropic, "no text content returned", nil)
	}
	if out.Model == "" {
		out.Model = model
	}

	return Response{Content: content, Model: out.Model, ResponseTimeMs: elapsedMs(start)}, nil
}
