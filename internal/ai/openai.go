package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const ProviderOpenAI = "openai"

type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider returns a provider that fails every call with a
// configuration error when apiKey is empty.
func NewOpenAIProvider(baseURL, apiKey string, timeout time.Duration) *OpenAIProvider {
	if apiKey == "" {
		return &OpenAIProvider{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

func (p *OpenAIProvider) Chat(ctx context.Context, model string, turns []Message) (Response, error) {
	if p.client == nil {
		return Response{}, configurationError(ProviderOpenAI, "api key is not configured")
	}
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(turns)),
	}
	for _, t := range turns {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, badResponse(ProviderOpenAI, "no choices returned", nil)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Response{}, badResponse(ProviderOpenAI, "empty message content", nil)
	}
	if resp.Model == "" {
		resp.Model = model
	}

	return Response{Content: content, Model: resp.Model, ResponseTimeMs: elapsedMs(start)}, nil
}

func openAIError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := statusError(ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message)
		e.Err = err
		return e
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := statusError(ProviderOpenAI, reqErr.HTTPStatusCode, string(reqErr.Body))
		e.Err = err
		return e
	}
	return transportError(ProviderOpenAI, err)
}
