package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"resty.dev/v3"
)

const ProviderGemini = "gemini"

// GeminiProvider calls the generateContent API. Gemini names the assistant
// role "model" and takes system text as a separate systemInstruction.
type GeminiProvider struct {
	client *resty.Client
	apiKey string
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

func NewGeminiProvider(baseURL, apiKey string, timeout time.Duration) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &GeminiProvider{client: newRestyClient(baseURL, timeout), apiKey: apiKey}
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func geminiRole(r Role) string {
	if r == RoleAssistant {
		return "model"
	}
	return string(r)
}

func (p *GeminiProvider) Chat(ctx context.Context, model string, turns []Message) (Response, error) {
	if p.apiKey == "" {
		return Response{}, configurationError(ProviderGemini, "api key is not configured")
	}
	start := time.Now()

	system, rest := splitSystem(turns)
	rest = dropLeadingAssistant(rest)
	if len(rest) == 0 {
		return Response{}, badResponse(ProviderGemini, "no user turn to answer", nil)
	}

	req := geminiRequest{
		Contents:         make([]geminiContent, 0, len(rest)),
		GenerationConfig: geminiGenerationConfig{Temperature: 0.7},
	}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, t := range rest {
		req.Contents = append(req.Contents, geminiContent{
			Role:  geminiRole(t.Role),
			Parts: []geminiPart{{Text: t.Content}},
		})
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", url.PathEscape(model))
	headers := map[string]string{"x-goog-api-key": p.apiKey}

	var out geminiResponse
	if err := postJSON(ctx, p.client, ProviderGemini, path, headers, req, &out); err != nil {
		return Response{}, err
	}
	if len(out.Candidates) == 0 {
		return Response{}, badResponse(ProviderGemini, "no candidates returned", nil)
	}

	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return Response{}, badResponse(ProviderGemini, "empty candidate content", nil)
	}

	modelName := out.ModelVersion
	if modelName == "" {
		modelName = model
	}
	return Response{Content: content, Model: modelName, ResponseTimeMs: elapsedMs(start)}, nil
}
