package ai

import (
	"chat-widget-backend/internal/env"
	"sort"
	"strings"
	"sync"
)

type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// NewRegistryFromConfig wires every built-in backend.
func NewRegistryFromConfig(cfg env.ProviderConfig) *Registry {
	return NewRegistry(
		NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaTimeout),
		NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAITimeout),
		NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiTimeout),
		NewAnthropicProvider(AnthropicConfig{
			BaseURL:   cfg.AnthropicBaseURL,
			APIKey:    cfg.AnthropicAPIKey,
			Version:   cfg.AnthropicVersion,
			MaxTokens: cfg.AnthropicMaxTokens,
			Timeout:   cfg.AnthropicTimeout,
		}),
	)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalizeName(p.Name())] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[normalizeName(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, configurationError(name, "unknown provider")
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
