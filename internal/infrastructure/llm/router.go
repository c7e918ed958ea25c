package llm

import (
	"context"
	"fmt"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
	"turn-annotator/internal/infrastructure/llm/gemini"
	"turn-annotator/internal/infrastructure/llm/ollama"
	"turn-annotator/internal/infrastructure/llm/openrouter"
)

var _ output.GenerationPort = (*Router)(nil)

// Router sends each request to the adapter of the provider currently selected in settings, so a
// settings reload can switch providers without a restart.
type Router struct {
	settings output.SettingsSource
	adapters map[entity.Provider]output.GenerationPort
}

func NewRouter(settings output.SettingsSource, adapters map[entity.Provider]output.GenerationPort) *Router {
	return &Router{settings: settings, adapters: adapters}
}

func (r *Router) Generate(ctx context.Context, req output.GenerationRequest) (string, error) {
	provider := r.settings.Settings().Provider
	if provider == "" {
		provider = entity.ProviderGemini
	}

	adapter, ok := r.adapters[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", entity.ErrUnknownProvider, provider)
	}
	return adapter.Generate(ctx, req)
}

// Config holds per-provider endpoints. Empty URLs use each provider's default.
type Config struct {
	GeminiBaseURL     string
	OpenRouterBaseURL string
	OllamaBaseURL     string
	Logger            output.LoggerPort
}

// NewDefaultRouter builds a router over every supported provider.
func NewDefaultRouter(settings output.SettingsSource, cfg Config) (*Router, error) {
	current := settings.Settings()

	geminiCfg := gemini.DefaultConfig(current.APIKey, current.Model)
	geminiCfg.BaseURL = cfg.GeminiBaseURL
	geminiCfg.Logger = cfg.Logger

	openrouterCfg := openrouter.DefaultConfig(current.APIKey, current.Model)
	if cfg.OpenRouterBaseURL != "" {
		openrouterCfg.BaseURL = cfg.OpenRouterBaseURL
	}
	openrouterCfg.Logger = cfg.Logger

	ollamaCfg := ollama.DefaultConfig(current.Model)
	if cfg.OllamaBaseURL != "" {
		ollamaCfg.BaseURL = cfg.OllamaBaseURL
	}
	ollamaCfg.Logger = cfg.Logger

	ollamaAdapter, err := ollama.NewOllamaAdapter(ollamaCfg)
	if err != nil {
		return nil, err
	}

	return NewRouter(settings, map[entity.Provider]output.GenerationPort{
		entity.ProviderGemini:     gemini.NewGeminiAdapter(geminiCfg),
		entity.ProviderOpenRouter: openrouter.NewOpenRouterAdapter(openrouterCfg),
		entity.ProviderOllama:     ollamaAdapter,
	}), nil
}
