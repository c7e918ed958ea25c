package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
)

var _ output.GenerationPort = (*OpenRouterAdapter)(nil)

// OpenRouterAdapter talks to any OpenAI-compatible chat completion endpoint.
type OpenRouterAdapter struct {
	cfg    Config
	logger output.LoggerPort

	mu      sync.Mutex
	clients map[string]*openai.Client
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://openrouter.ai/api/v1",
	}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.String(),
		"contentLength", req.ContentLength,
	)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("HTTP Request failed", "url", req.URL.String(), "error", err)
		return nil, err
	}

	t.logger.Debug("HTTP Response",
		"status", resp.Status,
		"statusCode", resp.StatusCode,
	)
	return resp, nil
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	return &OpenRouterAdapter{
		cfg:     cfg,
		logger:  cfg.Logger,
		clients: make(map[string]*openai.Client),
	}
}

// client returns a client bound to apiKey. Keys come from settings that may change between calls.
func (a *OpenRouterAdapter) client(apiKey string) *openai.Client {
	if apiKey == "" {
		apiKey = a.cfg.APIKey
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[apiKey]; ok {
		return c
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = a.cfg.BaseURL
	if a.logger != nil {
		config.HTTPClient = &http.Client{
			Transport: &loggingTransport{
				base:   http.DefaultTransport,
				logger: a.logger,
			},
		}
	}

	c := openai.NewClientWithConfig(config)
	a.clients[apiKey] = c
	return c
}

func (a *OpenRouterAdapter) Generate(ctx context.Context, req output.GenerationRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = a.cfg.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	resp, err := a.client(req.APIKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", convertError(err)
	}

	if len(resp.Choices) == 0 {
		return "", entity.ErrNoCandidates
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", entity.ErrEmptyContent
	}
	return text, nil
}

// convertError maps HTTP failures to *entity.GenerationError and wraps everything else.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &entity.GenerationError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &entity.GenerationError{StatusCode: reqErr.HTTPStatusCode, Body: body}
	}

	return fmt.Errorf("chat completion failed: %w", err)
}
