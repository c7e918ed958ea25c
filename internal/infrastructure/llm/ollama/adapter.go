package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
)

const maxErrorBody = 4096

var _ output.GenerationPort = (*OllamaAdapter)(nil)

// OllamaAdapter generates with a local Ollama server. The API key in requests is ignored.
type OllamaAdapter struct {
	llm    *ollama.LLM
	model  string
	logger output.LoggerPort
}

type Config struct {
	Model   string
	BaseURL string
	Logger  output.LoggerPort
}

func DefaultConfig(model string) Config {
	return Config{
		Model:   model,
		BaseURL: "http://localhost:11434",
	}
}

// statusTransport turns non-2xx answers into *entity.GenerationError. The ollama client only
// surfaces the error text, not the status code.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &entity.GenerationError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func NewOllamaAdapter(cfg Config) (*OllamaAdapter, error) {
	httpClient := &http.Client{
		Transport: &statusTransport{base: http.DefaultTransport},
	}

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &OllamaAdapter{
		llm:    llm,
		model:  cfg.Model,
		logger: cfg.Logger,
	}, nil
}

func (a *OllamaAdapter) Generate(ctx context.Context, req output.GenerationRequest) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.UserPrompt))

	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}

	if a.logger != nil {
		a.logger.Debug("Generating with ollama", "model", req.Model, "messages", len(messages))
	}

	resp, err := a.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", entity.ErrNoCandidates
	}

	var sb strings.Builder
	for _, choice := range resp.Choices {
		sb.WriteString(choice.Content)
	}
	if sb.Len() == 0 {
		return "", entity.ErrEmptyContent
	}
	return sb.String(), nil
}
