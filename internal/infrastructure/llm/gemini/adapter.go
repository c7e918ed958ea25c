package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
)

var _ output.GenerationPort = (*GeminiAdapter)(nil)

// GeminiAdapter calls generateContent on the Gemini API with a system instruction and one user
// message.
type GeminiAdapter struct {
	cfg Config

	mu      sync.Mutex
	clients map[string]*genai.Client
}

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey: apiKey,
		Model:  model,
	}
}

func NewGeminiAdapter(cfg Config) *GeminiAdapter {
	return &GeminiAdapter{
		cfg:     cfg,
		clients: make(map[string]*genai.Client),
	}
}

func (a *GeminiAdapter) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		apiKey = a.cfg.APIKey
	}
	if apiKey == "" {
		return nil, entity.ErrMissingAPIKey
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[apiKey]; ok {
		return c, nil
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: a.cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: a.cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	a.clients[apiKey] = c
	return c, nil
}

func (a *GeminiAdapter) Generate(ctx context.Context, req output.GenerationRequest) (string, error) {
	client, err := a.client(ctx, req.APIKey)
	if err != nil {
		return "", err
	}

	model := req.Model
	if model == "" {
		model = a.cfg.Model
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	if a.cfg.Logger != nil {
		a.cfg.Logger.Debug("Generating content",
			"model", model,
			"systemLen", len(req.SystemPrompt),
			"userLen", len(req.UserPrompt))
	}

	resp, err := client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		return "", convertError(err)
	}

	return responseText(resp)
}

// responseText joins the text parts of the first candidate, skipping thought summaries.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", entity.ErrNoCandidates
	}

	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", entity.ErrEmptyContent
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", entity.ErrEmptyContent
	}
	return sb.String(), nil
}

func convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &entity.GenerationError{StatusCode: apiErr.Code, Body: strings.TrimSpace(apiErr.Message)}
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &entity.GenerationError{StatusCode: apiErrPtr.Code, Body: strings.TrimSpace(apiErrPtr.Message)}
	}

	return fmt.Errorf("generate content failed: %w", err)
}
