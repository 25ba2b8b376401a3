// Package openai generates answers via an OpenAI-compatible chat API.
// It carries no retrieval tool, so answers come back without grounding
// metadata; citation reconciliation degrades to the sources block only.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// Generator is an answer provider using the OpenAI-compatible chat API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// Config holds the generation provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generation provider.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Generate implements domain.Generator via a single chat completion.
func (g *Generator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.GenerationResult{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return domain.GenerationResult{}, fmt.Errorf("empty completion response: %w", domain.ErrGenerationProvider)
	}

	return domain.GenerationResult{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrGenerationProvider for correct status mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrGenerationProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("generation API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("generation API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("generation API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("generation request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
