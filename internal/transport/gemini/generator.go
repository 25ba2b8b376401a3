// Package gemini generates grounded answers via the Vertex AI Gemini API
// with a RAG retrieval tool attached.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// Config holds Gemini generator settings.
type Config struct {
	Project     string
	Location    string
	RAGCorpus   string
	Model       string
	Temperature float32
	TopK        int
}

// Generator implements domain.Generator using the genai SDK with the
// Vertex AI backend. Each request carries a retrieval tool bound to the
// configured RAG corpus, so the model reports grounding metadata.
type Generator struct {
	client *genai.Client
	cfg    Config
}

// New creates a Gemini generator.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.Project == "" || cfg.RAGCorpus == "" {
		return nil, fmt.Errorf("%w: vertex project and rag corpus are required", domain.ErrNotConfigured)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Generator{client: client, cfg: cfg}, nil
}

// Generate produces an answer for the prompt and extracts whatever
// grounding metadata the model reports.
func (g *Generator) Generate(ctx context.Context, prompt string) (domain.GenerationResult, error) {
	resp, err := g.client.Models.GenerateContent(ctx,
		g.cfg.Model,
		[]*genai.Content{
			{Parts: []*genai.Part{{Text: prompt}}, Role: "user"},
		},
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr(g.cfg.Temperature),
			Tools:       []*genai.Tool{g.retrievalTool()},
		},
	)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("%w: %w", domain.ErrGenerationProvider, err)
	}

	return ExtractGrounding(resp), nil
}

// HealthCheck verifies the client is usable. The genai SDK validates
// credentials at construction, so a constructed client is considered live.
func (g *Generator) HealthCheck(_ context.Context) error {
	if g.client == nil {
		return domain.ErrNotConfigured
	}
	return nil
}

func (g *Generator) retrievalTool() *genai.Tool {
	return &genai.Tool{
		Retrieval: &genai.Retrieval{
			VertexRAGStore: &genai.VertexRAGStore{
				RAGResources: []*genai.VertexRAGStoreRAGResource{
					{RAGCorpus: g.cfg.RAGCorpus},
				},
				RAGRetrievalConfig: &genai.RAGRetrievalConfig{
					TopK: genai.Ptr(int32(g.cfg.TopK)),
				},
			},
		},
	}
}
