// Package vertexrag retrieves source snippets from a Vertex AI RAG corpus.
package vertexrag

import (
	"context"
	"fmt"
	"strconv"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	aiplatformpb "cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/citation"
	"github.com/kailas-cloud/citegate/internal/domain"
	"github.com/kailas-cloud/citegate/internal/metrics"
)

// Retriever implements usecase/chat.ContextRetriever against the
// Vertex AI RAG Engine retrieval API.
type Retriever struct {
	client    *aiplatform.VertexRagClient
	project   string
	location  string
	ragCorpus string
	logger    *zap.Logger
}

// New creates a Vertex RAG retriever.
func New(ctx context.Context, project, location, ragCorpus string, logger *zap.Logger) (*Retriever, error) {
	endpoint := fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)
	client, err := aiplatform.NewVertexRagClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("create vertex rag client: %w", err)
	}
	return &Retriever{
		client:    client,
		project:   project,
		location:  location,
		ragCorpus: ragCorpus,
		logger:    logger,
	}, nil
}

// Retrieve queries the corpus and normalizes results into RetrievedContext
// records, preserving the service's native relevance order.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, topK int,
) ([]domain.RetrievedContext, error) {
	parent := fmt.Sprintf("projects/%s/locations/%s", r.project, r.location)

	req := &aiplatformpb.RetrieveContextsRequest{
		Parent: parent,
		DataSource: &aiplatformpb.RetrieveContextsRequest_VertexRagStore_{
			VertexRagStore: &aiplatformpb.RetrieveContextsRequest_VertexRagStore{
				RagResources: []*aiplatformpb.RetrieveContextsRequest_VertexRagStore_RagResource{
					{RagCorpus: r.ragCorpus},
				},
			},
		},
		Query: &aiplatformpb.RagQuery{
			Query: &aiplatformpb.RagQuery_Text{Text: query},
			RagRetrievalConfig: &aiplatformpb.RagRetrievalConfig{
				TopK: int32(topK),
			},
		},
	}

	start := time.Now()
	resp, err := r.client.RetrieveContexts(ctx, req)
	metrics.RetrievalRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("retrieve contexts: %w", err)
	}
	metrics.RetrievalRequestsTotal.WithLabelValues("success").Inc()

	contexts := convertContexts(resp.GetContexts().GetContexts())
	r.logger.Debug("Retrieved contexts",
		zap.Int("top_k", topK),
		zap.Int("count", len(contexts)),
	)
	return contexts, nil
}

// Close releases the underlying gRPC connection.
func (r *Retriever) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close vertex rag client: %w", err)
	}
	return nil
}

// convertContexts normalizes raw RAG contexts. Proto getters are nil-safe,
// so a missing field yields a zero value rather than a failure.
func convertContexts(raw []*aiplatformpb.RagContexts_Context) []domain.RetrievedContext {
	results := make([]domain.RetrievedContext, 0, len(raw))
	for _, c := range raw {
		rc := domain.RetrievedContext{
			SourceURI: citation.NormalizeSourceURL(c.GetSourceUri()),
			Title:     c.GetSourceDisplayName(),
			Text:      c.GetText(),
		}
		if c.Score != nil {
			score := c.GetScore()
			rc.Score = &score
		}
		rc.PageNumber, rc.PageRange = pageSpan(c.GetChunk())
		results = append(results, rc)
	}
	return results
}

// pageSpan extracts page-location metadata from a chunk, if present.
func pageSpan(chunk *aiplatformpb.RagChunk) (int, string) {
	span := chunk.GetPageSpan()
	first := int(span.GetFirstPage())
	last := int(span.GetLastPage())
	if first == 0 {
		return 0, ""
	}
	if last != 0 && last != first {
		return first, fmt.Sprintf("%d-%d", first, last)
	}
	return first, strconv.Itoa(first)
}
