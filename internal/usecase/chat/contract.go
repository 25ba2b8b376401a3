package chat

import (
	"context"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// ContextRetriever fetches the top-K source snippets for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedContext, error)
}

// HistoryStore persists session conversation transcripts.
type HistoryStore interface {
	Recent(ctx context.Context, sessionID string, n int) ([]domain.Exchange, error)
	Append(ctx context.Context, sessionID string, ex domain.Exchange) error
	Clear(ctx context.Context, sessionID string) error
}
