// Package chat orchestrates one conversational question: retrieval,
// grounded generation, citation reconciliation, and transcript upkeep.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/citation"
	"github.com/kailas-cloud/citegate/internal/domain"
	"github.com/kailas-cloud/citegate/internal/metrics"
)

// Service answers user questions with citations reconciled against
// the retrieved source snippets.
type Service struct {
	retriever    ContextRetriever
	generator    domain.Generator
	history      HistoryStore
	systemPrompt string
	defaultTopK  int
	maxTopK      int
	logger       *zap.Logger
}

// New creates a chat service. systemPrompt may be empty to use the default.
func New(
	retriever ContextRetriever, generator domain.Generator, history HistoryStore,
	systemPrompt string, defaultTopK, maxTopK int, logger *zap.Logger,
) *Service {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Service{
		retriever:    retriever,
		generator:    generator,
		history:      history,
		systemPrompt: systemPrompt,
		defaultTopK:  defaultTopK,
		maxTopK:      maxTopK,
		logger:       logger,
	}
}

type retrievalOutcome struct {
	contexts []domain.RetrievedContext
	err      error
}

// Ask answers one user message within a session. Retrieval and generation
// run concurrently against the same query; their outputs are reconciled
// into a numbered citation catalog and an annotated answer.
func (s *Service) Ask(
	ctx context.Context, sessionID, message string, topK int,
) (domain.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.ChatReply{}, domain.ErrEmptyMessage
	}
	topK = s.clampTopK(topK)

	prompt := s.buildSessionPrompt(ctx, sessionID, message)

	// Retrieval and generation share no state; issue them concurrently.
	retCh := make(chan retrievalOutcome, 1)
	go func() {
		contexts, err := s.retriever.Retrieve(ctx, message, topK)
		retCh <- retrievalOutcome{contexts: contexts, err: err}
	}()

	gen, genErr := s.generator.Generate(ctx, prompt)
	ret := <-retCh

	if genErr != nil {
		return domain.ChatReply{}, fmt.Errorf("generate answer: %w", genErr)
	}
	if ret.err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: %w", domain.ErrRetrievalProvider, ret.err)
	}

	indexToNumber, catalog := citation.BuildCatalog(gen.Chunks, ret.contexts)
	annotated := citation.Annotate(gen.Text, gen.Supports, indexToNumber)
	markdown := annotated + citation.RenderSources(catalog)

	metrics.CitationsPerAnswer.Observe(float64(len(catalog)))

	s.logger.Debug("Chat answer assembled",
		zap.String("session_id", sessionID),
		zap.Int("top_k", topK),
		zap.Int("retrieved_contexts", len(ret.contexts)),
		zap.Int("grounding_chunks", len(gen.Chunks)),
		zap.Int("citations", len(catalog)),
	)

	s.appendHistory(ctx, sessionID, message, gen.Text)

	return domain.ChatReply{
		Answer:            gen.Text,
		AnnotatedText:     annotated,
		Markdown:          markdown,
		Sources:           catalog,
		RetrievedContexts: ret.contexts,
	}, nil
}

// Reset clears a session's conversation transcript.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.history.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Service) clampTopK(topK int) int {
	if topK <= 0 {
		return s.defaultTopK
	}
	if topK > s.maxTopK {
		return s.maxTopK
	}
	return topK
}

// buildSessionPrompt folds recent conversation context into the prompt.
// Transcript failures degrade to a contextless prompt.
func (s *Service) buildSessionPrompt(ctx context.Context, sessionID, message string) string {
	var history []domain.Exchange
	if s.history != nil {
		var err error
		history, err = s.history.Recent(ctx, sessionID, domain.PromptExchanges)
		if err != nil {
			s.logger.Warn("Failed to load conversation history",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			history = nil
		}
	}
	return buildPrompt(s.systemPrompt, history, message)
}

// appendHistory stores a truncated exchange. Failures are logged only;
// the answer has already been produced.
func (s *Service) appendHistory(ctx context.Context, sessionID, message, answer string) {
	if s.history == nil {
		return
	}
	ex := domain.Exchange{User: message, Bot: truncateRunes(answer, domain.StoredAnswerRunes)}
	if err := s.history.Append(ctx, sessionID, ex); err != nil {
		s.logger.Warn("Failed to store conversation exchange",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
