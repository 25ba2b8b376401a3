package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/domain"
	"github.com/kailas-cloud/citegate/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedGenerator wraps a Generator with budget enforcement,
// metrics, and logging. Transport concerns (API calls, grounding
// extraction) stay in the inner generator.
type InstrumentedGenerator struct {
	inner    domain.Generator
	provider string
	model    string
	budget   BudgetChecker
	logger   *zap.Logger
}

// NewInstrumentedGenerator wraps a generator with budget and observability.
func NewInstrumentedGenerator(
	inner domain.Generator, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *InstrumentedGenerator {
	return &InstrumentedGenerator{
		inner:    inner,
		provider: provider,
		model:    model,
		budget:   budget,
		logger:   logger,
	}
}

// Generate checks budget, delegates to the inner generator, and records usage.
func (p *InstrumentedGenerator) Generate(
	ctx context.Context, prompt string,
) (domain.GenerationResult, error) {
	// Check budget before making the request
	if p.budget != nil {
		if err := p.budget.Check(ctx); err != nil {
			p.logger.Error("Budget exceeded",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Error(err),
			)
			return domain.GenerationResult{}, fmt.Errorf("budget check: %w", err)
		}
	}

	start := time.Now()

	result, err := p.inner.Generate(ctx, prompt)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(p.provider, p.model, "error").Inc()
		p.logger.Error("Generation request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(p.provider, p.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(p.provider, p.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(p.provider, p.model, "prompt").
		Add(float64(result.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(p.provider, p.model, "total").
		Add(float64(result.TotalTokens))
	metrics.GroundingChunksPerAnswer.Observe(float64(len(result.Chunks)))

	// Record token usage in budget
	if p.budget != nil && result.TotalTokens > 0 {
		p.budget.Record(int64(result.TotalTokens))
		remaining := metrics.GenerationBudgetTokensRemaining
		remaining.WithLabelValues(p.provider, "daily").Set(float64(p.budget.RemainingDaily()))
		remaining.WithLabelValues(p.provider, "monthly").Set(float64(p.budget.RemainingMonthly()))
	}

	p.logger.Debug("Generation request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("answer_bytes", len(result.Text)),
		zap.Int("grounding_chunks", len(result.Chunks)),
		zap.Int("grounding_supports", len(result.Supports)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
