package generation

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// --- Mock Generator ---

type mockGenerator struct {
	result domain.GenerationResult
	err    error
	calls  int
}

func (m *mockGenerator) Generate(_ context.Context, _ string) (domain.GenerationResult, error) {
	m.calls++
	if m.err != nil {
		return domain.GenerationResult{}, m.err
	}
	return m.result, nil
}

// --- Mock BudgetChecker ---

type mockBudget struct {
	checkErr error
	recorded []int64
}

func (m *mockBudget) Check(_ context.Context) error { return m.checkErr }
func (m *mockBudget) Record(tokens int64)           { m.recorded = append(m.recorded, tokens) }
func (m *mockBudget) RemainingDaily() int64         { return 1000 }
func (m *mockBudget) RemainingMonthly() int64       { return 10000 }

func TestInstrumentedGenerator_Success(t *testing.T) {
	inner := &mockGenerator{result: domain.GenerationResult{
		Text:        "grounded answer",
		Chunks:      []domain.GroundingChunk{{URI: "gs://docs/a.pdf"}},
		TotalTokens: 120,
	}}
	budget := &mockBudget{}
	gen := NewInstrumentedGenerator(inner, "gemini", "gemini-2.0-flash-001", budget, zap.NewNop())

	result, err := gen.Generate(context.Background(), "question")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.Text != "grounded answer" {
		t.Errorf("text = %q", result.Text)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
	if len(budget.recorded) != 1 || budget.recorded[0] != 120 {
		t.Errorf("recorded usage = %v, want [120]", budget.recorded)
	}
}

func TestInstrumentedGenerator_BudgetRejected(t *testing.T) {
	inner := &mockGenerator{result: domain.GenerationResult{Text: "ok"}}
	budget := &mockBudget{checkErr: domain.ErrGenerationQuotaExceeded}
	gen := NewInstrumentedGenerator(inner, "gemini", "m", budget, zap.NewNop())

	_, err := gen.Generate(context.Background(), "question")
	if !errors.Is(err, domain.ErrGenerationQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("inner generator called despite rejected budget")
	}
}

func TestInstrumentedGenerator_InnerError(t *testing.T) {
	inner := &mockGenerator{err: errors.New("api unavailable")}
	budget := &mockBudget{}
	gen := NewInstrumentedGenerator(inner, "gemini", "m", budget, zap.NewNop())

	_, err := gen.Generate(context.Background(), "question")
	if err == nil {
		t.Fatal("expected error from inner generator")
	}
	if len(budget.recorded) != 0 {
		t.Errorf("usage recorded for failed request: %v", budget.recorded)
	}
}

func TestInstrumentedGenerator_NilBudget(t *testing.T) {
	inner := &mockGenerator{result: domain.GenerationResult{Text: "ok", TotalTokens: 10}}
	gen := NewInstrumentedGenerator(inner, "gemini", "m", nil, zap.NewNop())

	result, err := gen.Generate(context.Background(), "question")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result.Text != "ok" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestInstrumentedGenerator_ZeroTokensNotRecorded(t *testing.T) {
	inner := &mockGenerator{result: domain.GenerationResult{Text: "ok"}}
	budget := &mockBudget{}
	gen := NewInstrumentedGenerator(inner, "gemini", "m", budget, zap.NewNop())

	if _, err := gen.Generate(context.Background(), "question"); err != nil {
		t.Fatal(err)
	}
	if len(budget.recorded) != 0 {
		t.Errorf("zero-token result recorded: %v", budget.recorded)
	}
}
