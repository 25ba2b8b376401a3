package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// --- Mocks ---

type mockRetriever struct {
	contexts  []domain.RetrievedContext
	err       error
	gotQuery  string
	gotTopK   int
	callCount int
}

func (m *mockRetriever) Retrieve(
	_ context.Context, query string, topK int,
) ([]domain.RetrievedContext, error) {
	m.callCount++
	m.gotQuery = query
	m.gotTopK = topK
	return m.contexts, m.err
}

type mockGenerator struct {
	result    domain.GenerationResult
	err       error
	gotPrompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (domain.GenerationResult, error) {
	m.gotPrompt = prompt
	return m.result, m.err
}

type mockHistory struct {
	recent    []domain.Exchange
	recentErr error
	appended  []domain.Exchange
	appendErr error
	cleared   []string
	clearErr  error
}

func (m *mockHistory) Recent(_ context.Context, _ string, n int) ([]domain.Exchange, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if len(m.recent) > n {
		return m.recent[len(m.recent)-n:], nil
	}
	return m.recent, nil
}

func (m *mockHistory) Append(_ context.Context, _ string, ex domain.Exchange) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, ex)
	return nil
}

func (m *mockHistory) Clear(_ context.Context, sessionID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, sessionID)
	return nil
}

func newService(r *mockRetriever, g *mockGenerator, h *mockHistory) *Service {
	return New(r, g, h, "", 5, 20, zap.NewNop())
}

// --- Tests ---

func TestAsk_FullPipeline(t *testing.T) {
	score := 0.9
	retriever := &mockRetriever{contexts: []domain.RetrievedContext{
		{SourceURI: "https://storage.cloud.google.com/docs/a.pdf?authuser=0", Title: "Doc A", Score: &score},
	}}
	generator := &mockGenerator{result: domain.GenerationResult{
		Text: "Answer text.",
		Chunks: []domain.GroundingChunk{
			{URI: "https://storage.cloud.google.com/docs/a.pdf?authuser=0", Title: "Doc A"},
		},
		Supports: []domain.GroundingSupport{
			{Segment: &domain.SupportSegment{EndIndex: 12}, ChunkIndices: []int{0}},
		},
	}}
	history := &mockHistory{}
	svc := newService(retriever, generator, history)

	reply, err := svc.Ask(context.Background(), "sess-1", "what is doc a?", 0)
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	if reply.Answer != "Answer text." {
		t.Errorf("answer = %q", reply.Answer)
	}
	if reply.AnnotatedText != "Answer text.[1]" {
		t.Errorf("annotated = %q, want marker after text", reply.AnnotatedText)
	}
	if !strings.Contains(reply.Markdown, "**Sources**") {
		t.Errorf("markdown missing sources block: %q", reply.Markdown)
	}
	if len(reply.Sources) != 1 || reply.Sources[0].Number != 1 {
		t.Errorf("sources = %+v", reply.Sources)
	}
	if len(reply.RetrievedContexts) != 1 {
		t.Errorf("retrieved contexts = %+v", reply.RetrievedContexts)
	}
	if retriever.gotTopK != 5 {
		t.Errorf("topK = %d, want default 5", retriever.gotTopK)
	}
}

func TestAsk_EmptyMessage(t *testing.T) {
	svc := newService(&mockRetriever{}, &mockGenerator{}, &mockHistory{})

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := svc.Ask(context.Background(), "sess-1", msg, 5)
		if !errors.Is(err, domain.ErrEmptyMessage) {
			t.Errorf("Ask(%q) error = %v, want ErrEmptyMessage", msg, err)
		}
	}
}

func TestAsk_TopKClamping(t *testing.T) {
	tests := []struct {
		name     string
		given    int
		expected int
	}{
		{"zero uses default", 0, 5},
		{"negative uses default", -3, 5},
		{"within range kept", 10, 10},
		{"above max capped", 100, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := &mockRetriever{}
			svc := newService(retriever, &mockGenerator{result: domain.GenerationResult{Text: "ok"}}, &mockHistory{})

			if _, err := svc.Ask(context.Background(), "s", "q", tt.given); err != nil {
				t.Fatal(err)
			}
			if retriever.gotTopK != tt.expected {
				t.Errorf("topK = %d, want %d", retriever.gotTopK, tt.expected)
			}
		})
	}
}

func TestAsk_GenerationFailure(t *testing.T) {
	generator := &mockGenerator{err: domain.ErrGenerationProvider}
	svc := newService(&mockRetriever{}, generator, &mockHistory{})

	_, err := svc.Ask(context.Background(), "sess-1", "question", 5)
	if !errors.Is(err, domain.ErrGenerationProvider) {
		t.Fatalf("expected generation provider error, got %v", err)
	}
}

func TestAsk_RetrievalFailure(t *testing.T) {
	retriever := &mockRetriever{err: errors.New("rpc deadline exceeded")}
	generator := &mockGenerator{result: domain.GenerationResult{Text: "ok"}}
	svc := newService(retriever, generator, &mockHistory{})

	_, err := svc.Ask(context.Background(), "sess-1", "question", 5)
	if !errors.Is(err, domain.ErrRetrievalProvider) {
		t.Fatalf("expected retrieval provider error, got %v", err)
	}
}

func TestAsk_QuotaErrorPropagates(t *testing.T) {
	generator := &mockGenerator{err: domain.ErrGenerationQuotaExceeded}
	svc := newService(&mockRetriever{}, generator, &mockHistory{})

	_, err := svc.Ask(context.Background(), "sess-1", "question", 5)
	if !errors.Is(err, domain.ErrGenerationQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestAsk_PromptIncludesHistory(t *testing.T) {
	history := &mockHistory{recent: []domain.Exchange{
		{User: "first question", Bot: "first answer"},
	}}
	generator := &mockGenerator{result: domain.GenerationResult{Text: "ok"}}
	svc := newService(&mockRetriever{}, generator, history)

	if _, err := svc.Ask(context.Background(), "sess-1", "follow-up", 5); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(generator.gotPrompt, "Previous conversation context:") {
		t.Errorf("prompt missing history header: %q", generator.gotPrompt)
	}
	if !strings.Contains(generator.gotPrompt, "User: first question\nSystem: first answer\n") {
		t.Errorf("prompt missing exchange: %q", generator.gotPrompt)
	}
	if !strings.Contains(generator.gotPrompt, "Current User Query: follow-up") {
		t.Errorf("prompt missing current query: %q", generator.gotPrompt)
	}
}

func TestAsk_PromptWithoutHistory(t *testing.T) {
	generator := &mockGenerator{result: domain.GenerationResult{Text: "ok"}}
	svc := newService(&mockRetriever{}, generator, &mockHistory{})

	if _, err := svc.Ask(context.Background(), "sess-1", "hello", 5); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(generator.gotPrompt, "Previous conversation context:") {
		t.Errorf("empty history should not add context header: %q", generator.gotPrompt)
	}
}

func TestAsk_HistoryLoadFailureDegrades(t *testing.T) {
	history := &mockHistory{recentErr: errors.New("redis down")}
	generator := &mockGenerator{result: domain.GenerationResult{Text: "ok"}}
	svc := newService(&mockRetriever{}, generator, history)

	reply, err := svc.Ask(context.Background(), "sess-1", "question", 5)
	if err != nil {
		t.Fatalf("history load failure must not fail the request: %v", err)
	}
	if reply.Answer != "ok" {
		t.Errorf("answer = %q", reply.Answer)
	}
}

func TestAsk_HistoryAppendFailureDegrades(t *testing.T) {
	history := &mockHistory{appendErr: errors.New("redis down")}
	generator := &mockGenerator{result: domain.GenerationResult{Text: "ok"}}
	svc := newService(&mockRetriever{}, generator, history)

	if _, err := svc.Ask(context.Background(), "sess-1", "question", 5); err != nil {
		t.Fatalf("history append failure must not fail the request: %v", err)
	}
}

func TestAsk_StoredAnswerTruncated(t *testing.T) {
	long := strings.Repeat("я", domain.StoredAnswerRunes+50)
	history := &mockHistory{}
	generator := &mockGenerator{result: domain.GenerationResult{Text: long}}
	svc := newService(&mockRetriever{}, generator, history)

	if _, err := svc.Ask(context.Background(), "sess-1", "question", 5); err != nil {
		t.Fatal(err)
	}

	if len(history.appended) != 1 {
		t.Fatalf("appended %d exchanges, want 1", len(history.appended))
	}
	stored := history.appended[0].Bot
	if got := len([]rune(stored)); got != domain.StoredAnswerRunes {
		t.Errorf("stored answer runes = %d, want %d", got, domain.StoredAnswerRunes)
	}
}

func TestAsk_NoGroundingMetadata(t *testing.T) {
	generator := &mockGenerator{result: domain.GenerationResult{Text: "plain answer"}}
	svc := newService(&mockRetriever{}, generator, &mockHistory{})

	reply, err := svc.Ask(context.Background(), "sess-1", "question", 5)
	if err != nil {
		t.Fatal(err)
	}
	if reply.AnnotatedText != "plain answer" {
		t.Errorf("annotated = %q, want unchanged text", reply.AnnotatedText)
	}
	if reply.Markdown != "plain answer" {
		t.Errorf("markdown = %q, want no sources block", reply.Markdown)
	}
	if len(reply.Sources) != 0 {
		t.Errorf("sources = %+v, want empty", reply.Sources)
	}
}

func TestReset(t *testing.T) {
	history := &mockHistory{}
	svc := newService(&mockRetriever{}, &mockGenerator{}, history)

	if err := svc.Reset(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(history.cleared) != 1 || history.cleared[0] != "sess-1" {
		t.Errorf("cleared = %v", history.cleared)
	}
}

func TestReset_Error(t *testing.T) {
	history := &mockHistory{clearErr: errors.New("redis down")}
	svc := newService(&mockRetriever{}, &mockGenerator{}, history)

	if err := svc.Reset(context.Background(), "sess-1"); err == nil {
		t.Fatal("expected error from Reset")
	}
}
