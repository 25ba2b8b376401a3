package domain

import "context"

// GroundingChunk is one citation reference emitted by the generation
// service, identified by its position in the model's grounding-chunks list.
// A chunk with none of URI, Title, or Text set is unidentifiable and
// collapses into the shared "unknown" catalog bucket.
type GroundingChunk struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// SupportSegment locates a supported span inside the answer text.
// Offsets are byte offsets into the UTF-8 answer string; EndIndex is
// end-exclusive. The upstream schema does not guarantee a start offset,
// so only EndIndex participates in marker placement.
type SupportSegment struct {
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// GroundingSupport is the generation service's claim that the answer span
// ending at Segment.EndIndex is backed by the grounding chunks at
// ChunkIndices. A nil Segment means the service omitted offsets; such
// supports are skipped at annotation time.
type GroundingSupport struct {
	Segment      *SupportSegment `json:"segment,omitempty"`
	ChunkIndices []int           `json:"chunk_indices,omitempty"`
}

// GenerationResult is the normalized output of one generation call:
// the answer text plus whatever grounding metadata could be extracted,
// and token usage for budget accounting.
type GenerationResult struct {
	Text         string
	Chunks       []GroundingChunk
	Supports     []GroundingSupport
	PromptTokens int
	TotalTokens  int
}

// Generator produces a grounded answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (GenerationResult, error)
}
