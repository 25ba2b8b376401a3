package gemini

import (
	"google.golang.org/genai"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// ExtractGrounding normalizes a generation response. The answer text is
// always returned; grounding metadata degrades to empty lists when the
// response carries none or its shape is incomplete.
func ExtractGrounding(resp *genai.GenerateContentResponse) domain.GenerationResult {
	result := domain.GenerationResult{Text: resp.Text()}

	if usage := resp.UsageMetadata; usage != nil {
		result.PromptTokens = int(usage.PromptTokenCount)
		result.TotalTokens = int(usage.TotalTokenCount)
	}

	if len(resp.Candidates) == 0 {
		return result
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return result
	}

	result.Chunks = extractChunks(meta.GroundingChunks)
	result.Supports = extractSupports(meta.GroundingSupports)
	return result
}

// extractChunks flattens the two chunk variants (retrieved context, web
// result). A chunk with neither variant stays in the list as an empty
// record so support indices keep lining up.
func extractChunks(raw []*genai.GroundingChunk) []domain.GroundingChunk {
	if len(raw) == 0 {
		return nil
	}
	chunks := make([]domain.GroundingChunk, len(raw))
	for i, gc := range raw {
		if gc == nil {
			continue
		}
		switch {
		case gc.RetrievedContext != nil:
			chunks[i] = domain.GroundingChunk{
				URI:   gc.RetrievedContext.URI,
				Title: gc.RetrievedContext.Title,
				Text:  gc.RetrievedContext.Text,
			}
		case gc.Web != nil:
			chunks[i] = domain.GroundingChunk{
				URI:   gc.Web.URI,
				Title: gc.Web.Title,
			}
		}
	}
	return chunks
}

func extractSupports(raw []*genai.GroundingSupport) []domain.GroundingSupport {
	if len(raw) == 0 {
		return nil
	}
	supports := make([]domain.GroundingSupport, 0, len(raw))
	for _, gs := range raw {
		if gs == nil {
			continue
		}
		sup := domain.GroundingSupport{}
		if gs.Segment != nil {
			sup.Segment = &domain.SupportSegment{
				StartIndex: int(gs.Segment.StartIndex),
				EndIndex:   int(gs.Segment.EndIndex),
			}
		}
		if len(gs.GroundingChunkIndices) > 0 {
			sup.ChunkIndices = make([]int, len(gs.GroundingChunkIndices))
			for i, idx := range gs.GroundingChunkIndices {
				sup.ChunkIndices[i] = int(idx)
			}
		}
		supports = append(supports, sup)
	}
	return supports
}
