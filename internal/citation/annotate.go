package citation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// insertion is one marker scheduled at a byte offset of the original text.
type insertion struct {
	offset int
	marker string
	order  int // position in the original supports list, for tie-breaks
}

// Annotate splices bracketed citation markers into text at the end offsets
// claimed by the grounding supports. Supports with a nil segment, an
// out-of-range offset, or no resolvable chunk index are skipped; the
// function never fails and returns text unchanged when there is nothing to
// insert.
//
// Markers at one offset list their numbers ascending and deduplicated.
// When two supports claim the same end offset, the later support's marker
// renders first; that ordering is unspecified upstream but stable here.
func Annotate(text string, supports []domain.GroundingSupport, indexToNumber map[int]int) string {
	if text == "" || len(supports) == 0 {
		return text
	}

	var ins []insertion
	for i, s := range supports {
		if s.Segment == nil {
			continue
		}
		end := s.Segment.EndIndex
		if end < 0 || end > len(text) {
			continue
		}
		marker := buildMarker(s.ChunkIndices, indexToNumber)
		if marker == "" {
			continue
		}
		ins = append(ins, insertion{offset: end, marker: marker, order: i})
	}
	if len(ins) == 0 {
		return text
	}

	// Single ascending builder pass. Ties reversed by arrival order to
	// reproduce the splice order of descending-offset insertion.
	sort.SliceStable(ins, func(a, b int) bool {
		if ins[a].offset != ins[b].offset {
			return ins[a].offset < ins[b].offset
		}
		return ins[a].order > ins[b].order
	})

	var b strings.Builder
	grown := len(text)
	for _, in := range ins {
		grown += len(in.marker)
	}
	b.Grow(grown)

	last := 0
	for _, in := range ins {
		b.WriteString(text[last:in.offset])
		b.WriteString(in.marker)
		last = in.offset
	}
	b.WriteString(text[last:])
	return b.String()
}

// buildMarker maps chunk indices to citation numbers and renders them as a
// concatenation of bracketed numbers, ascending and deduplicated. Indices
// with no catalog mapping are dropped; an empty result means no marker.
func buildMarker(chunkIndices []int, indexToNumber map[int]int) string {
	seen := make(map[int]struct{}, len(chunkIndices))
	var numbers []int
	for _, idx := range chunkIndices {
		n, ok := indexToNumber[idx]
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	if len(numbers) == 0 {
		return ""
	}
	sort.Ints(numbers)

	var b strings.Builder
	for _, n := range numbers {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(n))
		b.WriteByte(']')
	}
	return b.String()
}
