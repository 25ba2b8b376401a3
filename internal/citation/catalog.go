package citation

import (
	"github.com/kailas-cloud/citegate/internal/domain"
)

// Identity-key rune caps. Long snippet texts are truncated before keying so
// that near-identical chunk excerpts from one document still collapse.
const (
	keyTitleTextRunes = 80
	keyTextRunes      = 120
)

// unknownKey is the shared bucket for chunks carrying no URI, title, or
// text. All such chunks collapse into at most one catalog entry per
// response.
const unknownKey = "unknown"

// sourceKey derives the dedup identity of a grounding chunk.
// URI wins; then (title, text prefix); then text prefix alone.
func sourceKey(uri, title, text string) string {
	switch {
	case uri != "":
		return "uri::" + uri
	case title != "" && text != "":
		return "title::" + title + "::text::" + truncateRunes(text, keyTitleTextRunes)
	case text != "":
		return "text::" + truncateRunes(text, keyTextRunes)
	default:
		return unknownKey
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// BuildCatalog reconciles the model's grounding chunks against the retrieved
// contexts. It returns a chunk-index → citation-number map and the catalog
// itself, in first-seen order of distinct identities. Numbers are 1-based,
// dense, and never reassigned; duplicate chunks map to the number of their
// first appearance.
//
// Retrieved contexts serve only as enrichment: a new entry missing a title,
// score, or page location is backfilled from the retrieved context matching
// its normalized URI, or failing that, its title.
func BuildCatalog(
	chunks []domain.GroundingChunk, retrieved []domain.RetrievedContext,
) (map[int]int, []domain.CitationEntry) {
	byURI := make(map[string]domain.RetrievedContext, len(retrieved))
	for _, r := range retrieved {
		if r.SourceURI != "" {
			if _, ok := byURI[r.SourceURI]; !ok {
				byURI[r.SourceURI] = r
			}
		}
	}
	byTitle := make(map[string]domain.RetrievedContext, len(retrieved))
	for _, r := range retrieved {
		if r.Title != "" {
			if _, ok := byTitle[r.Title]; !ok {
				byTitle[r.Title] = r
			}
		}
	}

	indexToNumber := make(map[int]int, len(chunks))
	var catalog []domain.CitationEntry
	var keys []string

	for idx, ch := range chunks {
		key := sourceKey(ch.URI, ch.Title, ch.Text)

		number := 0
		for i, k := range keys {
			if k == key {
				number = i + 1
				break
			}
		}

		if number == 0 {
			catalog = append(catalog, newEntry(ch, byURI, byTitle, len(catalog)+1))
			keys = append(keys, key)
			number = len(catalog)
		}

		indexToNumber[idx] = number
	}

	return indexToNumber, catalog
}

// newEntry builds a catalog entry from a chunk and enriches it from the
// retrieved contexts: URI match first, title match as fallback.
func newEntry(
	ch domain.GroundingChunk,
	byURI, byTitle map[string]domain.RetrievedContext,
	number int,
) domain.CitationEntry {
	uri := ch.URI
	if uri == "" {
		uri = byTitle[ch.Title].SourceURI
	}
	title := ch.Title
	if title == "" {
		title = byURI[ch.URI].Title
	}

	e := domain.CitationEntry{
		Number: number,
		URI:    NormalizeSourceURL(uri),
		Title:  title,
		Text:   ch.Text,
	}

	if r, ok := byURI[e.URI]; e.URI != "" && ok {
		if e.Title == "" {
			e.Title = r.Title
		}
		e.Score = r.Score
		if e.PageNumber == 0 {
			e.PageNumber = r.PageNumber
		}
		if e.PageRange == "" {
			e.PageRange = r.PageRange
		}
	} else if r, ok := byTitle[e.Title]; e.Title != "" && ok {
		if e.URI == "" {
			e.URI = r.SourceURI
		}
		e.Score = r.Score
		if e.PageNumber == 0 {
			e.PageNumber = r.PageNumber
		}
		if e.PageRange == "" {
			e.PageRange = r.PageRange
		}
	}

	return e
}
