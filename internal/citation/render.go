package citation

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// RenderSources formats the catalog as a markdown reference list appended
// below the answer. An empty catalog renders as an empty string, with no
// header emitted.
func RenderSources(catalog []domain.CitationEntry) string {
	if len(catalog) == 0 {
		return ""
	}

	lines := make([]string, 0, len(catalog)+4)
	lines = append(lines, "", "---", "**Sources**", "")

	for _, e := range catalog {
		title := e.Title
		if title == "" {
			title = e.URI
		}
		if title == "" {
			title = "Source"
		}
		uri := e.URI
		if uri == "" {
			uri = "#"
		}
		line := fmt.Sprintf("%d. [%s](%s)", e.Number, title, NormalizeSourceURL(uri))
		if e.Score != nil {
			line += fmt.Sprintf(" — score: %.2f", *e.Score)
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
