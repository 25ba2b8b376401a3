package chat

import (
	"strings"

	"github.com/kailas-cloud/citegate/internal/domain"
)

// DefaultSystemPrompt instructs the model to answer strictly from the
// retrieved documents. Deployments override it via config.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions using the documents
available through your retrieval tool. Ground every factual statement in the
retrieved material. When the documents do not cover a question, say so plainly
instead of speculating. Keep answers clear and conversational.`

// buildPrompt combines the system prompt, recent conversation context,
// and the current user query into a single generation prompt.
func buildPrompt(systemPrompt string, history []domain.Exchange, userMsg string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if len(history) > 0 {
		b.WriteString("\n\nPrevious conversation context:\n")
		for _, ex := range history {
			b.WriteString("User: ")
			b.WriteString(ex.User)
			b.WriteString("\nSystem: ")
			b.WriteString(ex.Bot)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\nCurrent User Query: ")
	b.WriteString(userMsg)
	return b.String()
}
