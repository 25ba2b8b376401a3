package domain

// Exchange is one stored (question, truncated answer) pair of a session
// transcript.
type Exchange struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Transcript limits. The stored answer is a snippet, not the full reply:
// the transcript only seeds follow-up prompts.
const (
	// MaxStoredExchanges caps the stored transcript length.
	MaxStoredExchanges = 5
	// PromptExchanges is how many recent exchanges are folded into a prompt.
	PromptExchanges = 4
	// StoredAnswerRunes caps the stored answer snippet, in runes.
	StoredAnswerRunes = 200
)

// ChatReply is the complete outcome of one chat turn.
type ChatReply struct {
	Answer            string
	AnnotatedText     string
	Markdown          string
	Sources           []CitationEntry
	RetrievedContexts []RetrievedContext
}
