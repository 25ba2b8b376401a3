package domain

// CitationEntry is a deduplicated, numbered citation record. Number is
// 1-based, dense, assigned in first-seen order among grounding chunks and
// never reassigned within a response.
type CitationEntry struct {
	Number     int      `json:"number"`
	URI        string   `json:"uri,omitempty"`
	Title      string   `json:"title,omitempty"`
	Text       string   `json:"text,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	PageNumber int      `json:"page_number,omitempty"`
	PageRange  string   `json:"page_range,omitempty"`
}
