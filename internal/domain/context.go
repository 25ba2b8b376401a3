package domain

// RetrievedContext is one snippet returned by the retrieval service for a
// query. Instances are request-scoped and immutable after construction.
type RetrievedContext struct {
	SourceURI  string   `json:"source_uri,omitempty"`
	Title      string   `json:"title,omitempty"`
	Text       string   `json:"text,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	PageNumber int      `json:"page_number,omitempty"`
	PageRange  string   `json:"page_range,omitempty"`
}
